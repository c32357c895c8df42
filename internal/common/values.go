package common

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseInt accepts integers and integral floats such as "3.0", which is how
// spreadsheet exports often write integer columns.
func ParseInt(v string) (int, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %q", v)
	}
	return int(f), nil
}
