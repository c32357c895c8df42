// Package calendar owns the date to time-key mapping shared by the time
// dimension and every fact table.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the on-disk format of every date the warehouse writes.
const DateLayout = "2006-01-02"

var inputLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
}

// Key returns the time-dimension key of t: the integer YYYYMMDD.
func Key(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// Year extracts the year from a key produced by Key.
func Year(key int) int {
	return key / 10000
}

// ParseDate parses a source date cell. It accepts plain dates, timestamps
// with or without a zone, and slash-separated dates.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// KeyOf parses s and returns its time key.
func KeyOf(s string) (int, error) {
	t, err := ParseDate(s)
	if err != nil {
		return 0, err
	}
	return Key(t), nil
}

// Rows materializes the time dimension from start to end inclusive as
// id_tiempo, fecha, año, mes.
func Rows(start, end time.Time) [][]string {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if end.Before(start) {
		return nil
	}

	rows := make([][]string, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		rows = append(rows, []string{
			strconv.Itoa(Key(d)),
			d.Format(DateLayout),
			strconv.Itoa(d.Year()),
			strconv.Itoa(int(d.Month())),
		})
	}
	return rows
}
