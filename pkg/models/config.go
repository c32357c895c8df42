package models

// Config is the full projectdw configuration as read from projectdw.yaml,
// the environment and command-line flags.
type Config struct {
	Paths    Paths    `yaml:"paths" mapstructure:"paths"`
	Calendar Calendar `yaml:"calendar" mapstructure:"calendar"`
	Log      Log      `yaml:"log" mapstructure:"log"`
	Loader   Loader   `yaml:"loader" mapstructure:"loader"`
}

// Paths locates the inputs, outputs and process state of a run.
type Paths struct {
	SourceDir    string `yaml:"source_dir" mapstructure:"source_dir"`
	WarehouseDir string `yaml:"warehouse_dir" mapstructure:"warehouse_dir"`
	OLAPDir      string `yaml:"olap_dir" mapstructure:"olap_dir"`
	StateFile    string `yaml:"state_file" mapstructure:"state_file"`
	JournalFile  string `yaml:"journal_file" mapstructure:"journal_file"`
}

// Calendar bounds the static time dimension (inclusive, YYYY-MM-DD).
type Calendar struct {
	Start string `yaml:"start" mapstructure:"start"`
	End   string `yaml:"end" mapstructure:"end"`
}

type Log struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// Loader configures the relational sink used by `projectdw load`.
type Loader struct {
	Driver      string    `yaml:"driver" mapstructure:"driver"` // sqlite3 or snowflake
	DSN         string    `yaml:"dsn" mapstructure:"dsn"`
	BatchSize   int       `yaml:"batch_size" mapstructure:"batch_size"`
	Truncate    bool      `yaml:"truncate" mapstructure:"truncate"`
	IncludeOLAP bool      `yaml:"include_olap" mapstructure:"include_olap"`
	Snowflake   Snowflake `yaml:"snowflake" mapstructure:"snowflake"`
}

type Snowflake struct {
	Account   string `yaml:"account" mapstructure:"account"`
	Username  string `yaml:"username" mapstructure:"username"`
	Password  string `yaml:"password,omitempty" mapstructure:"password"`
	Role      string `yaml:"role" mapstructure:"role"`
	Warehouse string `yaml:"warehouse" mapstructure:"warehouse"`
	Database  string `yaml:"database" mapstructure:"database"`
	Schema    string `yaml:"schema" mapstructure:"schema"`
	Timeout   string `yaml:"timeout" mapstructure:"timeout"`
}
