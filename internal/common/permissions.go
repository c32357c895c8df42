package common

// File and directory modes used for everything projectdw writes.
const (
	// FilePermissionSecure is used for config files that may hold credentials.
	FilePermissionSecure = 0600

	// FilePermissionNormal is used for warehouse tables, OLAP tables and state.
	FilePermissionNormal = 0644

	// DirPermissionNormal is used for the warehouse and OLAP directories.
	DirPermissionNormal = 0755
)
