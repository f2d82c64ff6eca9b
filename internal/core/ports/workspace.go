package ports

// ScaffoldSpec describes the files written into a new server directory.
type ScaffoldSpec struct {
	Port     int
	JarFile  string
	MemoryGB int
}

// WorkspaceUsage summarizes a server directory.
type WorkspaceUsage struct {
	SizeBytes  int64 `json:"size_bytes" yaml:"size_bytes"`
	PluginJars int   `json:"plugin_jars" yaml:"plugin_jars"`
	HasWorld   bool  `json:"has_world" yaml:"has_world"`
}

// ServerWorkspace owns the per-server directories.
type ServerWorkspace interface {
	// Dir returns the directory a server of this name lives in
	Dir(name string) string

	// Create makes the server directory, failing if it already exists with
	// anything but partial downloads in it
	Create(name string) (string, error)

	// Scaffold writes server.properties, eula.txt and start scripts
	Scaffold(dir string, spec ScaffoldSpec) error

	// PluginsDir returns the plugin directory of a server directory
	PluginsDir(dir string) string

	// Remove deletes a server directory and everything in it
	Remove(dir string) error

	// Inspect measures a server directory
	Inspect(dir string) (WorkspaceUsage, error)
}
