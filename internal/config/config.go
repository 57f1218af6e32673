package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Printer  PrinterConfig  `mapstructure:"printer"  validate:"required"`
	Files    FilesConfig    `mapstructure:"files"    validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// PrinterConfig contains the connection settings for the printer
// host's JSON-RPC websocket.
type PrinterConfig struct {
	URL                   string `mapstructure:"url"                     validate:"required,url"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" validate:"required,gt=0"`
}

// FilesConfig locates the gcode file repository on disk.
type FilesConfig struct {
	GCodesDir string `mapstructure:"gcodes_dir" validate:"required"`
}
