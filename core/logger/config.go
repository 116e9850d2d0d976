package logger

// Config holds configuration for the logger.
type Config struct {
	// Level is the minimum enabled level (debug, info, warn, error).
	Level string `mapstructure:"level" default:"info"`
	// Format is the console encoding: json or console.
	Format string `mapstructure:"format" default:"json"`
	// File enables an additional JSON sink rotated by size. Empty disables it.
	File string `mapstructure:"file" default:""`
	// MaxSizeMB is the size at which File is rotated.
	MaxSizeMB int `mapstructure:"max_size_mb" default:"100"`
	// MaxBackups is the number of rotated files kept.
	MaxBackups int `mapstructure:"max_backups" default:"5"`
	// MaxAgeDays removes rotated files older than this many days.
	MaxAgeDays int `mapstructure:"max_age_days" default:"28"`
}
