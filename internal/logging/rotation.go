package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotationConfig holds log rotation settings.
type RotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb"`  // Rotate after this many megabytes
	MaxAgeDays int  `yaml:"max_age_days"` // Delete backups older than this
	MaxBackups int  `yaml:"max_backups"`  // Number of backup files to keep
	Compress   bool `yaml:"compress"`     // gzip rotated files
}

const (
	defaultMaxSizeMB  = 100
	defaultMaxAgeDays = 7
	defaultMaxBackups = 3
)

// newRotatingWriter returns a lumberjack-backed writer for file output.
func newRotatingWriter(filename string, cfg *RotationConfig) (io.Writer, error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return rotatorFor(filename, cfg), nil
}

func rotatorFor(filename string, cfg *RotationConfig) *lumberjack.Logger {
	l := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    defaultMaxSizeMB,
		MaxAge:     defaultMaxAgeDays,
		MaxBackups: defaultMaxBackups,
	}

	if cfg != nil {
		if cfg.MaxSizeMB > 0 {
			l.MaxSize = cfg.MaxSizeMB
		}
		if cfg.MaxAgeDays > 0 {
			l.MaxAge = cfg.MaxAgeDays
		}
		if cfg.MaxBackups > 0 {
			l.MaxBackups = cfg.MaxBackups
		}
		l.Compress = cfg.Compress
	}

	return l
}
