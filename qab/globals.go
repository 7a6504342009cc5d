package internal

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for the config directory and env prefix
	DefaultAppName     = "qab"
	DefaultEnvPrefix   = "QAB"
	DefaultConfigPath  = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultConfigFile  = filepath.Join(DefaultConfigPath, "config.yaml")
	DefaultLogLevel    = "info"
	DefaultRefillBatch = 160
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current working directory if home directory is unavailable
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// NewLogger builds a timestamped logger writing to w at the named level.
// Unknown level names fall back to info.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
