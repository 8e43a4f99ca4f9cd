// Package config turns viper state into the typed configuration each component takes.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ExpandPath expands a leading ~ and $VAR references in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// DatabasePath returns the run-history database location.
func DatabasePath(v *viper.Viper) string {
	if p := v.GetString("database.path"); p != "" {
		return ExpandPath(p)
	}
	return ExpandPath("$HOME/.local/share/tally/tally.db")
}

// BackupDir returns the CSV backup root. CSV_DOWNLOAD is honored for
// compatibility with existing deployments.
func BackupDir(v *viper.Viper) string {
	if d := v.GetString("backup.dir"); d != "" {
		return ExpandPath(d)
	}
	if d := os.Getenv("CSV_DOWNLOAD"); d != "" {
		return ExpandPath(d)
	}
	return "downloads"
}
