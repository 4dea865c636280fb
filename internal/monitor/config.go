package monitor

import (
	"os"
	"path/filepath"
)

// findConfigPath locates the user's tmuxy configuration file: first
// `~/.tmuxy.conf`, then `docker/.tmuxy.conf` walking upward from the
// current working directory, matching the original's `get_config_path`
// (§4.6: "source the user's configuration file if found").
func findConfigPath() (string, bool) {
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".tmuxy.conf")
		if fileExists(p) {
			return p, true
		}
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		p := filepath.Join(dir, "docker", ".tmuxy.conf")
		if fileExists(p) {
			return p, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
