package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/reelsight/internal/fsutil"
)

// WriteConfigFile writes YAML content to path atomically. The content must
// parse as a YAML mapping; a malformed document never replaces a working
// config.
func WriteConfigFile(path string, data []byte) error {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid config yaml: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("invalid config yaml: empty document")
	}

	perm := os.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return fsutil.WriteFileAtomic(path, data, perm)
}

// DefaultConfigPath is the project config location created by init.
func DefaultConfigPath() string {
	return filepath.Join(".reelsight", "config.yaml")
}
