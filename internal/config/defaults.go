package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed default.yaml
var defaultYAML []byte

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := Decode("default.yaml", defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config: %v", err))
	}
	ApplyDefaults(cfg)
	return cfg
}

// EnsureFile writes the embedded default to path when nothing exists there.
// It reports whether a file was created.
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create config dir: %w", err)
		}
	}
	data := defaultYAML
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".yaml" && ext != ".yml" {
		b, err := json.MarshalIndent(Default(), "", "  ")
		if err != nil {
			return false, err
		}
		data = append(b, '\n')
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write default config: %w", err)
	}
	return true, nil
}
