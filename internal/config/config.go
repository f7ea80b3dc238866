// Package config loads the daemon configuration from a YAML file.
package config

import (
	"cmp"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/rprtr258/fun"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/rprtr258/udevwatch/internal/infra/errors"
	"github.com/rprtr258/udevwatch/internal/registry"
)

const (
	// EnvRuntimeDir overrides runtime_dir from the file.
	EnvRuntimeDir = "UDEVWATCH_RUNTIME_DIR"

	// SearchPath is looked up in the XDG config directories.
	SearchPath = "udevwatch/config.yml"
)

type Config struct {
	RuntimeDir string `yaml:"runtime_dir"`
	SysDir     string `yaml:"sys_dir"`
	DevDir     string `yaml:"dev_dir"`
	Debug      bool   `yaml:"debug"`
}

var Default = Config{
	RuntimeDir: registry.DefaultRoot,
	SysDir:     "/sys",
	DevDir:     "/dev",
	Debug:      false,
}

// PidFile is where a running daemon keeps its pid and lock.
func (c Config) PidFile() string {
	return filepath.Join(c.RuntimeDir, "udevwatch.pid")
}

// Locate returns the config file path found in the XDG config directories,
// or empty string if there is none.
func Locate() string {
	path, err := xdg.SearchConfigFile(SearchPath)
	if err != nil {
		return ""
	}

	return path
}

// Read loads config from filename. Empty filename or missing file yields
// defaults. Fields left out of the file keep their defaults.
func Read(fs afero.Fs, filename string) (Config, error) {
	config := Default
	if filename != "" {
		configBytes, errRead := afero.ReadFile(fs, filename)
		switch {
		case errRead == nil:
			if errUnmarshal := yaml.Unmarshal(configBytes, &config); errUnmarshal != nil {
				return fun.Zero[Config](), errors.Wrapf(errUnmarshal, "parse config %s", filename)
			}
		case errors.IsNotExist(errRead):
		default:
			return fun.Zero[Config](), errors.Wrapf(errRead, "read config %s", filename)
		}
	}

	config.RuntimeDir = cmp.Or(os.Getenv(EnvRuntimeDir), config.RuntimeDir)
	return config, nil
}
