// Package config loads the core configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/corrreia/nativehook/internal/shared"
)

// FileName is the core configuration file searched in the known paths.
const FileName = "nativehook.yaml"

// Core is the core configuration.
type Core struct {
	// GamedataDir is registered whole at startup
	GamedataDir string `yaml:"gamedata_dir"`
	// Gamedata lists extra files registered after GamedataDir
	Gamedata []string `yaml:"gamedata"`
	// Platform overrides the gamedata platform: linux or windows
	Platform string `yaml:"platform"`
	// Libraries maps alias names to loaded library names
	Libraries map[string]string `yaml:"libraries"`

	LogLevel    string `yaml:"log_level"`
	Development bool   `yaml:"development"`

	path string
}

// Path is the file the configuration was read from, empty for defaults.
func (c *Core) Path() string { return c.path }

// Default returns the configuration used when no file exists.
func Default() *Core {
	return &Core{
		GamedataDir: "gamedata",
		Libraries:   map[string]string{},
		LogLevel:    "info",
	}
}

// findConfigPath searches for a config file in the known install paths
func findConfigPath(filename string) string {
	paths := []string{
		"csgo/addons/nativehook/configs/" + filename,
		"/home/steam/cs2-dedicated/game/csgo/addons/nativehook/configs/" + filename,
		"addons/nativehook/configs/" + filename,
		"configs/" + filename,
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return paths[0]
}

// Find loads FileName from the first known path that has it, or the
// defaults when none does.
func Find() (*Core, error) {
	return Load(findConfigPath(FileName))
}

// Load reads the configuration at path. A missing file yields the
// defaults. Relative gamedata paths are taken from the file's directory.
func Load(path string) (*Core, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		shared.LogDebug("config", "%s not found, using defaults", path)
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.path = path
	dir := filepath.Dir(path)
	c.GamedataDir = resolve(dir, c.GamedataDir)
	for i, g := range c.Gamedata {
		c.Gamedata[i] = resolve(dir, g)
	}
	return c, nil
}

// Parse decodes a YAML or JSON document over the defaults.
func Parse(data []byte) (*Core, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if c.Libraries == nil {
		c.Libraries = map[string]string{}
	}
	if c.Platform != "" {
		if _, ok := shared.ParsePlatform(c.Platform); !ok {
			return nil, fmt.Errorf("parse config: unknown platform %q", c.Platform)
		}
	}
	return c, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
