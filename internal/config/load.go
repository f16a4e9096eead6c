package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ResolvePath picks the config file to read: an explicit path first, then
// $NETCHECK_CONFIG, then netcheck.conf in the working directory. The second
// return value is false when the path is only the implicit default.
func ResolvePath(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, true
	}
	return DefaultConfigPath, false
}

// Load layers defaults, the config file and NETCHECK_* environment variables.
// Problems come back as warnings; the returned Config is always usable.
func Load(path string, required bool) (Config, []error) {
	cfg := Default()
	var warnings []error

	if path != "" {
		settings, err := ReadFile(path)
		switch {
		case err == nil:
			warnings = append(warnings, cfg.Apply(settings)...)
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			warnings = append(warnings, errors.Wrap(err, "using built-in defaults"))
		}
	}

	warnings = append(warnings, cfg.Apply(FromEnv(os.Environ()))...)
	return cfg, warnings
}

// ReadFile parses a config file into raw settings. Files ending in .yaml or
// .yml are YAML mappings; anything else is KEY=value lines, the format the
// shell-sourced config files have always used.
func ReadFile(path string) (map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, errors.Wrapf(err, "read config %q", path)
		}
		return parseYAML(data)
	default:
		settings, err := godotenv.Read(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %q", path)
		}
		return settings, nil
	}
}

func parseYAML(data []byte) (map[string]string, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse yaml config")
	}

	settings := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			settings[k] = ""
		case nil:
		default:
			settings[k] = fmt.Sprint(v)
		}
	}
	return settings, nil
}

// FromEnv extracts NETCHECK_* variables, minus the prefix.
func FromEnv(environ []string) map[string]string {
	settings := map[string]string{}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) || key == EnvConfigPath {
			continue
		}
		settings[strings.TrimPrefix(key, EnvPrefix)] = value
	}
	return settings
}

// Apply sets every recognized key in settings. Keys are case-insensitive. A
// value that fails validation leaves the field untouched and yields a warning.
func (c *Config) Apply(settings map[string]string) []error {
	normalized := make(map[string]string, len(settings))
	for k, v := range settings {
		normalized[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	var warnings []error
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.key] = true
		v, ok := normalized[f.key]
		if !ok {
			continue
		}
		if err := f.apply(c, v); err != nil {
			warnings = append(warnings, errors.Wrapf(err, "invalid %s %q, keeping default", f.key, v))
		}
	}

	var unknown []string
	for k := range normalized {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		warnings = append(warnings, errors.Errorf("unknown setting %q ignored", k))
	}
	return warnings
}
