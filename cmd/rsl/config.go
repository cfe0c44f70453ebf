package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the optional TOML configuration of the rsl command.
//
//	workdir = "scripts"
//	log_level = "debug"
//	parallel = 4
//
//	[modules]
//	util = "lib/util.rsl"
//
// Entries under [modules] are read at startup and registered as embedded
// modules, so `import("util")` resolves to them regardless of the work dir.
type Config struct {
	WorkDir  string            `toml:"workdir"`
	LogLevel string            `toml:"log_level"`
	Parallel int               `toml:"parallel"`
	Modules  map[string]string `toml:"modules"`
}

// LoadConfig decodes the file at path. Relative module paths are resolved
// against the directory of the config file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in config %s: %s", path, strings.Join(keys, ", "))
	}
	if cfg.Parallel < 0 {
		return nil, fmt.Errorf("config %s: parallel must not be negative, got %d", path, cfg.Parallel)
	}
	if cfg.LogLevel != "" {
		if _, err := parseLevel(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	base := filepath.Dir(path)
	for name, p := range cfg.Modules {
		if !filepath.IsAbs(p) {
			cfg.Modules[name] = filepath.Join(base, p)
		}
	}
	if cfg.WorkDir != "" && !filepath.IsAbs(cfg.WorkDir) {
		cfg.WorkDir = filepath.Join(base, cfg.WorkDir)
	}
	return &cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level: %s", s)
}

// logLevelVar is a flag.Value for slog.LevelVar
type logLevelVar struct {
	levelVar *slog.LevelVar
	set      bool
}

func (v *logLevelVar) String() string {
	if v.levelVar == nil {
		return ""
	}
	return v.levelVar.Level().String()
}

func (v *logLevelVar) Set(s string) error {
	level, err := parseLevel(s)
	if err != nil {
		return err
	}
	v.levelVar.Set(level)
	v.set = true
	return nil
}
