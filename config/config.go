// Package config loads the cove TOML configuration.
//
// Every setting has a default; a file only needs the keys it changes.
//
//	[log]
//	level = "debug"
//
//	[runtime]
//	placeholder = "cove"
//	frame_interval = "16ms"
//	max_settle_ticks = 1000
//	max_loop_iterations = 10000
//	components = "web/components"
//
//	[csp]
//	script_src = ["'self'", "blob:"]
//	style_src = ["'self'", "blob:"]
//
//	[[routes]]
//	name = "user"
//	path = "/users/:id"
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vcrobe/cove/router"
)

// Log configures the process logger.
type Log struct {
	Level   string
	JSON    bool
	NoColor bool
}

// Runtime configures instance scheduling and discovery.
type Runtime struct {
	// Placeholder is the attribute that marks an element for discovery.
	Placeholder       string
	FrameInterval     time.Duration
	MaxSettleTicks    int
	MaxLoopIterations int
	// Components is the directory scanned for *.cove.html files.
	Components string
}

// CSP mirrors the content security policy of the page that hosts the
// components. An empty source list means no policy is enforced.
type CSP struct {
	ScriptSrc []string
	StyleSrc  []string
}

// Config is the complete configuration.
type Config struct {
	Log     Log
	Runtime Runtime
	CSP     CSP
	Routes  []router.Route
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: Log{Level: "info"},
		Runtime: Runtime{
			Placeholder:       "cove",
			FrameInterval:     16 * time.Millisecond,
			MaxSettleTicks:    1000,
			MaxLoopIterations: 10000,
		},
	}
}

type fileConfig struct {
	Log struct {
		Level   string `toml:"level"`
		JSON    bool   `toml:"json"`
		NoColor bool   `toml:"no_color"`
	} `toml:"log"`
	Runtime struct {
		Placeholder       string `toml:"placeholder"`
		FrameInterval     string `toml:"frame_interval"`
		MaxSettleTicks    int    `toml:"max_settle_ticks"`
		MaxLoopIterations int    `toml:"max_loop_iterations"`
		Components        string `toml:"components"`
	} `toml:"runtime"`
	CSP struct {
		ScriptSrc []string `toml:"script_src"`
		StyleSrc  []string `toml:"style_src"`
	} `toml:"csp"`
	Routes []router.Route `toml:"routes"`
}

// Load reads path and applies every key it defines over Default.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return apply(raw, meta)
}

// Parse is Load for configuration text.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return apply(raw, meta)
}

func apply(raw fileConfig, meta toml.MetaData) (Config, error) {
	cfg := Default()

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "json") {
		cfg.Log.JSON = raw.Log.JSON
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}

	if meta.IsDefined("runtime", "placeholder") {
		p := strings.TrimSpace(raw.Runtime.Placeholder)
		if p == "" {
			return Config{}, fmt.Errorf("runtime.placeholder must not be empty")
		}
		cfg.Runtime.Placeholder = strings.ToLower(p)
	}
	if meta.IsDefined("runtime", "frame_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Runtime.FrameInterval))
		if err != nil {
			return Config{}, fmt.Errorf("parse runtime.frame_interval: %w", err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("runtime.frame_interval must be positive, got %s", d)
		}
		cfg.Runtime.FrameInterval = d
	}
	if meta.IsDefined("runtime", "max_settle_ticks") {
		cfg.Runtime.MaxSettleTicks = raw.Runtime.MaxSettleTicks
	}
	if meta.IsDefined("runtime", "max_loop_iterations") {
		cfg.Runtime.MaxLoopIterations = raw.Runtime.MaxLoopIterations
	}
	if meta.IsDefined("runtime", "components") {
		cfg.Runtime.Components = strings.TrimSpace(raw.Runtime.Components)
	}

	if meta.IsDefined("csp", "script_src") {
		cfg.CSP.ScriptSrc = normalizeSources(raw.CSP.ScriptSrc)
	}
	if meta.IsDefined("csp", "style_src") {
		cfg.CSP.StyleSrc = normalizeSources(raw.CSP.StyleSrc)
	}

	if meta.IsDefined("routes") {
		for i, r := range raw.Routes {
			if strings.TrimSpace(r.Path) == "" {
				return Config{}, fmt.Errorf("routes[%d]: path is required", i)
			}
		}
		cfg.Routes = raw.Routes
	}

	return cfg, nil
}

func normalizeSources(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if v := strings.ToLower(strings.TrimSpace(s)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// AllowsBlob reports whether both source lists permit blob: URLs, which
// component modules are loaded from. Unset lists impose no restriction.
func (c CSP) AllowsBlob() bool {
	ok := func(srcs []string) bool {
		return len(srcs) == 0 || slices.Contains(srcs, "blob:")
	}
	return ok(c.ScriptSrc) && ok(c.StyleSrc)
}
