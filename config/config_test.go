package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcrobe/cove/router"
)

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cove.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[log]
level = "debug"

[runtime]
frame_interval = "5ms"
components = " web/components "

[csp]
script_src = ["'self'", "BLOB:"]

[[routes]]
name = "home"
path = "/"

[[routes]]
name = "user"
path = "/users/:id"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, 5*time.Millisecond, cfg.Runtime.FrameInterval)
	assert.Equal(t, "web/components", cfg.Runtime.Components)
	// Untouched keys keep their defaults.
	assert.Equal(t, "cove", cfg.Runtime.Placeholder)
	assert.Equal(t, 1000, cfg.Runtime.MaxSettleTicks)
	assert.Equal(t, 10000, cfg.Runtime.MaxLoopIterations)

	assert.Equal(t, []string{"'self'", "blob:"}, cfg.CSP.ScriptSrc)
	assert.Nil(t, cfg.CSP.StyleSrc)
	assert.True(t, cfg.CSP.AllowsBlob())
	assert.Equal(t, []router.Route{{Name: "home", Path: "/"}, {Name: "user", Path: "/users/:id"}}, cfg.Routes)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"bad duration":   "[runtime]\nframe_interval = \"soon\"",
		"zero duration":  "[runtime]\nframe_interval = \"0s\"",
		"empty attr":     "[runtime]\nplaceholder = \" \"",
		"unknown key":    "[runtime]\nframes = 3",
		"route no path":  "[[routes]]\nname = \"x\"",
		"invalid syntax": "[log\nlevel = 1",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(src)
			assert.Error(t, err)
		})
	}
}

func TestCSP_AllowsBlob(t *testing.T) {
	assert.True(t, CSP{}.AllowsBlob())
	assert.False(t, CSP{ScriptSrc: []string{"'self'"}}.AllowsBlob())
	assert.False(t, CSP{ScriptSrc: []string{"blob:"}, StyleSrc: []string{"'self'"}}.AllowsBlob())
	assert.True(t, CSP{ScriptSrc: []string{"blob:"}, StyleSrc: []string{"blob:", "'self'"}}.AllowsBlob())
}
