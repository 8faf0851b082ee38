package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vcrobe/cove/compiler"
	"github.com/vcrobe/cove/config"
	"github.com/vcrobe/cove/console"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	logJSON    bool

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "cove",
		Short: "Compile and render cove components",
		Long: `cove works with component markup files (*.cove.html): it compiles
them, renders them headlessly with the runtime, and watches a directory
for changes.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load()
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "TOML configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&g.logJSON, "log-json", false, "write logs as JSON lines")

	root.AddCommand(newCompileCmd(g), newRenderCmd(g), newWatchCmd(g))
	return root
}

// load reads the configuration and sets up the logger. Flags override
// the file.
func (g *globalOptions) load() error {
	g.cfg = config.Default()
	if g.configPath != "" {
		cfg, err := config.Load(g.configPath)
		if err != nil {
			return err
		}
		g.cfg = cfg
	}
	if g.logLevel != "" {
		g.cfg.Log.Level = g.logLevel
	}
	if g.logJSON {
		g.cfg.Log.JSON = true
	}
	return console.Configure(console.Options{
		Level:   g.cfg.Log.Level,
		JSON:    g.cfg.Log.JSON,
		NoColor: g.cfg.Log.NoColor,
	})
}

// readSource reads a markup file. The tag defaults to the file name.
func readSource(path, tag string) (compiler.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return compiler.Source{}, err
	}
	if tag == "" {
		tag = compiler.TagFromPath(path)
	}
	return compiler.Source{Tag: strings.ToLower(tag), Path: path, Markup: string(data)}, nil
}

// parsePairs splits k=v flag values.
func parsePairs(flag string, values []string) ([][2]string, error) {
	out := make([][2]string, 0, len(values))
	for _, v := range values {
		k, val, ok := strings.Cut(v, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--%s %q: want key=value", flag, v)
		}
		out = append(out, [2]string{k, val})
	}
	return out, nil
}
