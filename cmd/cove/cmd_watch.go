package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/vcrobe/cove/compiler"
	"github.com/vcrobe/cove/console"
)

func newWatchCmd(g *globalOptions) *cobra.Command {
	var (
		debounce time.Duration
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Recompile markup files as they change and report errors",
		Long: `watch compiles every *.cove.html file under DIR (default: the configured
components directory, or ".") and then recompiles each file that changes.
With --once it compiles everything a single time and exits non-zero if any
file fails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := g.cfg.Runtime.Components
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				dir = "."
			}
			w := &watcher{dir: dir, debounce: debounce, out: cmd.OutOrStdout()}
			failed, err := w.compileAll()
			if err != nil {
				return err
			}
			if once {
				if failed > 0 {
					return fmt.Errorf("%d component(s) failed to compile", failed)
				}
				return nil
			}
			return w.run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 100*time.Millisecond, "wait this long for more changes before recompiling")
	cmd.Flags().BoolVar(&once, "once", false, "compile once and exit")
	return cmd
}

type watcher struct {
	dir      string
	debounce time.Duration
	out      io.Writer
}

// compileAll compiles every file under dir and returns how many failed.
func (w *watcher) compileAll() (int, error) {
	sources, err := compiler.DiscoverDir(w.dir)
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, s := range sources {
		if !w.report(s.Path, s.Tag, s.Markup) {
			failed++
		}
	}
	fmt.Fprintf(w.out, "%d component(s), %d failed\n", len(sources), failed)
	return failed, nil
}

// compileFile recompiles one changed path. A missing file is reported as
// removed.
func (w *watcher) compileFile(path string) bool {
	tag := compiler.TagFromPath(path)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(w.out, "removed <%s> %s\n", tag, path)
		return true
	}
	if err != nil {
		fmt.Fprintf(w.out, "FAIL <%s> %s: %v\n", tag, path, err)
		return false
	}
	return w.report(path, tag, string(data))
}

func (w *watcher) report(path, tag, markup string) bool {
	def, err := compiler.Compile(tag, markup, nil)
	if err != nil {
		fmt.Fprintf(w.out, "FAIL <%s> %s\n%v\n", tag, path, err)
		return false
	}
	fmt.Fprintf(w.out, "ok   <%s> %s\n", tag, path)
	for _, warn := range def.Warnings {
		fmt.Fprintf(w.out, "     warning: %s\n", warn)
	}
	return true
}

// run watches dir recursively until ctx is done. Changes are batched for
// the debounce window and each changed file is compiled once per batch.
func (w *watcher) run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := addRecursive(fsw, w.dir); err != nil {
		return err
	}
	console.L().Info().Str("dir", w.dir).Msg("watching")

	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time
	flush := func() {
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			w.compileFile(p)
		}
		clear(pending)
		timer, fire = nil, nil
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addRecursive(fsw, ev.Name); err != nil {
						console.L().Warn().Err(err).Str("dir", ev.Name).Msg("watch new directory")
					}
					continue
				}
			}
			if !strings.HasSuffix(ev.Name, compiler.Ext) || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			pending[ev.Name] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			}
		case <-fire:
			flush()
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			console.L().Warn().Err(err).Msg("watcher")
		}
	}
}

// addRecursive watches root and every directory below it, skipping
// hidden ones.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
