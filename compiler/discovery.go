package compiler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vcrobe/cove/console"
)

// Ext is the file extension of component markup files.
const Ext = ".cove.html"

// Source is one component markup file found on disk.
type Source struct {
	Tag    string
	Path   string
	Markup string
}

// TagFromPath derives a component tag from a markup file name:
// "todo-list.cove.html" names <todo-list>.
func TagFromPath(path string) string {
	return strings.ToLower(strings.TrimSuffix(filepath.Base(path), Ext))
}

// DiscoverDir finds every component markup file under root, sorted by
// tag. A file whose name is not a valid tag, that repeats a tag already
// found, or that cannot be read is logged and skipped; only a failure to
// walk root itself is returned.
func DiscoverDir(root string) ([]Source, error) {
	var sources []Source
	seen := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			console.L().Warn().Err(err).Str("path", path).Msg("skipping")
			return nil
		}
		if d.IsDir() {
			// Skip hidden directories such as .git.
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), Ext) {
			return nil
		}

		tag := TagFromPath(path)
		if prev, ok := seen[tag]; ok {
			console.L().Warn().Str("tag", tag).Str("path", path).Str("first", prev).Msg("component defined twice; keeping the first")
			return nil
		}
		if err := validateTagName(tag); err != nil {
			console.L().Warn().Err(err).Str("path", path).Msg("skipping markup file")
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			console.L().Warn().Err(err).Str("path", path).Msg("skipping unreadable markup file")
			return nil
		}
		seen[tag] = path
		sources = append(sources, Source{Tag: tag, Path: path, Markup: string(data)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Tag < sources[j].Tag })
	return sources, nil
}

// CompileDir compiles every component under root. Components that fail to
// compile are reported in errs and left out of defs.
func CompileDir(root string) (defs []*Definition, errs []error, err error) {
	sources, err := DiscoverDir(root)
	if err != nil {
		return nil, nil, err
	}
	for _, s := range sources {
		def, cerr := Compile(s.Tag, s.Markup, nil)
		if cerr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Path, cerr))
			continue
		}
		defs = append(defs, def)
	}
	return defs, errs, nil
}
