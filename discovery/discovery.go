// Package discovery finds component markup for placeholder elements and
// mounts them. The placeholder attribute's value says where the markup
// lives:
//
//	<todo-list cove="#todo-list"></todo-list>          inline <template id="todo-list">
//	<todo-list cove="widgets/todo.cove.html"></todo-list>  file under Dir
//	<todo-list cove></todo-list>                       todo-list.cove.html anywhere under Dir
package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/vcrobe/cove/compiler"
	"github.com/vcrobe/cove/console"
	"github.com/vcrobe/cove/runtime"
	"github.com/vcrobe/cove/vdom"
)

// ErrNotFound is returned when a placeholder's markup cannot be located.
var ErrNotFound = errors.New("discovery: markup not found")

// Host attributes that configure the placeholder rather than feed the
// component's state.
var reservedAttrs = map[string]bool{
	"id":         true,
	"class":      true,
	"style":      true,
	"slot":       true,
	"inner-html": true,
}

// Discoverer implements runtime.Discoverer.
type Discoverer struct {
	// Dir is the base of relative markup paths and of the tag index.
	Dir string
	// Document holds inline templates. When nil, the tree being scanned
	// is searched.
	Document *html.Node
	// Workers bounds concurrent markup reads. Zero means 4.
	Workers int

	mu    sync.Mutex
	index map[string]string
}

var _ runtime.Discoverer = (*Discoverer)(nil)

// New returns a Discoverer reading markup under dir.
func New(dir string, doc *html.Node) *Discoverer {
	return &Discoverer{Dir: dir, Document: doc}
}

type request struct {
	el       *html.Node
	tag      string
	location string
}

// Discover registers the components the unresolved placeholders under
// root refer to and mounts them with ownerID as parent. Markup reads run
// concurrently; registration and mounting happen on the caller's
// goroutine in document order. Failures are joined; the placeholders
// that could be resolved are mounted regardless.
func (d *Discoverer) Discover(ctx context.Context, rt *runtime.Runtime, root *html.Node, ownerID string) error {
	var reqs []request
	for _, el := range rt.Unresolved(root) {
		loc, _ := vdom.GetAttr(el, rt.Placeholder())
		reqs = append(reqs, request{el: el, tag: strings.ToLower(el.Data), location: strings.TrimSpace(loc)})
	}
	if len(reqs) == 0 {
		return nil
	}

	markup, errs := d.fetch(ctx, rt, root, reqs)
	for _, r := range reqs {
		if _, ok := rt.Registry().Lookup(r.tag); !ok {
			src, ok := markup[r.tag]
			if !ok {
				continue
			}
			if err := rt.Register(r.tag, src, observed(r.el, rt.Placeholder())); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		if _, err := rt.Mount(r.el, r.tag, ownerID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fetch loads the markup of every tag that is not registered yet. The
// first placeholder of a tag decides where its markup comes from.
func (d *Discoverer) fetch(ctx context.Context, rt *runtime.Runtime, root *html.Node, reqs []request) (map[string]string, []error) {
	todo := make(map[string]string)
	var order []string
	for _, r := range reqs {
		if _, ok := rt.Registry().Lookup(r.tag); ok {
			continue
		}
		if _, ok := todo[r.tag]; !ok {
			todo[r.tag] = r.location
			order = append(order, r.tag)
		}
	}

	var (
		mu     sync.Mutex
		markup = make(map[string]string, len(todo))
		errs   []error
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers())
	for _, tag := range order {
		loc := todo[tag]
		if strings.HasPrefix(loc, "#") {
			src, err := d.inline(root, tag, loc[1:])
			mu.Lock()
			if err != nil {
				errs = append(errs, err)
			} else {
				markup[tag] = src
			}
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := d.file(tag, loc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			markup[tag] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	return markup, errs
}

func (d *Discoverer) workers() int {
	if d.Workers > 0 {
		return d.Workers
	}
	return 4
}

// inline returns the content of <template id="id">.
func (d *Discoverer) inline(root *html.Node, tag, id string) (string, error) {
	doc := d.Document
	if doc == nil {
		doc = root
		for doc.Parent != nil {
			doc = doc.Parent
		}
	}
	tpl := vdom.FindByID(doc, id)
	if tpl == nil || tpl.Data != "template" {
		return "", fmt.Errorf("%w: <%s>: no <template id=%q>", ErrNotFound, tag, id)
	}
	return vdom.RenderChildren(tpl), nil
}

// file reads the markup at loc, or finds the tag's file under Dir when
// loc is empty.
func (d *Discoverer) file(tag, loc string) (string, error) {
	path := loc
	if path == "" {
		var err error
		if path, err = d.lookup(tag); err != nil {
			return "", err
		}
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(d.Dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: <%s>: %s", ErrNotFound, tag, path)
		}
		return "", fmt.Errorf("discovery: <%s>: %w", tag, err)
	}
	console.L().Debug().Str("tag", tag).Str("path", path).Msg("markup loaded")
	return string(data), nil
}

// lookup finds tag in the index of Dir, building the index on first use.
func (d *Discoverer) lookup(tag string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.index == nil {
		if d.Dir == "" {
			return "", fmt.Errorf("%w: <%s>: no component directory", ErrNotFound, tag)
		}
		sources, err := compiler.DiscoverDir(d.Dir)
		if err != nil {
			return "", fmt.Errorf("discovery: index %s: %w", d.Dir, err)
		}
		d.index = make(map[string]string, len(sources))
		for _, s := range sources {
			d.index[s.Tag] = s.Path
		}
	}
	path, ok := d.index[tag]
	if !ok {
		return "", fmt.Errorf("%w: <%s> under %s", ErrNotFound, tag, d.Dir)
	}
	return path, nil
}

// Refresh drops the tag index so the next lookup rescans Dir.
func (d *Discoverer) Refresh() {
	d.mu.Lock()
	d.index = nil
	d.mu.Unlock()
}

// Preload registers every component under Dir. Components that fail to
// compile are reported and skipped.
func (d *Discoverer) Preload(rt *runtime.Runtime) (int, error) {
	sources, err := compiler.DiscoverDir(d.Dir)
	if err != nil {
		return 0, err
	}
	var errs []error
	n := 0
	for _, s := range sources {
		if err := rt.Register(s.Tag, s.Markup, nil); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Path, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// observed lists the host attributes that seed the component's state.
func observed(el *html.Node, placeholder string) []string {
	var names []string
	for _, a := range el.Attr {
		if a.Key == placeholder || reservedAttrs[a.Key] || strings.HasPrefix(a.Key, ":") {
			continue
		}
		names = append(names, a.Key)
	}
	return names
}
