// Package router maps paths to route parameters and keeps the shared route
// store in step with navigation.
//
// The route store holds four keys: "path" (the cleaned path), "name" (the
// matched route's name, blank when no route matched), "params" and "query".
// Components read them through the route global and re-render when they
// change.
package router

import (
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/vcrobe/cove/console"
	"github.com/vcrobe/cove/store"
)

// ErrNoHistory is returned by Back when there is no earlier entry.
var ErrNoHistory = errors.New("router: no previous history entry")

// Route is one entry of the route table.
type Route struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

// Router is safe for concurrent use, but the store it writes to is not:
// call Navigate and Back from the goroutine that owns the store.
type Router struct {
	mu      sync.Mutex
	state   *store.Map
	routes  []Route
	history []string
}

// New returns a Router writing to state. Routes are tried in order.
func New(state *store.Map, routes []Route) *Router {
	return &Router{state: state, routes: routes}
}

// Resolve returns the first route matching path.
func (r *Router) Resolve(path string) (Route, Params, bool) {
	r.mu.Lock()
	routes := r.routes
	r.mu.Unlock()

	for _, rt := range routes {
		if params, ok := Match(rt.Path, path); ok {
			return rt, params, true
		}
	}
	return Route{}, nil, false
}

// Navigate pushes target onto the history and publishes it to the route
// store. Navigating to the current location is a no-op.
func (r *Router) Navigate(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("router: navigate %q: %w", target, err)
	}
	path := Clean(u.Path)
	entry := path
	if u.RawQuery != "" {
		entry += "?" + u.RawQuery
	}

	r.mu.Lock()
	if n := len(r.history); n > 0 && r.history[n-1] == entry {
		r.mu.Unlock()
		return nil
	}
	r.history = append(r.history, entry)
	r.mu.Unlock()

	console.L().Debug().Str("path", path).Msg("router: navigate")
	r.publish(path, u.Query())
	return nil
}

// Back pops the current entry and publishes the previous one.
func (r *Router) Back() error {
	r.mu.Lock()
	if len(r.history) < 2 {
		r.mu.Unlock()
		return ErrNoHistory
	}
	r.history = r.history[:len(r.history)-1]
	entry := r.history[len(r.history)-1]
	r.mu.Unlock()

	u, err := url.Parse(entry)
	if err != nil {
		return fmt.Errorf("router: back to %q: %w", entry, err)
	}
	console.L().Debug().Str("path", u.Path).Msg("router: back")
	r.publish(u.Path, u.Query())
	return nil
}

// Current returns the current history entry, or "" before the first
// navigation.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return ""
	}
	return r.history[len(r.history)-1]
}

// Depth returns the number of history entries.
func (r *Router) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

func (r *Router) publish(path string, query url.Values) {
	q := make(map[string]any, len(query))
	for k, vs := range query {
		if len(vs) > 0 {
			q[k] = vs[0]
		}
	}

	name := ""
	params := map[string]any{}
	if rt, p, ok := r.Resolve(path); ok {
		name = rt.Name
		params = p.Any()
	} else if len(r.routes) > 0 {
		console.L().Warn().Str("path", path).Msg("router: no route matches")
	}

	r.state.Set("params", params)
	r.state.Set("query", q)
	r.state.Set("name", name)
	r.state.Set("path", path)
}
