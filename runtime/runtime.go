// Package runtime mounts compiled components and keeps them rendered.
//
// A Runtime owns everything the instances share: the definition registry,
// the module loader, the global and route stores, the signal hub, the
// router and the loop that every mutation runs on. Instances are created
// with Mount and found again by id; a child refers to its parent only by
// id, through the runtime.
//
// Apart from Do, Run and Settle, Runtime and Instance methods must be
// called on the loop goroutine: from scripts, hooks, tasks passed to Do,
// or from a goroutine that drives the loop itself with Settle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/vcrobe/cove/compiler"
	"github.com/vcrobe/cove/config"
	"github.com/vcrobe/cove/console"
	"github.com/vcrobe/cove/events"
	"github.com/vcrobe/cove/loader"
	"github.com/vcrobe/cove/metrics"
	"github.com/vcrobe/cove/router"
	"github.com/vcrobe/cove/scheduler"
	"github.com/vcrobe/cove/script"
	"github.com/vcrobe/cove/signals"
	"github.com/vcrobe/cove/store"
	"github.com/vcrobe/cove/vdom"
)

// DegradedMessage replaces the content of an instance whose module was
// refused by the load policy.
const DegradedMessage = "CSP issue, add blob: to script-src & style-src whitelist."

// DefaultPlaceholder is the attribute marking elements for discovery.
const DefaultPlaceholder = "cove"

var (
	// ErrUnknownTag is returned by Mount for a tag with no definition.
	ErrUnknownTag = errors.New("runtime: tag is not registered")
	// ErrUnresolved reports placeholders left after discovery ran.
	ErrUnresolved = errors.New("runtime: unresolved placeholder")
)

// Discoverer finds the definitions of placeholder elements under root,
// registers them and mounts an instance on each. ownerID is the id of the
// instance whose render root is being searched, or "" for a document.
type Discoverer interface {
	Discover(ctx context.Context, rt *Runtime, root *html.Node, ownerID string) error
}

// DiscovererFunc adapts a function to Discoverer.
type DiscovererFunc func(ctx context.Context, rt *Runtime, root *html.Node, ownerID string) error

func (f DiscovererFunc) Discover(ctx context.Context, rt *Runtime, root *html.Node, ownerID string) error {
	return f(ctx, rt, root, ownerID)
}

// Options configures a Runtime. The zero value is usable.
type Options struct {
	Placeholder       string
	FrameInterval     time.Duration
	MaxSettleTicks    int
	MaxLoopIterations int
	Routes            []router.Route
	Policy            loader.Policy
	Discoverer        Discoverer
	Metrics           *metrics.Metrics
	Registry          *Registry
}

// OptionsFromConfig maps a configuration onto Options. A CSP that does
// not allow blob: sources becomes a load policy that refuses every module.
func OptionsFromConfig(cfg config.Config) Options {
	opts := Options{
		Placeholder:       cfg.Runtime.Placeholder,
		FrameInterval:     cfg.Runtime.FrameInterval,
		MaxSettleTicks:    cfg.Runtime.MaxSettleTicks,
		MaxLoopIterations: cfg.Runtime.MaxLoopIterations,
		Routes:            cfg.Routes,
	}
	if !cfg.CSP.AllowsBlob() {
		opts.Policy = loader.PolicyFunc(func(*compiler.Definition) error {
			return fmt.Errorf("%w: blob: needed in script-src and style-src", loader.ErrPolicy)
		})
	}
	return opts
}

// Runtime is the process-wide context of a set of component instances.
type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc

	placeholder string
	registry    *Registry
	loader      *loader.Loader
	loop        *scheduler.Loop
	hub         *signals.Hub
	router      *router.Router
	global      *store.Map
	route       *store.Map
	metrics     *metrics.Metrics
	discoverer  Discoverer
	builtins    *script.Env

	mu        sync.Mutex
	imports   map[string]any
	instances map[string]*Instance
	hosts     map[*html.Node]*Instance
	roots     map[*html.Node]*Instance
}

// New returns a Runtime. Call Close when done with it.
func New(opts Options) *Runtime {
	ctx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		ctx:         ctx,
		cancel:      cancel,
		placeholder: opts.Placeholder,
		registry:    opts.Registry,
		loop:        scheduler.NewLoop(opts.FrameInterval),
		hub:         signals.NewHub(),
		metrics:     opts.Metrics,
		discoverer:  opts.Discoverer,
		builtins:    builtins(),
		imports:     make(map[string]any),
		instances:   make(map[string]*Instance),
		hosts:       make(map[*html.Node]*Instance),
		roots:       make(map[*html.Node]*Instance),
	}
	if rt.placeholder == "" {
		rt.placeholder = DefaultPlaceholder
	}
	if rt.registry == nil {
		rt.registry = NewRegistry()
	}
	if rt.metrics == nil {
		rt.metrics = metrics.New()
	}
	if opts.MaxSettleTicks > 0 {
		rt.loop.MaxSettleTicks = opts.MaxSettleTicks
	}
	rt.loop.OnTick = func(ran int) {
		if ran > 0 {
			rt.metrics.SchedulerTicks.Inc()
		}
	}
	rt.registry.OnCompile = func(_ string, err error) { rt.metrics.RecordCompile(err) }
	rt.loader = loader.New(loader.Options{
		Policy:        opts.Policy,
		MaxIterations: opts.MaxLoopIterations,
		OnBuild:       rt.metrics.RecordBuild,
	})

	rt.global = store.NewMap(nil, func() { rt.hub.Publish(signals.TopicGlobal, nil) })
	rt.route = store.NewMap(map[string]any{"path": "/", "name": "", "params": map[string]any{}, "query": map[string]any{}},
		func() { rt.hub.Publish(signals.TopicRoute, nil) })
	rt.router = router.New(rt.route, opts.Routes)
	return rt
}

// Registry returns the definition registry.
func (rt *Runtime) Registry() *Registry { return rt.registry }

// Loader returns the module loader.
func (rt *Runtime) Loader() *loader.Loader { return rt.loader }

// Hub returns the signal hub.
func (rt *Runtime) Hub() *signals.Hub { return rt.hub }

// Global returns the store shared by every instance as "global".
func (rt *Runtime) Global() *store.Map { return rt.global }

// Route returns the route store.
func (rt *Runtime) Route() *store.Map { return rt.route }

// Router returns the router writing to the route store.
func (rt *Runtime) Router() *router.Router { return rt.router }

// Metrics returns the runtime's collectors.
func (rt *Runtime) Metrics() *metrics.Metrics { return rt.metrics }

// Placeholder returns the attribute marking elements for discovery.
func (rt *Runtime) Placeholder() string { return rt.placeholder }

// Register compiles and registers a definition; see Registry.Register.
func (rt *Runtime) Register(tag, markup string, observed []string) error {
	_, err := rt.registry.Register(tag, markup, observed)
	return err
}

// RegisterImport makes value available to components that import name.
// Instances mounted earlier keep the value they were built with.
func (rt *Runtime) RegisterImport(name string, value any) {
	rt.mu.Lock()
	rt.imports[name] = value
	rt.mu.Unlock()
}

// Do queues fn to run on the loop goroutine. It is safe to call from any
// goroutine.
func (rt *Runtime) Do(fn func()) error {
	return rt.loop.Post(fn)
}

// Run drives the loop until ctx is done or Close is called.
func (rt *Runtime) Run(ctx context.Context) error {
	return rt.loop.Run(ctx)
}

// Settle drives the loop on the calling goroutine until every load,
// scheduled pass and deferred hook has run.
func (rt *Runtime) Settle(ctx context.Context) error {
	return rt.loop.Settle(ctx)
}

// Close disconnects every instance and stops the loop.
func (rt *Runtime) Close() {
	for _, inst := range rt.Instances() {
		inst.Disconnect()
	}
	rt.cancel()
	rt.loop.Stop()
}

// Navigate moves the router to path.
func (rt *Runtime) Navigate(path string) error {
	return rt.router.Navigate(path)
}

// Mount constructs an instance of tag on host and starts loading its
// module. It returns before the module is loaded; the instance renders
// nothing until then. Mounting a host twice returns the existing instance.
func (rt *Runtime) Mount(host *html.Node, tag, parentID string) (*Instance, error) {
	tag = strings.ToLower(tag)
	def, ok := rt.registry.Lookup(tag)
	if !ok {
		return nil, fmt.Errorf("%w: <%s>", ErrUnknownTag, tag)
	}

	rt.mu.Lock()
	if inst, ok := rt.hosts[host]; ok {
		rt.mu.Unlock()
		return inst, nil
	}
	rt.mu.Unlock()

	inst := newInstance(rt, def, host, parentID)

	rt.mu.Lock()
	rt.instances[inst.ID] = inst
	rt.hosts[host] = inst
	rt.roots[inst.Root] = inst
	rt.mu.Unlock()
	rt.metrics.Instances.Inc()

	if def.Flags.UsesGlobal {
		inst.unsubs = append(inst.unsubs, rt.hub.Subscribe(signals.TopicGlobal, func(any) { inst.invalidate() }))
	}
	if def.Flags.UsesRoute {
		inst.unsubs = append(inst.unsubs, rt.hub.Subscribe(signals.TopicRoute, func(any) { inst.invalidate() }))
	}

	console.L().Debug().Str("tag", tag).Str("id", inst.ID).Str("parent", parentID).Msg("mount")
	inst.state = Loading
	rt.loop.Go(func() scheduler.Task {
		m, err := rt.loader.Load(rt.ctx, def)
		return func() { inst.loaded(m, err) }
	})
	return inst, nil
}

// Instance returns the live instance with the given id.
func (rt *Runtime) Instance(id string) (*Instance, bool) {
	if id == "" {
		return nil, false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	inst, ok := rt.instances[id]
	return inst, ok
}

// InstanceAt returns the instance mounted on host.
func (rt *Runtime) InstanceAt(host *html.Node) (*Instance, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	inst, ok := rt.hosts[host]
	return inst, ok
}

// Instances returns the live instances in no particular order.
func (rt *Runtime) Instances() []*Instance {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]*Instance, 0, len(rt.instances))
	for _, inst := range rt.instances {
		out = append(out, inst)
	}
	return out
}

// Children returns the live instances whose parent is id.
func (rt *Runtime) Children(id string) []*Instance {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	var out []*Instance
	for _, inst := range rt.instances {
		if inst.ParentID == id {
			out = append(out, inst)
		}
	}
	return out
}

// owner returns the instance whose render root contains n.
func (rt *Runtime) owner(n *html.Node) (*Instance, bool) {
	for n.Parent != nil {
		n = n.Parent
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	inst, ok := rt.roots[n]
	return inst, ok
}

// innerOwner returns the instance whose inner-html target is the nearest
// ancestor of n. It takes precedence over owner, since a target may sit in
// another instance's render root.
func (rt *Runtime) innerOwner(n *html.Node) (*Instance, bool) {
	rt.mu.Lock()
	targets := make(map[*html.Node]*Instance)
	for _, inst := range rt.instances {
		if inst.innerBinder != nil {
			targets[inst.InnerTarget] = inst
		}
	}
	rt.mu.Unlock()
	for ; n != nil; n = n.Parent {
		if inst, ok := targets[n]; ok {
			return inst, true
		}
	}
	return nil, false
}

// Dispatch delivers ev to node, which must belong to an instance's render
// root or inner-html target. Events on nodes outside any instance are
// ignored.
func (rt *Runtime) Dispatch(node *html.Node, ev *events.Event) error {
	inst, ok := rt.innerOwner(node)
	if !ok {
		if inst, ok = rt.owner(node); !ok {
			return nil
		}
	}
	return inst.Dispatch(node, ev)
}

// Unresolved returns the placeholder elements under root that have no
// instance, in document order.
func (rt *Runtime) Unresolved(root *html.Node) []*html.Node {
	var out []*html.Node
	for _, el := range vdom.Elements(root) {
		if _, ok := vdom.GetAttr(el, rt.placeholder); !ok {
			continue
		}
		if _, mounted := rt.InstanceAt(el); !mounted {
			out = append(out, el)
		}
	}
	return out
}

// Discover runs the discoverer over root, a document or fragment outside
// any instance.
func (rt *Runtime) Discover(ctx context.Context, root *html.Node) error {
	return rt.discover(ctx, root, "")
}

func (rt *Runtime) discover(ctx context.Context, root *html.Node, ownerID string) error {
	pending := rt.Unresolved(root)
	if len(pending) == 0 {
		return nil
	}
	if rt.discoverer == nil {
		err := fmt.Errorf("%w: %d element(s), no discoverer configured", ErrUnresolved, len(pending))
		rt.metrics.RecordDiscovery(err)
		return err
	}
	err := rt.discoverer.Discover(ctx, rt, root, ownerID)
	if left := rt.Unresolved(root); len(left) > 0 {
		err = errors.Join(err, fmt.Errorf("%w: <%s> and %d more", ErrUnresolved, left[0].Data, len(left)-1))
	}
	rt.metrics.RecordDiscovery(err)
	return err
}

// forget drops inst from the lookup tables.
func (rt *Runtime) forget(inst *Instance) {
	rt.mu.Lock()
	delete(rt.instances, inst.ID)
	if rt.hosts[inst.Host] == inst {
		delete(rt.hosts, inst.Host)
	}
	delete(rt.roots, inst.Root)
	rt.mu.Unlock()
	rt.metrics.Instances.Dec()
}

// afterPass reconciles the children of inst with its new render root:
// children whose host left the tree are disconnected, the rest see their
// host's attributes and content, and new placeholders are discovered.
func (rt *Runtime) afterPass(inst *Instance) {
	for _, child := range rt.Children(inst.ID) {
		if !vdom.Contains(inst.Root, child.Host) {
			child.Disconnect()
			continue
		}
		child.syncHost()
	}
	if err := rt.discover(rt.ctx, inst.Root, inst.ID); err != nil {
		console.L().Warn().Err(err).Str("tag", inst.Tag).Str("id", inst.ID).Msg("discovery")
	}
}

func newID() string { return uuid.NewString() }
