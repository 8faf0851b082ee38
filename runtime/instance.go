package runtime

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/vcrobe/cove/compiler"
	"github.com/vcrobe/cove/console"
	"github.com/vcrobe/cove/events"
	"github.com/vcrobe/cove/loader"
	"github.com/vcrobe/cove/script"
	"github.com/vcrobe/cove/store"
	"github.com/vcrobe/cove/tmpl"
	"github.com/vcrobe/cove/vdom"
)

// Instance is one mounted component.
type Instance struct {
	ID       string
	Tag      string
	ParentID string
	// Host is the placeholder element in the enclosing tree.
	Host *html.Node
	// Root is the isolated render root. It is never attached to Host.
	Root *html.Node
	// InnerTarget receives the output of {{inner}} blocks: the element
	// named by the host's inner-html attribute, or the host itself.
	InnerTarget *html.Node
	State       *store.Map

	rt          *Runtime
	def         *compiler.Definition
	module      *loader.Module
	bound       *loader.Bound
	binder      *events.Binder
	// innerBinder owns the listeners under InnerTarget.
	innerBinder *events.Binder

	state     State
	mounted   bool
	rendering bool
	passes    int
	style     string
	inner     string
	props     map[string]string
	slot      string
	unsubs    []func()
	receivers map[string]bool
	binds     map[string]*script.Program
}

func newInstance(rt *Runtime, def *compiler.Definition, host *html.Node, parentID string) *Instance {
	inst := &Instance{
		ID:        newID(),
		Tag:       def.Tag,
		ParentID:  parentID,
		Host:      host,
		Root:      vdom.NewRoot(),
		rt:        rt,
		def:       def,
		state:     Constructed,
		props:     make(map[string]string),
		receivers: make(map[string]bool),
		binds:     make(map[string]*script.Program),
	}

	initial := make(map[string]any)
	for _, name := range def.Observed {
		v, ok := vdom.GetAttr(host, name)
		inst.props[name] = v
		if ok {
			initial[name] = v
		}
	}
	inst.State = store.NewMap(initial, inst.invalidate)
	inst.InnerTarget = innerTarget(host)
	inst.slot = vdom.RenderChildren(host)
	return inst
}

// innerTarget resolves the host's inner-html attribute ("#id") against the
// tree the host lives in.
func innerTarget(host *html.Node) *html.Node {
	sel, ok := vdom.GetAttr(host, "inner-html")
	if !ok || sel == "" {
		return host
	}
	top := host
	for top.Parent != nil {
		top = top.Parent
	}
	if t := vdom.FindByID(top, strings.TrimPrefix(sel, "#")); t != nil {
		return t
	}
	console.L().Error().Str("target", sel).Msg("inner-html target not found")
	return host
}

// Status returns the lifecycle state.
func (inst *Instance) Status() State { return inst.state }

// Mounted reports whether the first pass has completed.
func (inst *Instance) Mounted() bool { return inst.mounted }

// Passes returns the number of completed reconciliation passes.
func (inst *Instance) Passes() int { return inst.passes }

// Style returns the CSS computed by the last pass.
func (inst *Instance) Style() string { return inst.style }

// Module returns the loaded module, or nil before the load completes.
func (inst *Instance) Module() *loader.Module { return inst.module }

// HTML serialises the render root's content.
func (inst *Instance) HTML() string { return vdom.RenderChildren(inst.Root) }

// invalidate schedules a pass. Writes made while the instance renders
// are part of that pass and schedule nothing.
func (inst *Instance) invalidate() {
	if inst.rendering || !inst.state.live() {
		return
	}
	inst.rt.loop.Scheduler().Schedule(inst.ID, inst.pass)
}

// loaded runs on the loop when the module load finishes.
func (inst *Instance) loaded(m *loader.Module, err error) {
	if inst.state != Loading {
		return
	}
	if err != nil {
		if errors.Is(err, loader.ErrPolicy) {
			inst.degrade(err)
			return
		}
		console.L().Error().Err(err).Str("tag", inst.Tag).Str("id", inst.ID).Msg("module load failed; instance stalled")
		return
	}

	rt := inst.rt
	inst.module = m
	env := rt.newEnv(inst)
	inst.bound = m.Bind(loader.Invocation{InstanceID: inst.ID, ParentID: inst.ParentID}, env)
	opts := events.Options{
		Compile:  inst.compileHandler,
		Bind:     inst.bindValue,
		Eval:     inst.eval,
		Navigate: rt.Navigate,
	}
	inst.binder = events.NewBinder(opts)
	if inst.def.Flags.HasInnerHTML {
		inst.innerBinder = events.NewBinder(opts)
	}

	inst.state = MountedInitial
	rt.refresh(inst, inst.bound.Env())
	if err := protect(inst, "construct", inst.bound.Construct); err != nil {
		inst.scriptError("construct", err)
	}
	inst.pass()
	if inst.state.Terminal() {
		return
	}
	inst.state = Updating
	inst.invalidate()
}

// degrade is terminal: the root shows DegradedMessage from now on.
func (inst *Instance) degrade(err error) {
	console.L().Warn().Err(err).Str("tag", inst.Tag).Str("id", inst.ID).Msg("instance degraded")
	inst.rt.loop.Scheduler().Cancel(inst.ID)
	inst.state = Degraded
	for c := inst.Root.FirstChild; c != nil; c = inst.Root.FirstChild {
		inst.Root.RemoveChild(c)
	}
	inst.Root.AppendChild(vdom.Text(DegradedMessage))
	inst.rt.metrics.Degraded.Inc()
}

func (inst *Instance) scriptError(stage string, err error) {
	inst.rt.metrics.RecordScriptError(inst.Tag, stage)
	console.L().Error().Err(err).Str("tag", inst.Tag).Str("id", inst.ID).Str("stage", stage).Msg("script error")
}

func (inst *Instance) render() (out tmpl.Output, css string, err error) {
	inst.rendering = true
	defer func() { inst.rendering = false }()
	err = protect(inst, "render", func() error {
		if err := inst.bound.RunHook(compiler.HookRender); err != nil {
			return err
		}
		var err error
		if out, err = inst.bound.RenderTemplate(); err != nil {
			return err
		}
		css, err = inst.bound.RenderStyle()
		return err
	})
	return out, css, err
}

// pass is one reconciliation: evaluate, patch, copy attributes, rebind,
// then look after children and placeholders. A script error abandons the
// pass and leaves the live tree as it was.
func (inst *Instance) pass() {
	if !inst.state.live() || inst.bound == nil {
		return
	}
	rt := inst.rt
	start := time.Now()
	rt.refresh(inst, inst.bound.Env())

	out, css, err := inst.render()
	if err != nil {
		inst.scriptError("render", err)
		return
	}
	tree, err := vdom.ParseFragment(out.HTML)
	if err != nil {
		console.L().Error().Err(err).Str("tag", inst.Tag).Msg("parse render tree")
		return
	}

	st := vdom.Reconcile(inst.Root, tree)
	inst.style = css
	if inst.innerBinder != nil && out.Inner != inst.inner {
		if frag, err := vdom.ParseFragment(out.Inner); err == nil {
			st.Add(vdom.Reconcile(inst.InnerTarget, frag))
			inst.inner = out.Inner
			if inst.InnerTarget == inst.Host {
				inst.slot = vdom.RenderChildren(inst.Host)
			}
		} else {
			console.L().Error().Err(err).Str("tag", inst.Tag).Msg("parse inner-html tree")
		}
	}
	if _, err := inst.binder.Rebind(inst.Root); err != nil {
		inst.scriptError("handler", err)
	}
	if inst.innerBinder != nil {
		if _, err := inst.innerBinder.Rebind(inst.InnerTarget); err != nil {
			inst.scriptError("handler", err)
		}
	}

	inst.passes++
	rt.metrics.RecordPass(inst.Tag, time.Since(start), st)
	console.L().Debug().Str("tag", inst.Tag).Str("id", inst.ID).Int("mutations", st.Mutations()).Msg("pass")

	sched := rt.loop.Scheduler()
	if !inst.mounted {
		inst.mounted = true
		if inst.bound.HasHook(compiler.HookMount) {
			sched.Defer(func() { inst.runHook(compiler.HookMount) })
		}
	}
	if inst.bound.HasHook(compiler.HookUpdate) {
		sched.Defer(func() { inst.runHook(compiler.HookUpdate) })
	}
	rt.afterPass(inst)
}

func (inst *Instance) runHook(hook compiler.Hook) {
	if !inst.state.live() {
		return
	}
	inst.rt.refresh(inst, inst.bound.Env())
	if err := protect(inst, string(hook), func() error { return inst.bound.RunHook(hook) }); err != nil {
		inst.scriptError(string(hook), err)
	}
}

// SetAttribute sets an attribute on the host. Observed attributes are
// written to the instance store and fire the props hook.
func (inst *Instance) SetAttribute(name, value string) {
	vdom.SetAttr(inst.Host, name, value)
	inst.syncHost()
}

// NotifySlotChange reports that the host's content changed.
func (inst *Instance) NotifySlotChange() {
	inst.syncHost()
}

// syncHost compares the host with what the instance last saw.
func (inst *Instance) syncHost() {
	if inst.state.Terminal() {
		return
	}
	changed := false
	for _, name := range inst.def.Observed {
		v, _ := vdom.GetAttr(inst.Host, name)
		if inst.props[name] == v {
			continue
		}
		inst.props[name] = v
		inst.State.Set(name, v)
		changed = true
	}
	if changed && inst.bound != nil {
		inst.runHook(compiler.HookProps)
	}

	if slot := vdom.RenderChildren(inst.Host); slot != inst.slot {
		inst.slot = slot
		if inst.bound != nil {
			inst.runHook(compiler.HookSlotChange)
			inst.invalidate()
		}
	}
}

// receive subscribes the instance to a custom event: each emit stores the
// event data under key.
func (inst *Instance) receive(name, key string) {
	id := name + "\x00" + key
	if inst.receivers[id] {
		return
	}
	inst.receivers[id] = true
	inst.unsubs = append(inst.unsubs, inst.rt.hub.Subscribe(eventTopic(name), func(data any) {
		if inst.state.Terminal() {
			return
		}
		inst.State.Set(key, data)
	}))
}

// Dispatch delivers ev to a node of the render root or of the inner-html
// target.
func (inst *Instance) Dispatch(node *html.Node, ev *events.Event) error {
	if !inst.state.live() || inst.binder == nil {
		return nil
	}
	if inst.innerBinder != nil && vdom.Contains(inst.InnerTarget, node) {
		return inst.innerBinder.Dispatch(node, ev)
	}
	return inst.binder.Dispatch(node, ev)
}

func (inst *Instance) compileHandler(src string) (events.Handler, error) {
	run, err := inst.bound.Compile(src)
	if err != nil {
		return nil, err
	}
	return func(ev *events.Event) error {
		if !inst.state.live() {
			return nil
		}
		inst.rt.refresh(inst, inst.bound.Env())
		e := eventValue(ev)
		err := protect(inst, "handler", func() error {
			_, err := run(map[string]any{"e": e, "event": e})
			return err
		})
		if err != nil {
			inst.scriptError("handler", err)
		}
		return err
	}, nil
}

func eventValue(ev *events.Event) map[string]any {
	e := map[string]any{
		"type":    ev.Type,
		"value":   ev.Value,
		"checked": ev.Checked,
		"detail":  ev.Detail,
	}
	if ev.Target != nil {
		id, _ := vdom.GetAttr(ev.Target, "id")
		e["target"] = map[string]any{"tag": ev.Target.Data, "id": id}
	}
	return e
}

// bindValue assigns a control's value through a bind expression.
func (inst *Instance) bindValue(expr string, value any) error {
	p, ok := inst.binds[expr]
	if !ok {
		var err error
		if p, err = script.Compile(expr + " = $value"); err != nil {
			return fmt.Errorf("bind %q: %w", expr, err)
		}
		inst.binds[expr] = p
	}
	scope := script.NewEnv(inst.bound.Env())
	scope.Define("$value", value)
	_, err := p.Run(scope)
	return err
}

func (inst *Instance) eval(expr string) (any, error) {
	return script.Eval(expr, inst.bound.Env())
}

// Disconnect releases the pending pass, listeners, subscriptions and
// lookups of the instance and of every descendant. It is idempotent.
func (inst *Instance) Disconnect() {
	if inst.state == Disconnected {
		return
	}
	for _, child := range inst.rt.Children(inst.ID) {
		child.Disconnect()
	}
	inst.rt.loop.Scheduler().Cancel(inst.ID)
	for _, unsub := range inst.unsubs {
		unsub()
	}
	inst.unsubs = nil
	if inst.binder != nil {
		inst.binder.Reset()
	}
	if inst.innerBinder != nil {
		inst.innerBinder.Reset()
	}
	inst.state = Disconnected
	inst.rt.forget(inst)
	console.L().Debug().Str("tag", inst.Tag).Str("id", inst.ID).Msg("disconnect")
}
