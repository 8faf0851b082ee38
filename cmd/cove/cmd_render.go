package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/vcrobe/cove/discovery"
	"github.com/vcrobe/cove/events"
	"github.com/vcrobe/cove/runtime"
	"github.com/vcrobe/cove/vdom"
)

type renderOptions struct {
	tag     string
	attrs   []string
	sets    []string
	events  []string
	route   string
	metrics bool
}

func newRenderCmd(g *globalOptions) *cobra.Command {
	o := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Mount a component headlessly and print the settled HTML",
		Long: `render mounts the component in FILE on a fresh host, lets it settle,
applies --set writes and --event dispatches in that order, and prints the
host with its shadow root. Nested placeholders are resolved from the
configured components directory, or the directory of FILE.`,
		Example: `  cove render counter.cove.html --attr start=3 --event "button:click"
  cove render user.cove.html --route /users/7 --set 'tags=["a","b"]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd.Context(), g, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.tag, "tag", "", "component tag (default: from the file name)")
	f.StringArrayVar(&o.attrs, "attr", nil, "host attribute key=value; observed by the component")
	f.StringArrayVar(&o.sets, "set", nil, "state write key=value after mounting; values are JSON or plain strings")
	f.StringArrayVar(&o.events, "event", nil, "dispatch selector:type[=value] after the writes; selector is #id or a tag name")
	f.StringVar(&o.route, "route", "", "navigate to this path before rendering")
	f.BoolVar(&o.metrics, "metrics", false, "write metrics to stderr when done")
	return cmd
}

func (o *renderOptions) run(ctx context.Context, g *globalOptions, path string, out, errOut io.Writer) error {
	src, err := readSource(path, o.tag)
	if err != nil {
		return err
	}
	attrs, err := parsePairs("attr", o.attrs)
	if err != nil {
		return err
	}
	sets, err := parsePairs("set", o.sets)
	if err != nil {
		return err
	}

	dir := g.cfg.Runtime.Components
	if dir == "" {
		dir = filepath.Dir(path)
	}
	opts := runtime.OptionsFromConfig(g.cfg)
	opts.Discoverer = discovery.New(dir, nil)
	rt := runtime.New(opts)
	defer rt.Close()

	observed := make([]string, 0, len(attrs))
	hostAttrs := map[string]string{rt.Placeholder(): ""}
	for _, kv := range attrs {
		observed = append(observed, kv[0])
		hostAttrs[kv[0]] = kv[1]
	}
	if err := rt.Register(src.Tag, src.Markup, observed); err != nil {
		return err
	}

	doc := vdom.NewRoot()
	host := vdom.Element(src.Tag, hostAttrs)
	doc.AppendChild(host)
	if o.route != "" {
		if err := rt.Navigate(o.route); err != nil {
			return err
		}
	}
	inst, err := rt.Mount(host, src.Tag, "")
	if err != nil {
		return err
	}
	if err := rt.Settle(ctx); err != nil {
		return err
	}

	for _, kv := range sets {
		inst.State.Set(kv[0], parseValue(kv[1]))
	}
	if err := rt.Settle(ctx); err != nil {
		return err
	}
	for _, arg := range o.events {
		if err := dispatch(rt, inst, arg); err != nil {
			return err
		}
		if err := rt.Settle(ctx); err != nil {
			return err
		}
	}

	if inst.Status() == runtime.Degraded {
		fmt.Fprintln(errOut, runtime.DegradedMessage)
	}
	s, err := rt.RenderString(doc)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, s)
	if o.metrics {
		return rt.Metrics().WriteText(errOut)
	}
	return nil
}

// parseValue decodes JSON and falls back to the raw string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

// dispatch sends one "selector:type[=value]" event into the instance.
func dispatch(rt *runtime.Runtime, inst *runtime.Instance, arg string) error {
	sel, typ, ok := strings.Cut(arg, ":")
	if !ok || sel == "" || typ == "" {
		return fmt.Errorf("--event %q: want selector:type[=value]", arg)
	}
	typ, value, _ := strings.Cut(typ, "=")
	target := query(inst.Root, sel)
	if target == nil {
		return fmt.Errorf("--event %q: no element matches %q", arg, sel)
	}
	return rt.Dispatch(target, &events.Event{Type: typ, Value: value, Checked: value == "true"})
}

// query finds the element with the given #id, or the first element with
// the given tag name.
func query(root *html.Node, sel string) *html.Node {
	if id, ok := strings.CutPrefix(sel, "#"); ok {
		return vdom.FindByID(root, id)
	}
	for _, el := range vdom.Elements(root) {
		if el.Data == strings.ToLower(sel) {
			return el
		}
	}
	return nil
}
