package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/delaneyj/signalexpr/cmd/sigconsole/templates"
	"github.com/delaneyj/signalexpr/ecs"
	"github.com/delaneyj/signalexpr/scene"
	"github.com/delaneyj/signalexpr/signals"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
)

// console is a scene loaded into a fresh world, with the operations the
// subcommands run against it.
type console struct {
	mgr     *signals.Manager
	loaded  *scene.Loaded
	mode    ecs.Mode
	metrics *prometheus.Registry
	out     io.Writer
}

func openConsole(path string, cfg signals.Config, mode ecs.Mode, out io.Writer) (*console, error) {
	f, err := scene.LoadFile(path)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	cfg.Metrics = reg
	mgr := signals.NewManager(ecs.NewWorld(), cfg)
	loaded, err := f.Apply(mgr, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to load scene %s: %w", path, err)
	}
	return &console{
		mgr:     mgr,
		loaded:  loaded,
		mode:    mode,
		metrics: reg,
		out:     out,
	}, nil
}

func (c *console) Close() {
	c.loaded.Close()
}

// transaction opens a lock that can read every component and the focus
// layer, plus signals at the given access.
func (c *console) transaction(signalAccess ecs.Access) *ecs.Lock {
	w := c.mgr.World()
	resources := []ecs.Resource{ecs.Focus}
	for _, ct := range w.ComponentTypes() {
		resources = append(resources, ct.Resource())
	}
	perms := []ecs.Permissions{ecs.Read(resources...)}
	if signalAccess == ecs.AccessWrite {
		perms = append(perms, ecs.Write(ecs.Signals))
	} else {
		perms = append(perms, ecs.Read(ecs.Signals))
	}
	return w.StartTransaction(c.mode, perms...)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// assign applies "signal=value" or "signal=expression" assignments. A right
// hand side that parses as a number sets a value, anything else a binding.
func (c *console) assign(assignments []string) error {
	if len(assignments) == 0 {
		return nil
	}
	lock := c.transaction(ecs.AccessWrite)
	defer lock.Release()

	for _, a := range assignments {
		name, rhs, ok := strings.Cut(a, "=")
		if !ok {
			return fmt.Errorf("assignment %q is not of the form signal=value", a)
		}
		ref, err := c.mgr.ParseRef(strings.TrimSpace(name), c.loaded.Scope)
		if err != nil {
			return err
		}
		c.loaded.Refs = append(c.loaded.Refs, ref)

		rhs = strings.TrimSpace(rhs)
		if v, err := strconv.ParseFloat(rhs, 64); err == nil {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%s: value %v is not finite", ref, v)
			}
			ref.SetValue(lock, v)
			continue
		}
		if err := ref.SetBindingText(lock, rhs, c.loaded.Scope); err != nil {
			return fmt.Errorf("%s: %w", ref, err)
		}
	}
	return nil
}

// eval parses text in the scene's scope and prints its canonical form and
// value.
func (c *console) eval(text string) (float64, error) {
	expr, err := c.mgr.Parse(text, c.loaded.Scope)
	if err != nil {
		return 0, err
	}
	lock := c.transaction(ecs.AccessWrite)
	defer lock.Release()

	v := expr.Evaluate(lock, 0)
	fmt.Fprintf(c.out, "%s = %s\n", expr, formatValue(v))
	return v, nil
}

func (c *console) get(names ...string) error {
	lock := c.transaction(ecs.AccessWrite)
	defer lock.Release()

	for _, name := range names {
		ref, err := c.mgr.ParseRef(name, c.loaded.Scope)
		if err != nil {
			return err
		}
		v := ref.GetSignal(lock)
		fmt.Fprintf(c.out, "%s = %s\n", ref, formatValue(v))
		ref.Close()
	}
	return nil
}

// list prints every signal whose name contains filter. The dirty column is
// sampled before the value is read.
func (c *console) list(filter string) {
	lock := c.transaction(ecs.AccessWrite)
	defer lock.Release()

	tbl := table.NewWriter()
	tbl.SetTitle(fmt.Sprintf("Signals (%s)", c.mode))
	tbl.SetOutputMirror(c.out)
	tbl.AppendHeader(table.Row{"signal", "value", "binding", "dirty", "subscribers"})

	for _, h := range c.mgr.FindMatching(filter) {
		st, ok := c.mgr.State(lock, h)
		if !ok {
			continue
		}
		binding := ""
		if st.Binding != nil {
			binding = st.Binding.String()
		}
		tbl.AppendRow(table.Row{
			h.String(),
			formatValue(c.mgr.Signal(lock, h)),
			binding,
			st.Dirty,
			st.Subscribed,
		})
	}
	tbl.Render()
}

func (c *console) nodes() {
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"kind", "node", "children"})
	tw.SetAutoWrapText(false)

	nodes := c.mgr.Pool().Nodes()
	for _, n := range nodes {
		tw.Append([]string{
			n.Kind().String(),
			n.String(),
			fmt.Sprint(len(n.Children())),
		})
	}
	tw.SetFooter([]string{"", "total", humanize.Comma(int64(len(nodes)))})
	tw.Render()
}

// graph renders the binding graph of every signal with a row as DOT.
func (c *console) graph() {
	lock := c.transaction(ecs.AccessWrite)
	defer lock.Release()

	g := templates.Graph{Name: c.loaded.Scope.Scene}
	for _, h := range c.mgr.FindMatching("") {
		st, ok := c.mgr.State(lock, h)
		if !ok {
			continue
		}
		label := h.String() + " = " + formatValue(c.mgr.Signal(lock, h))
		if st.Binding != nil {
			label += "\n" + st.Binding.String()
		}
		g.Nodes = append(g.Nodes, templates.GraphNode{
			ID:    h.String(),
			Label: label,
			Bound: st.Binding != nil,
			Dirty: st.Dirty,
		})
		for _, dep := range c.mgr.Dependencies(lock, h) {
			g.Edges = append(g.Edges, templates.GraphEdge{From: dep.String(), To: h.String()})
		}
	}
	templates.WriteDot(c.out, g)
}

// sweep retires idle signals and drops unused nodes once.
func (c *console) sweep(maxAge time.Duration) (retired, dropped int) {
	retired = c.mgr.Tick(maxAge)
	dropped = c.mgr.DropUnused()
	fmt.Fprintf(c.out, "retired %s signals, dropped %s nodes\n",
		humanize.Comma(int64(retired)), humanize.Comma(int64(dropped)))
	return retired, dropped
}

// stats prints the table sizes and every engine metric that has been
// recorded.
func (c *console) stats() error {
	lock := c.transaction(ecs.AccessRead)
	st := c.mgr.Stats(lock)
	lock.Release()
	fmt.Fprintln(c.out, st)

	families, err := c.metrics.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	tbl := table.NewWriter()
	tbl.SetOutputMirror(c.out)
	tbl.AppendHeader(table.Row{"metric", "labels", "value"})
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			}
			tbl.AppendRow(table.Row{mf.GetName(), strings.Join(labels, ","), humanize.Ftoa(v)})
		}
	}
	tbl.Render()
	return nil
}
