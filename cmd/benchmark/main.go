package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime/pprof"
	"time"

	"github.com/delaneyj/signalexpr/ecs"
	"github.com/delaneyj/signalexpr/signals"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
)

var cpuProfile = flag.String("cpuprofile", "default.pgo", "write a cpu profile to this file")

func main() {
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	log.Printf("warming up")
	benchmarkChains(false)

	benchmarkChains(true)
	benchmarkFanOut(true)
}

var (
	ww     = []int{1, 10, 100}
	hh     = []int{1, 10, 100}
	fanout = []int{10, 100, 1_000, 10_000}
	iters  = 100
)

func newManager(maxDepth int) *signals.Manager {
	cfg := signals.DefaultConfig()
	cfg.MaxDepth = maxDepth
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return signals.NewManager(ecs.NewWorld(), cfg)
}

func mustRef(mgr *signals.Manager, entity, name string) *signals.Ref {
	ref, err := mgr.RefName(ecs.Name{Scene: "bench", Entity: entity}, name)
	if err != nil {
		log.Panic(err)
	}
	return ref
}

func bind(lock *ecs.Lock, ref *signals.Ref, text string) {
	if err := ref.SetBindingText(lock, text, ecs.Name{}); err != nil {
		log.Panic(err)
	}
}

func appendResult(tbl table.Writer, name string, tach *tachymeter.Tachymeter) {
	calc := tach.Calc()
	tbl.AppendRows([]table.Row{
		{
			name,
			calc.Time.Avg,
			calc.Time.Min,
			calc.Time.P75,
			calc.Time.P99,
			calc.Time.Max,
		},
	})
}

// benchmarkChains builds w independent chains of h bindings hanging off one
// source and times a write to the source followed by a read of every leaf.
func benchmarkChains(shouldRender bool) {
	tbl := table.NewWriter()
	tbl.SetTitle("Binding chains")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			mgr := newManager(h + 2)
			lock := mgr.World().StartTransaction(ecs.Live, ecs.Write(ecs.Signals))
			src := mustRef(mgr, "src", "value")
			src.SetValue(lock, 1)

			refs := []*signals.Ref{src}
			leaves := make([]*signals.Ref, 0, w)
			for i := range w {
				prev := src
				for j := range h {
					ref := mustRef(mgr, fmt.Sprintf("chain%d", i), fmt.Sprintf("n%d", j))
					bind(lock, ref, prev.String()+" + 1")
					refs = append(refs, ref)
					prev = ref
				}
				leaves = append(leaves, prev)
			}

			for i := range iters {
				start := time.Now()
				src.SetValue(lock, float64(i+2))
				for _, leaf := range leaves {
					leaf.GetSignal(lock)
				}
				tach.AddTime(time.Since(start))
			}

			want := float64(iters+1) + float64(h)
			if got := leaves[0].GetSignal(lock); got != want {
				log.Panicf("chain %d * %d: leaf is %v, want %v", w, h, got, want)
			}
			lock.Release()
			for _, ref := range refs {
				ref.Close()
			}

			appendResult(tbl, fmt.Sprintf("propagate: %d * %d", w, h), tach)
		}
	}

	if shouldRender {
		tbl.Render()
	}
}

// benchmarkFanOut binds n signals directly to one source. Every binding
// shares the pooled source node.
func benchmarkFanOut(shouldRender bool) {
	tbl := table.NewWriter()
	tbl.SetTitle("Fan out")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})

	for _, n := range fanout {
		tach := tachymeter.New(&tachymeter.Config{Size: iters})

		mgr := newManager(signals.DefaultMaxDepth)
		lock := mgr.World().StartTransaction(ecs.Live, ecs.Write(ecs.Signals))
		src := mustRef(mgr, "src", "value")
		src.SetValue(lock, 1)

		subs := make([]*signals.Ref, n)
		for i := range subs {
			subs[i] = mustRef(mgr, "fan", fmt.Sprintf("n%d", i))
			bind(lock, subs[i], fmt.Sprintf("%s * %d", src, i))
		}

		for i := range iters {
			start := time.Now()
			src.SetValue(lock, float64(i+2))
			for _, sub := range subs {
				sub.GetSignal(lock)
			}
			tach.AddTime(time.Since(start))
		}
		stats := mgr.Stats(lock)
		lock.Release()
		for _, sub := range subs {
			sub.Close()
		}
		src.Close()

		appendResult(tbl, fmt.Sprintf("fan out: %d (%d nodes)", n, stats.Nodes), tach)
	}

	if shouldRender {
		tbl.Render()
	}
}
