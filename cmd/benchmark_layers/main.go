package main

import (
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/delaneyj/signalexpr/ecs"
	"github.com/delaneyj/signalexpr/signals"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	log.Print("Starting layered binding benchmark, please wait...")
	defer log.Print("Finished layered binding benchmark")

	perfTestCfgs := []benchmarkTestConfig{
		{
			name:           "simple component",
			width:          10,
			staticFraction: 1,
			nSources:       2,
			totalLayers:    5,
			readFraction:   0.2,
			iterations:     60000,
		},
		{
			name:           "dynamic component",
			width:          10,
			totalLayers:    10,
			staticFraction: 0.75,
			nSources:       6,
			readFraction:   0.2,
			iterations:     15000,
		},
		{
			name:           "large scene",
			width:          1000,
			totalLayers:    12,
			staticFraction: 0.95,
			nSources:       4,
			readFraction:   1,
			iterations:     700,
		},
		{
			name:           "wide dense",
			width:          1000,
			totalLayers:    5,
			staticFraction: 1,
			nSources:       25,
			readFraction:   1,
			iterations:     300,
		},
		{
			name:           "deep",
			width:          5,
			totalLayers:    500,
			staticFraction: 1,
			nSources:       3,
			readFraction:   1,
			iterations:     500,
		},
		{
			name:           "very dynamic",
			width:          100,
			totalLayers:    15,
			staticFraction: 0.5,
			nSources:       6,
			readFraction:   1,
			iterations:     2000,
		},
	}

	type results struct {
		sum      float64
		count    int64
		duration time.Duration
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		"size", "nSources", "read%", "static%",
		"nTimes", "test", "time",
		"evaluations", "updateRate", "nodes", "title",
	})

	testRepeats := 5
	for _, cfg := range perfTestCfgs {
		log.Printf("Running '%s' config", cfg.name)
		graph := benchmarkMakeGraph(&cfg)

		runOnce := func() float64 {
			return benchmarkRunGraph(&benchmarkRunGraphConfig{
				graph:        graph,
				iteration:    cfg.iterations,
				readFraction: cfg.readFraction,
			})
		}
		// run once to warm up
		runOnce()

		bestResult := &results{
			duration: time.Hour,
		}

		for i := 0; i < testRepeats; i++ {
			log.Printf("Running '%s' config, iteration %d/%d %d%%", cfg.name, i+1, testRepeats, (i+1)*100/testRepeats)
			before := graph.evaluations()
			start := time.Now()
			sum := runOnce()
			duration := time.Since(start)

			if duration < bestResult.duration {
				bestResult.duration = duration
				bestResult.sum = sum
				bestResult.count = graph.evaluations() - before
			}
		}

		makeTitle := func() string {
			sb := strings.Builder{}
			sb.WriteString(fmt.Sprintf("%dx%d %d sources", cfg.width, cfg.totalLayers, cfg.nSources))
			if cfg.staticFraction < 1 {
				sb.WriteString(" dynamic")
			}
			if cfg.readFraction < 1 {
				sb.WriteString(fmt.Sprintf(" read %0.2f%%", 100*cfg.readFraction))
			}
			return sb.String()
		}

		updateRate := float64(bestResult.count) / (float64(bestResult.duration) / float64(time.Millisecond))

		table.Append([]string{
			fmt.Sprintf("%dx%d", cfg.width, cfg.totalLayers), // size
			fmt.Sprint(cfg.nSources),                         // nSources
			fmt.Sprint(cfg.readFraction),                     // read%
			fmt.Sprint(cfg.staticFraction),                   // static%
			humanize.Comma(cfg.iterations),                   // nTimes
			cfg.name,                                         // test
			fmt.Sprint(bestResult.duration),                  // time
			humanize.Comma(bestResult.count),                 // evaluations
			humanize.Comma(int64(updateRate)),                // updateRate
			humanize.Comma(int64(graph.mgr.NodeCount())),     // nodes
			makeTitle(),                                      // title
		})
		graph.close()
	}
	table.Render()
}

type benchmarkTestConfig struct {
	name           string  // friendly name for the test, should be unique
	width          int64   // width of dependency graph to construct
	totalLayers    int64   // depth of dependency graph to construct
	staticFraction float64 // fraction of nodes whose binding always reads every source
	nSources       int64   // number of sources each node reads
	readFraction   float64 // fraction of [0, 1] elements in the last layer read each iteration
	iterations     int64   // number of test iterations
}

type benchmarkGraph struct {
	mgr     *signals.Manager
	metrics *prometheus.Registry
	sources []*signals.Ref
	layers  [][]*signals.Ref
}

// evaluations returns how many bindings have been computed and cached.
func (g *benchmarkGraph) evaluations() int64 {
	families, err := g.metrics.Gather()
	if err != nil {
		log.Panic(err)
	}
	for _, mf := range families {
		if mf.GetName() == "signals_cache_misses_total" {
			return int64(mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	return 0
}

func (g *benchmarkGraph) close() {
	for _, ref := range g.sources {
		ref.Close()
	}
	for _, row := range g.layers {
		for _, ref := range row {
			ref.Close()
		}
	}
}

func benchmarkMakeGraph(cfg *benchmarkTestConfig) *benchmarkGraph {
	reg := prometheus.NewRegistry()
	sigCfg := signals.DefaultConfig()
	sigCfg.MaxDepth = int(cfg.totalLayers) + 2
	sigCfg.Metrics = reg
	sigCfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	mgr := signals.NewManager(ecs.NewWorld(), sigCfg)

	lock := mgr.World().StartTransaction(ecs.Live, ecs.Write(ecs.Signals))
	defer lock.Release()

	sources := make([]*signals.Ref, cfg.width)
	for i := range sources {
		sources[i] = benchmarkRef(mgr, 0, i)
		sources[i].SetValue(lock, float64(i))
	}
	graph := &benchmarkGraph{mgr: mgr, metrics: reg, sources: sources}
	graph.layers = makeBenchmarkDependentRows(&benchmarkMakeDependentRowsConfig{
		mgr:            mgr,
		lock:           lock,
		sources:        sources,
		numRows:        cfg.totalLayers - 1,
		staticFraction: cfg.staticFraction,
		nSources:       cfg.nSources,
	})
	return graph
}

func benchmarkRef(mgr *signals.Manager, layer, index int) *signals.Ref {
	ref, err := mgr.RefName(ecs.Name{Scene: "bench", Entity: fmt.Sprintf("layer%d", layer)}, fmt.Sprintf("n%d", index))
	if err != nil {
		log.Panic(err)
	}
	return ref
}

type benchmarkRunGraphConfig struct {
	graph        *benchmarkGraph
	iteration    int64
	readFraction float64
}

// Execute the graph by writing one of the sources and reading some or all of the leaves.
// return the sum of all leaf values
func benchmarkRunGraph(cfg *benchmarkRunGraphConfig) float64 {
	random := rand.New(rand.NewSource(0))
	leaves := cfg.graph.layers[len(cfg.graph.layers)-1]
	skipCount := int(math.Round(float64(len(leaves)) * (1 - cfg.readFraction)))
	readLeaves := benchmarkRemoveElems(leaves, skipCount, random)

	lock := cfg.graph.mgr.World().StartTransaction(ecs.Live, ecs.Write(ecs.Signals))
	defer lock.Release()

	for i := 0; i < int(cfg.iteration); i++ {
		sourceDex := i % len(cfg.graph.sources)
		cfg.graph.sources[sourceDex].SetValue(lock, float64(i+sourceDex))

		for _, leaf := range readLeaves {
			leaf.GetSignal(lock)
		}
	}

	sum := 0.0
	for _, leaf := range readLeaves {
		sum += leaf.GetSignal(lock)
	}
	return sum
}

func benchmarkRemoveElems[T comparable](src []T, rmCount int, rand *rand.Rand) []T {
	copyWithRemovals := make([]T, len(src))
	copy(copyWithRemovals, src)
	for i := 0; i < rmCount; i++ {
		rmDex := rand.Intn(len(copyWithRemovals))
		copyWithRemovals[rmDex] = copyWithRemovals[len(copyWithRemovals)-1]
		copyWithRemovals = copyWithRemovals[:len(copyWithRemovals)-1]
	}
	return copyWithRemovals
}

type benchmarkMakeDependentRowsConfig struct {
	mgr               *signals.Manager
	lock              *ecs.Lock
	sources           []*signals.Ref
	numRows, nSources int64
	staticFraction    float64
}

func makeBenchmarkDependentRows(cfg *benchmarkMakeDependentRowsConfig) [][]*signals.Ref {
	prevRow := make([]*signals.Ref, len(cfg.sources))
	copy(prevRow, cfg.sources)

	random := rand.New(rand.NewSource(0))
	rows := make([][]*signals.Ref, cfg.numRows)
	for l := int64(0); l < cfg.numRows; l++ {
		rows[l] = makeBenchmarkRow(&benchmarkRowConfig{
			mgr:            cfg.mgr,
			lock:           cfg.lock,
			layer:          int(l) + 1,
			sources:        prevRow,
			staticFraction: cfg.staticFraction,
			nSources:       cfg.nSources,
			rand:           random,
		})
		prevRow = rows[l]
	}
	return rows
}

type benchmarkRowConfig struct {
	mgr            *signals.Manager
	lock           *ecs.Lock
	layer          int
	sources        []*signals.Ref
	staticFraction float64
	nSources       int64
	rand           *rand.Rand
}

// makeBenchmarkRow binds every node of a layer to nSources nodes of the
// layer before it. Static nodes average all of them. Dynamic nodes leave one
// out when the first source is odd, so which signals they read changes from
// one evaluation to the next.
func makeBenchmarkRow(cfg *benchmarkRowConfig) []*signals.Ref {
	row := make([]*signals.Ref, len(cfg.sources))

	for myDex := range cfg.sources {
		mySources := make([]string, 0, cfg.nSources)
		for sourceDex := 0; sourceDex < int(cfg.nSources); sourceDex++ {
			x := (myDex + sourceDex) % len(cfg.sources)
			mySources = append(mySources, cfg.sources[x].String())
		}

		var text string
		staticNode := cfg.rand.Float64() < cfg.staticFraction
		if staticNode || len(mySources) < 2 {
			text = average(mySources)
		} else {
			first := mySources[0]
			tail := mySources[1:]
			dropDex := myDex % len(tail)
			kept := make([]string, 0, len(tail))
			kept = append(kept, first)
			for i, s := range tail {
				if i != dropDex {
					kept = append(kept, s)
				}
			}
			text = fmt.Sprintf("floor(%s / 2) * 2 != %s ? %s : %s",
				first, first, average(kept), average(mySources))
		}

		row[myDex] = benchmarkRef(cfg.mgr, cfg.layer, myDex)
		if err := row[myDex].SetBindingText(cfg.lock, text, ecs.Name{}); err != nil {
			log.Panic(err)
		}
	}
	return row
}

func average(names []string) string {
	return fmt.Sprintf("(%s) / %d", strings.Join(names, " + "), len(names))
}
