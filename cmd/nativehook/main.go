// Command nativehook checks gamedata files and, with -resolve, locates
// every address they declare in the libraries loaded by the process.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"sync"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/corrreia/nativehook/internal/config"
	"github.com/corrreia/nativehook/internal/memory"
	"github.com/corrreia/nativehook/pkg/nativehook"
)

func main() {
	configPath := flag.String("config", "", "Path to "+config.FileName+" (default: search known paths)")
	platform := flag.String("platform", "", "Override the gamedata platform: linux or windows")
	resolve := flag.Bool("resolve", false, "Resolve addresses against the loaded libraries")
	fields := flag.Bool("fields", false, "List schema fields")
	jobs := flag.Int("j", 4, "Concurrent address resolutions")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *platform != "" {
		cfg.Platform = *platform
	}
	cfg.Gamedata = append(cfg.Gamedata, flag.Args()...)

	var rt *nativehook.Runtime
	if *resolve {
		rt, err = nativehook.Open(cfg)
	} else {
		rt, err = nativehook.New(memory.NewBuffer(), cfg)
	}
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	report(os.Stdout, rt, *fields)
	failed := 0
	if *resolve {
		failed = resolveAll(context.Background(), os.Stdout, rt, *jobs)
	}
	if err := rt.Close(); err != nil {
		log.Printf("Failed to remove hooks: %v", err)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Core, error) {
	if path == "" {
		return config.Find()
	}
	return config.Load(path)
}

// report prints the registered sets and their entry counts.
func report(w io.Writer, rt *nativehook.Runtime, listFields bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "SET\tOFFSETS\tVFUNCS\tADDRESSES\tFIELDS\n")
	for _, s := range rt.Gamedata().Sets() {
		o, v, a, f := s.Counts()
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", s.Name, o, v, a, f)
	}
	tw.Flush()

	if !listFields {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "FIELD\tTYPE\tOFFSET\tWIDTH\tNETWORKED\n")
	for _, s := range rt.Gamedata().Sets() {
		for _, f := range s.Fields() {
			fmt.Fprintf(tw, "%s::%s\t%s\t%#x\t%d\t%t\n", f.Class, f.Name, f.Type, f.Offset, f.Width, f.Networked)
		}
	}
	tw.Flush()
}

type resolution struct {
	name string
	addr uintptr
	err  error
}

// resolveAll resolves every declared address and returns how many failed.
func resolveAll(ctx context.Context, w io.Writer, rt *nativehook.Runtime, jobs int) int {
	seen := map[string]bool{}
	var names []string
	for _, s := range rt.Gamedata().Sets() {
		for _, n := range s.AddressNames() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)

	var (
		mu      sync.Mutex
		results []resolution
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, name := range names {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			addr, err := rt.Gamedata().GetAddress(name)
			mu.Lock()
			results = append(results, resolution{name, addr, err})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].name < results[j].name })

	failed := 0
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ADDRESS\tRESULT\n")
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(tw, "%s\t%v\n", r.name, r.err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%#x\n", r.name, r.addr)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d resolved, %d failed\n", len(results)-failed, failed)
	return failed
}
