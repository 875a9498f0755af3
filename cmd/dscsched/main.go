// Command dscsched loads a recipe list and an optional circular-dependency
// declarations file, computes a build schedule, and either prints the
// resulting group/priority plan (-dry_run) or drives an in-process
// simulated worker pool against the scheduler API (-simulate).
//
// Grounded on cmd/distri's batch command and internal/batch/batch.go's
// scheduler: the same flag set (-dry_run, -simulate, -jobs), the same
// terminal-gated status redraw via golang.org/x/sys/unix, and the same
// chrome trace-event instrumentation around each simulated build.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/starlingx/dscbuild"
	"github.com/starlingx/dscbuild/internal/index"
	"github.com/starlingx/dscbuild/internal/loader"
	"github.com/starlingx/dscbuild/internal/orchestrate"
	"github.com/starlingx/dscbuild/internal/scheduler"
	"github.com/starlingx/dscbuild/internal/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

var (
	recipeList = flag.String("recipes", "", "path to a recipe list file (required)")
	circular   = flag.String("circular", "", "path to a circular dependency declarations file")
	dryRun     = flag.Bool("dry_run", false, "print the computed group and priority plan, then exit")
	simulate   = flag.Bool("simulate", false, "drive a simulated worker pool instead of a real build")
	jobs       = flag.Int("jobs", runtime.NumCPU(), "number of parallel simulated workers")
	ctrace     = flag.Bool("ctrace", false, "write a chrome trace event file to $TMPDIR/dscbuild.traces (load in chrome://tracing)")
)

var isTerminal = func() bool {
	_, err := unix.IoctlGetTermios(int(os.Stdout.Fd()), unix.TCGETS)
	return err == nil
}()

func funcmain() error {
	flag.Parse()

	if *recipeList == "" {
		return xerrors.Errorf("-recipes is required")
	}
	if !*dryRun && !*simulate {
		return xerrors.Errorf("one of -dry_run or -simulate is required (dscsched does not execute real builds)")
	}
	if *ctrace {
		if err := trace.Enable("dscsched"); err != nil {
			return err
		}
	}

	plan, err := orchestrate.Build(loader.OSRecipeReader{}, *recipeList, *circular, index.MapIndex{})
	if err != nil {
		return err
	}

	if *dryRun {
		printPlan(plan)
		return dscbuild.RunAtExit()
	}

	ctx, canc := dscbuild.InterruptibleContext()
	defer canc()

	s := scheduler.New(plan.Graph, plan.Groups)
	if err := runWorkers(ctx, s, plan.Graph, *jobs); err != nil {
		return err
	}
	stats := s.Stats()
	log.Printf("%d of %d recipes accomplished", stats.Accomplished, stats.Total)
	return dscbuild.RunAtExit()
}

func printPlan(plan *orchestrate.Plan) {
	for i, g := range plan.Groups {
		switch g.Kind {
		case dscbuild.SimpleGroup:
			log.Printf("group %d: simple, %d recipe(s)", i, len(g.Members))
			for _, id := range g.Members {
				log.Printf("  %s (priority %d)", plan.Graph.Recipes[id].Name, g.Priorities[id])
			}
		case dscbuild.CircularGroup:
			names := make([]string, len(g.Order))
			for j, id := range g.Order {
				names[j] = plan.Graph.Recipes[id].Name
			}
			log.Printf("group %d: circular, order %s", i, strings.Join(names, " -> "))
		}
	}
}

// runWorkers starts jobs workers, each of which pulls recipes from the
// scheduler one at a time, simulates a build by sleeping a random short
// duration, and reports the outcome back.
func runWorkers(ctx context.Context, s *scheduler.Scheduler, g *dscbuild.DependencyGraph, jobs int) error {
	eg, ctx := errgroup.WithContext(ctx)

	var statusMu sync.Mutex
	status := make([]string, jobs)
	updateStatus := func(idx int, line string) {
		if !isTerminal {
			return
		}
		statusMu.Lock()
		defer statusMu.Unlock()
		status[idx] = line
		for _, l := range status {
			fmt.Println(l)
		}
		fmt.Printf("\033[%dA", len(status)) // restore cursor position
	}

	for i := 0; i < jobs; i++ {
		i := i
		eg.Go(func() error {
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				batch, err := s.NextBatch(1)
				if err != nil {
					return err
				}
				if len(batch) == 0 {
					if s.Done() {
						updateStatus(i, "idle (done)")
						return nil
					}
					select {
					case <-time.After(10 * time.Millisecond):
						continue
					case <-ctx.Done():
						return ctx.Err()
					}
				}

				id := batch[0]
				name := g.Recipes[id].Name
				ev := trace.Event("build "+name, i)
				ev.Type = "B"
				ev.Done()

				updateStatus(i, "building "+name)
				ok := buildDry(ctx, name)

				ev = trace.Event("build "+name, i)
				ev.Type = "E"
				ev.Done()

				if ok {
					if err := s.ReportSuccess(id); err != nil {
						return err
					}
				} else {
					log.Printf("build of %s failed (simulated)", name)
					if err := s.ReportFailure(id); err != nil {
						return err
					}
				}
				updateStatus(i, "idle")
			}
		})
	}
	return eg.Wait()
}

// buildDry stands in for a real build by sleeping a random short duration.
func buildDry(ctx context.Context, name string) bool {
	dur := 10*time.Millisecond + time.Duration(rand.Int63n(int64(50*time.Millisecond)))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(dur):
	}
	return true
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
