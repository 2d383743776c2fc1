// Package build implements the executor (spec §4.8): running a BuildPlan
// with bounded parallelism for compile steps and strict sequential order for
// archive, link, and external-recipe steps.
package build

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/harbour-build/harbour/src/fingerprint"
	"github.com/harbour-build/harbour/src/plan"
	"github.com/harbour-build/harbour/src/toolchain"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("build")

// CancelGracePeriod is how long in-flight subprocesses are given to exit
// after a cancellation signal before the executor sends terminate signals
// (spec §5 Cancellation & timeouts).
const CancelGracePeriod = 5 * time.Second

// Executor runs a BuildPlan against one toolchain, skipping steps whose
// fingerprint is unchanged and whose declared outputs already exist.
type Executor struct {
	Plan        *plan.BuildPlan
	Toolchain   toolchain.Toolchain
	Store       *fingerprint.Store
	ToolchainFP fingerprint.Digest
	Parallelism int

	failed  atomic.Bool
	firstErr error
	errMu   sync.Mutex
}

// Run executes every step of e.Plan in order, honoring the concurrency and
// ordering rules of spec §5: compile steps for a batch run in parallel;
// archive/link/external steps run sequentially once their predecessors
// finish. On any failure the executor stops scheduling new work, lets
// in-flight steps complete, and returns the first error encountered.
func (e *Executor) Run(ctx context.Context) error {
	steps := e.Plan.Steps
	i := 0
	for i < len(steps) {
		if steps[i].Kind == plan.StepCompile {
			j := i
			var batch []*plan.CompileStep
			for j < len(steps) && steps[j].Kind == plan.StepCompile {
				batch = append(batch, steps[j].Compile)
				j++
			}
			if err := e.runCompileBatch(ctx, batch); err != nil {
				return err
			}
			i = j
			continue
		}
		if e.cancelled(ctx) {
			return e.finish()
		}
		if err := e.runSequential(ctx, steps[i]); err != nil {
			e.recordError(err)
			return e.finish()
		}
		i++
	}
	return e.finish()
}

func (e *Executor) cancelled(ctx context.Context) bool {
	if e.failed.Load() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (e *Executor) recordError(err error) {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	if e.firstErr == nil {
		e.firstErr = err
	}
	e.failed.Store(true)
}

func (e *Executor) finish() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	if e.firstErr != nil {
		return e.firstErr
	}
	return nil
}

// runCompileBatch runs every step in batch with bounded parallelism
// (spec §4.8 Compile phase: "default = detected CPU count; overridable").
func (e *Executor) runCompileBatch(ctx context.Context, batch []*plan.CompileStep) error {
	sem := make(chan struct{}, e.parallelism())
	var wg sync.WaitGroup
	for _, step := range batch {
		if e.cancelled(ctx) {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(step *plan.CompileStep) {
			defer wg.Done()
			defer func() { <-sem }()
			if e.cancelled(ctx) {
				return
			}
			if err := e.runCompile(ctx, step); err != nil {
				e.recordError(err)
			}
		}(step)
	}
	wg.Wait()
	if e.failed.Load() {
		return e.finish()
	}
	return nil
}

// parallelism returns the configured compile concurrency, falling back to
// GOMAXPROCS (set from the container's CPU quota by the automaxprocs import
// in cmd/harbour, spec §4.8: "default = detected CPU count").
func (e *Executor) parallelism() int {
	if e.Parallelism > 0 {
		return e.Parallelism
	}
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 1
}

func (e *Executor) runSequential(ctx context.Context, step plan.Step) error {
	switch step.Kind {
	case plan.StepArchive:
		return e.runArchive(ctx, step.Archive)
	case plan.StepLink:
		return e.runLink(ctx, step.Link)
	case plan.StepExternal:
		return e.runExternal(ctx, step.External)
	default:
		return fmt.Errorf("unexpected step kind %v in sequential phase", step.Kind)
	}
}

// runCommand runs cmd under ctx. If ctx is cancelled while the subprocess is
// running, it is sent SIGTERM and given CancelGracePeriod to exit on its own
// before a SIGKILL follows (spec §5 Cancellation & timeouts: "wait for
// in-flight subprocesses with a short grace period..., then send terminate
// signals"). A run cut short by ctx returns ctx's error.
func runCommand(ctx context.Context, cmd toolchain.Command) (int, string, error) {
	c := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	c.Cancel = func() error {
		return c.Process.Signal(syscall.SIGTERM)
	}
	c.WaitDelay = CancelGracePeriod
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	out, err := c.CombinedOutput()
	if err != nil && ctx.Err() != nil {
		return -1, string(out), ctx.Err()
	}
	status := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		status = exitErr.ExitCode()
	} else if err != nil {
		return -1, string(out), err
	}
	return status, string(out), nil
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
