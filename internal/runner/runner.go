// Package runner owns the sandboxed build/run lifecycle for one client
// session: at most one live process, cooperative cancellation, and
// incremental output streaming back to the session connection.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/rs/zerolog"

	"github.com/devroom-sh/devroom/internal/metrics"
	"github.com/devroom-sh/devroom/internal/models"
)

// State is the run session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateBuilding
	StateRunning
	StateStopped
	StateFailed
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Sink receives runner events. Implemented by the session connection.
type Sink interface {
	Output(line string)
	StateChanged(state State)
	PreviewReady(addr string)
	PreviewCleared()
}

// portPattern matches a listening address announced on the process output.
var portPattern = regexp.MustCompile(`(?i)(?:localhost|127\.0\.0\.1|0\.0\.0\.0):(\d{2,5})`)

const killGrace = 5 * time.Second

// Runner executes build and start commands for one session's workspace.
// All methods are safe for concurrent use; Stop is effective while a
// build or start process is live.
type Runner struct {
	logger       zerolog.Logger
	workdirRoot  string
	buildTimeout time.Duration

	mu      sync.Mutex
	turn    *sync.Cond // signalled when the run slot frees or a process registers
	running bool       // the single run slot; only its holder may spawn
	state   State
	proc    *os.Process
	done    chan struct{} // closed when the live process is reaped
	workdir string
	stopped bool // Stop was requested for the live process
}

// New creates a runner. Workspaces are created under workdirRoot.
func New(logger zerolog.Logger, workdirRoot string, buildTimeout time.Duration) *Runner {
	r := &Runner{
		logger:       logger.With().Str("component", "runner").Logger(),
		workdirRoot:  workdirRoot,
		buildTimeout: buildTimeout,
		state:        StateIdle,
	}
	r.turn = sync.NewCond(&r.mu)
	return r
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Run materializes the file tree and executes the build then start
// commands, streaming output to sink. Any previously live process is
// killed and reaped before the new run begins. Run blocks until the
// start process exits or fails to spawn; callers run it in their own
// goroutine.
func (r *Runner) Run(ctx context.Context, tree models.FileTree, suggestedBuild, suggestedStart *models.Command, sink Sink) error {
	// Supersede: at most one live process per session. The slot is held
	// for the whole run, so two concurrent Runs can never both spawn.
	r.acquire(sink)
	defer r.release()

	metrics.RunsStarted.Inc()

	dir, err := materialize(r.workdirRoot, tree)
	if err != nil {
		sink.Output(fmt.Sprintf("Failed to mount project: %v", err))
		r.setState(StateFailed, sink)
		metrics.RunsFailed.Inc()
		return err
	}

	r.mu.Lock()
	if r.workdir != "" {
		os.RemoveAll(r.workdir)
	}
	r.workdir = dir
	r.stopped = false
	r.mu.Unlock()

	build, start := resolveCommands(tree, suggestedBuild, suggestedStart)

	if build != nil {
		if err := r.runBuild(ctx, dir, build, sink); err != nil {
			return err
		}
	} else {
		sink.Output("No build command found; skipping build step.")
	}

	if start == nil {
		sink.Output("No start command found; nothing to run.")
		r.setState(StateIdle, sink)
		return nil
	}

	return r.runStart(ctx, dir, start, sink)
}

// runBuild runs the build command to completion. A non-zero exit aborts
// the run sequence.
func (r *Runner) runBuild(ctx context.Context, dir string, build *models.Command, sink Sink) error {
	r.setState(StateBuilding, sink)
	sink.Output(fmt.Sprintf("Running build command: %s %s", build.MainItem, strings.Join(build.Commands, " ")))

	buildCtx := ctx
	if r.buildTimeout > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(ctx, r.buildTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(buildCtx, build.MainItem, build.Commands...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return r.failSpawn(err, sink)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return r.failSpawn(err, sink)
	}

	done := make(chan struct{})
	r.mu.Lock()
	r.proc = cmd.Process
	r.done = done
	r.turn.Broadcast() // a superseding Run may be waiting to kill us
	r.mu.Unlock()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		sink.Output(scanner.Text())
	}

	err = cmd.Wait()
	close(done)

	r.mu.Lock()
	r.proc = nil
	stopped := r.stopped
	r.mu.Unlock()

	if stopped {
		sink.Output("Build cancelled.")
		r.setState(StateStopped, sink)
		return context.Canceled
	}
	if err != nil {
		sink.Output(fmt.Sprintf("Build failed: %v", err))
		r.setState(StateFailed, sink)
		metrics.RunsFailed.Inc()
		return err
	}

	sink.Output("Build completed.")
	return nil
}

// runStart spawns the start command under a pty so output arrives
// unbuffered, streams it, and watches for a listening address.
func (r *Runner) runStart(ctx context.Context, dir string, start *models.Command, sink Sink) error {
	sink.Output(fmt.Sprintf("Running start command: %s %s", start.MainItem, strings.Join(start.Commands, " ")))

	cmd := exec.Command(start.MainItem, start.Commands...)
	cmd.Dir = dir

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return r.failSpawn(err, sink)
	}
	defer ptmx.Close()

	done := make(chan struct{})
	r.mu.Lock()
	r.proc = cmd.Process
	r.done = done
	r.turn.Broadcast() // a superseding Run may be waiting to kill us
	r.mu.Unlock()

	r.setState(StateRunning, sink)

	previewSeen := false
	scanner := bufio.NewScanner(ptmx)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		sink.Output(line)
		if !previewSeen {
			if m := portPattern.FindStringSubmatch(line); m != nil {
				previewSeen = true
				sink.PreviewReady("http://localhost:" + m[1])
			}
		}
	}
	// The pty read fails with EIO when the child exits; that is the
	// normal end-of-stream signal, not an error.

	waitErr := cmd.Wait()
	close(done)

	r.mu.Lock()
	r.proc = nil
	stopped := r.stopped
	r.mu.Unlock()

	sink.PreviewCleared()

	if stopped {
		r.setState(StateStopped, sink)
		return nil
	}
	if waitErr != nil {
		sink.Output(fmt.Sprintf("Process exited: %v", waitErr))
	} else {
		sink.Output("Process exited.")
	}
	r.setState(StateIdle, sink)
	return nil
}

// Stop terminates the live process, if any. Stopping an idle session is
// a no-op that is reported, not an error.
func (r *Runner) Stop(sink Sink) {
	r.mu.Lock()
	proc := r.proc
	if proc == nil {
		r.mu.Unlock()
		sink.Output("No running process to stop.")
		return
	}
	r.stopped = true
	done := r.done
	r.mu.Unlock()

	terminate(proc, done, r.logger)
	// State transition happens in the run goroutine once the process
	// is reaped, so observers never see Stopped with a live process.
}

// acquire claims the run slot, superseding any run that holds it. Each
// time the previous run's process shows up it is signalled to die; the
// caller blocks until the previous Run has fully unwound, so the new
// process never coexists with the old one.
func (r *Runner) acquire(sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	announced := false
	for r.running {
		if r.proc != nil && !r.stopped {
			r.stopped = true
			if !announced {
				announced = true
				sink.Output("Stopping previous process...")
			}
			go terminate(r.proc, r.done, r.logger)
		}
		r.turn.Wait()
	}
	r.running = true
}

// release frees the run slot and wakes superseding Runs.
func (r *Runner) release() {
	r.mu.Lock()
	r.running = false
	r.turn.Broadcast()
	r.mu.Unlock()
}

// Close releases the runner's workspace and kills any live process.
func (r *Runner) Close() {
	r.mu.Lock()
	proc := r.proc
	done := r.done
	if proc != nil {
		r.stopped = true
	}
	dir := r.workdir
	r.workdir = ""
	r.mu.Unlock()

	if proc != nil {
		terminate(proc, done, r.logger)
		<-done
	}
	if dir != "" {
		os.RemoveAll(dir)
	}
}

func (r *Runner) setState(s State, sink Sink) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	sink.StateChanged(s)
}

func (r *Runner) failSpawn(err error, sink Sink) error {
	r.mu.Lock()
	r.proc = nil
	r.mu.Unlock()
	sink.Output(fmt.Sprintf("Failed to start process: %v", err))
	r.setState(StateFailed, sink)
	metrics.RunsFailed.Inc()
	return err
}

// terminate tries a graceful interrupt first, then force-kills after a
// grace period or once the reaper signals the process is gone.
func terminate(proc *os.Process, done <-chan struct{}, logger zerolog.Logger) {
	if err := proc.Signal(os.Interrupt); err != nil {
		logger.Debug().Err(err).Msg("interrupt failed, killing")
		_ = proc.Kill()
		return
	}

	select {
	case <-done:
	case <-time.After(killGrace):
		logger.Debug().Int("pid", proc.Pid).Msg("grace period elapsed, killing")
		_ = proc.Kill()
	}
}
