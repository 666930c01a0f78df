package launch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Master binds the listener once and supervises a fixed pool of worker
// processes serving it. Workers are respawned when they exit, killed
// when their oldest in-flight request or their heartbeat goes past
// RequestTimeout, and asked to drain with SIGTERM on shutdown. One
// worker timing out never disturbs its siblings.
type Master struct {
	cfg  Config
	log  *zap.Logger
	args []string

	// newCmd builds the bare worker command. The default re-execs this
	// binary with args; tests point it at a helper process. The master
	// attaches the inherited files and environment afterwards.
	newCmd func() (*exec.Cmd, error)

	scanEvery time.Duration

	mu      sync.Mutex
	addr    string
	workers map[int]*workerProc
}

type workerProc struct {
	slot    int
	cmd     *exec.Cmd
	started time.Time

	mu       sync.Mutex
	last     Beat
	lastSeen time.Time
	booted   bool
}

func (w *workerProc) observe(b Beat) {
	w.mu.Lock()
	w.last = b
	w.lastSeen = time.Now()
	w.booted = true
	w.mu.Unlock()
}

type workerExit struct {
	slot   int
	code   int
	booted bool
	uptime time.Duration
}

// NewMaster prepares a supervisor that will run workerArgs (the worker
// subcommand of this same binary) Workers times over one shared listener.
func NewMaster(cfg Config, workerArgs []string, log *zap.Logger) *Master {
	return &Master{
		cfg:  cfg,
		log:  log,
		args: workerArgs,
		newCmd: func() (*exec.Cmd, error) {
			exe, err := os.Executable()
			if err != nil {
				return nil, fmt.Errorf("locate executable: %w", err)
			}
			return exec.Command(exe, workerArgs...), nil
		},
		scanEvery: time.Second,
		workers:   make(map[int]*workerProc),
	}
}

// Addr is the bound listener address, set once Run has the listener.
func (m *Master) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// Run binds the listener, spawns the pool, and supervises until ctx is
// canceled. It returns early with an error when a worker fails its own
// boot, since respawning would only repeat the failure.
func (m *Master) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.cfg.Addr())
	if err != nil {
		return fmt.Errorf("bind %s: %w", m.cfg.Addr(), err)
	}
	defer ln.Close()

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return fmt.Errorf("unexpected listener type %T", ln)
	}
	lnFile, err := tcpLn.File()
	if err != nil {
		return fmt.Errorf("dup listener: %w", err)
	}
	defer lnFile.Close()

	m.mu.Lock()
	m.addr = ln.Addr().String()
	m.mu.Unlock()

	m.log.Info("master listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("workers", m.cfg.Workers))

	exits := make(chan workerExit, m.cfg.Workers*2)
	respawn := make(chan int, m.cfg.Workers*2)
	fastFails := make(map[int]int)

	for slot := 0; slot < m.cfg.Workers; slot++ {
		if err := m.startWorker(slot, lnFile, exits); err != nil {
			m.shutdown(exits)
			return err
		}
	}

	tick := time.NewTicker(m.scanEvery)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return m.shutdown(exits)

		case ex := <-exits:
			m.removeWorker(ex.slot)
			if ex.code == BootFailureCode && !ex.booted {
				bootErr := fmt.Errorf("worker %d failed to boot (exit %d)", ex.slot, ex.code)
				m.log.Error("worker pool unrecoverable", zap.Error(bootErr))
				m.shutdown(exits)
				return bootErr
			}
			if ex.uptime < time.Second {
				fastFails[ex.slot]++
			} else {
				fastFails[ex.slot] = 0
			}
			delay := respawnDelay(fastFails[ex.slot])
			m.log.Warn("worker exited",
				zap.Int("worker", ex.slot),
				zap.Int("code", ex.code),
				zap.Duration("uptime", ex.uptime),
				zap.Duration("respawn_in", delay))
			go func(slot int) {
				if delay > 0 {
					select {
					case <-time.After(delay):
					case <-ctx.Done():
						return
					}
				}
				select {
				case respawn <- slot:
				case <-ctx.Done():
				}
			}(ex.slot)

		case slot := <-respawn:
			if err := m.startWorker(slot, lnFile, exits); err != nil {
				m.log.Error("respawn failed", zap.Int("worker", slot), zap.Error(err))
				go func() {
					select {
					case <-time.After(time.Second):
						select {
						case respawn <- slot:
						case <-ctx.Done():
						}
					case <-ctx.Done():
					}
				}()
			}

		case <-tick.C:
			m.enforceTimeouts(time.Now())
		}
	}
}

func (m *Master) startWorker(slot int, lnFile *os.File, exits chan<- workerExit) error {
	hbR, hbW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("heartbeat pipe: %w", err)
	}

	cmd, err := m.newCmd()
	if err != nil {
		hbR.Close()
		hbW.Close()
		return err
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// ExtraFiles[0] becomes child fd 3, ExtraFiles[1] fd 4.
	cmd.ExtraFiles = []*os.File{lnFile, hbW}
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env,
		listenerFDEnv+"=3",
		heartbeatFDEnv+"=4",
		workerIDEnv+"="+strconv.Itoa(slot),
	)

	if err := cmd.Start(); err != nil {
		hbR.Close()
		hbW.Close()
		return fmt.Errorf("start worker %d: %w", slot, err)
	}
	// The child holds its own copy of the write end now; keeping ours
	// open would stop the pipe from ever reporting EOF.
	hbW.Close()

	w := &workerProc{slot: slot, cmd: cmd, started: time.Now()}
	w.lastSeen = w.started

	m.mu.Lock()
	m.workers[slot] = w
	m.mu.Unlock()

	m.log.Info("worker started", zap.Int("worker", slot), zap.Int("pid", cmd.Process.Pid))

	go func() {
		_ = ReadBeats(hbR, w.observe)
		hbR.Close()
	}()
	go func() {
		waitErr := cmd.Wait()
		w.mu.Lock()
		booted := w.booted
		w.mu.Unlock()
		exits <- workerExit{
			slot:   slot,
			code:   exitCode(waitErr),
			booted: booted,
			uptime: time.Since(w.started),
		}
	}()
	return nil
}

func (m *Master) removeWorker(slot int) {
	m.mu.Lock()
	delete(m.workers, slot)
	m.mu.Unlock()
}

// enforceTimeouts SIGKILLs any worker past its limits. The exit is
// reaped by the usual Wait goroutine, so the respawn path is shared
// with ordinary crashes.
func (m *Master) enforceTimeouts(now time.Time) {
	m.mu.Lock()
	procs := make([]*workerProc, 0, len(m.workers))
	for _, w := range m.workers {
		procs = append(procs, w)
	}
	m.mu.Unlock()

	for _, w := range procs {
		w.mu.Lock()
		reason, kill := shouldKill(w.last, w.lastSeen, now, m.cfg.RequestTimeout)
		w.mu.Unlock()
		if !kill {
			continue
		}
		m.log.Error("killing worker over limits",
			zap.Int("worker", w.slot),
			zap.Int("pid", w.cmd.Process.Pid),
			zap.String("reason", reason))
		_ = w.cmd.Process.Kill()
	}
}

// shutdown forwards SIGTERM to the pool, waits GraceTimeout for it to
// drain, then SIGKILLs stragglers. Always reaps every child it started.
func (m *Master) shutdown(exits <-chan workerExit) error {
	m.mu.Lock()
	remaining := len(m.workers)
	for _, w := range m.workers {
		_ = w.cmd.Process.Signal(syscall.SIGTERM)
	}
	m.mu.Unlock()

	if remaining == 0 {
		return nil
	}
	m.log.Info("stopping workers", zap.Int("count", remaining))

	deadline := time.NewTimer(m.cfg.GraceTimeout)
	defer deadline.Stop()
	for remaining > 0 {
		select {
		case ex := <-exits:
			m.removeWorker(ex.slot)
			remaining--
		case <-deadline.C:
			m.mu.Lock()
			for _, w := range m.workers {
				m.log.Warn("killing straggler", zap.Int("worker", w.slot), zap.Int("pid", w.cmd.Process.Pid))
				_ = w.cmd.Process.Kill()
			}
			m.mu.Unlock()
			for remaining > 0 {
				ex := <-exits
				m.removeWorker(ex.slot)
				remaining--
			}
			return nil
		}
	}
	return nil
}

// respawnDelay dampens crash loops: 100ms doubled per consecutive fast
// failure, capped at 5s. A worker that lived at least a second resets
// the counter, so steady-state replacement stays immediate.
func respawnDelay(fastFails int) time.Duration {
	if fastFails <= 0 {
		return 0
	}
	if fastFails >= 6 {
		return 5 * time.Second
	}
	d := 100 * time.Millisecond << (fastFails - 1)
	if d > 5*time.Second {
		return 5 * time.Second
	}
	return d
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// livePIDs maps worker slot to pid for the currently tracked pool.
func (m *Master) livePIDs() map[int]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]int, len(m.workers))
	for slot, w := range m.workers {
		out[slot] = w.cmd.Process.Pid
	}
	return out
}
