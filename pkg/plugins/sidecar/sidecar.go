// Package sidecar provides the sidecar plugin: spawning and managing
// helper processes bundled with the app. Programs must be granted by the
// caller's path scope; stdout and stderr are captured to per-process log
// files under the app data directory.
package sidecar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/oriel-shell/oriel/pkg/plugin"
)

// Name is the plugin name used in permissions and command paths.
const Name = "sidecar"

// ExitEvent is emitted through the host when a sidecar process ends.
const ExitEvent = "sidecar:exit"

// terminateGrace is how long terminate waits after the polite signal
// before force-killing.
const terminateGrace = 3 * time.Second

type proc struct {
	id      string
	program string
	args    []string
	cmd     *exec.Cmd
	logFile *os.File
	started time.Time
	done    chan struct{}
	exited  bool
	exitErr error
}

// Sidecar is the sidecar plugin.
type Sidecar struct {
	mu    sync.Mutex
	procs map[string]*proc
	host  plugin.Host
	log   zerolog.Logger
}

// New creates the sidecar plugin.
func New() *Sidecar {
	return &Sidecar{
		procs: make(map[string]*proc),
	}
}

// Name implements plugin.Plugin.
func (s *Sidecar) Name() string { return Name }

// Setup implements plugin.Plugin.
func (s *Sidecar) Setup(ctx context.Context, host plugin.Host) error {
	s.host = host
	s.log = host.Logger().With().Str("plugin", Name).Logger()
	return nil
}

// Shutdown implements plugin.Plugin. Running processes are terminated.
func (s *Sidecar) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	var running []*proc
	for _, p := range s.procs {
		if !p.exited {
			running = append(running, p)
		}
	}
	s.mu.Unlock()

	for _, p := range running {
		s.terminate(p)
	}
	return nil
}

// Commands implements plugin.Plugin.
func (s *Sidecar) Commands() []plugin.Command {
	return []plugin.Command{
		{
			Name:        "spawn",
			Description: "Start a helper process. The program path must be granted by the capability scope.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"program":{"type":"string","description":"Absolute path to the executable"},"args":{"type":"array","items":{"type":"string"}}},"required":["program"]}`),
			Handler:     s.handleSpawn,
		},
		{
			Name:        "terminate",
			Description: "Stop a spawned process. Returns whether it was still running.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
			Handler:     s.handleTerminate,
		},
		{
			Name:        "list",
			Description: "List spawned processes and their state.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
			Handler:     s.handleList,
		},
	}
}

type spawnInput struct {
	Program string   `json:"program"`
	Args    []string `json:"args"`
}

type idInput struct {
	ID string `json:"id"`
}

// entryInfo is the list/spawn result shape.
type entryInfo struct {
	ID        string    `json:"id"`
	Program   string    `json:"program"`
	PID       int       `json:"pid"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at"`
	LogFile   string    `json:"log_file"`
}

func (s *Sidecar) handleSpawn(ctx context.Context, inv plugin.Invocation) (any, error) {
	var in spawnInput
	if err := json.Unmarshal(inv.Args, &in); err != nil {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "parse arguments: %v", err)
	}
	if !filepath.IsAbs(in.Program) {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "program %q is not an absolute path", in.Program)
	}
	program := filepath.Clean(in.Program)
	if _, err := os.Stat(program); err != nil {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "stat program: %v", err)
	}
	if err := inv.Scope.PermitsPath(program); err != nil {
		return nil, plugin.Errorf(plugin.CodeDenied, "%v", err)
	}

	id := xid.New().String()

	logDir := filepath.Join(s.host.DataDir(), "logs")
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, fmt.Errorf("sidecar: create log dir: %w", err)
	}
	logPath := filepath.Join(logDir, "sidecar-"+id+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("sidecar: create log file: %w", err)
	}

	cmd := exec.Command(program, in.Args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		_ = os.Remove(logPath)
		return nil, fmt.Errorf("sidecar: start %s: %w", program, err)
	}

	p := &proc{
		id:      id,
		program: program,
		args:    in.Args,
		cmd:     cmd,
		logFile: logFile,
		started: time.Now(),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.procs[id] = p
	snapshot := s.info(p)
	s.mu.Unlock()

	go s.reap(p)

	s.log.Info().Str("sidecar", id).Str("program", program).Int("pid", cmd.Process.Pid).Msg("spawned")
	return snapshot, nil
}

// reap waits for the process, records its exit and notifies listeners.
func (s *Sidecar) reap(p *proc) {
	err := p.cmd.Wait()

	s.mu.Lock()
	p.exited = true
	p.exitErr = err
	_ = p.logFile.Close()
	s.mu.Unlock()
	close(p.done)

	exitCode := 0
	if err != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}
	if emitErr := s.host.Emit(ExitEvent, map[string]any{"id": p.id, "exit_code": exitCode}); emitErr != nil {
		s.log.Warn().Err(emitErr).Str("sidecar", p.id).Msg("emit exit event")
	}
	s.log.Info().Str("sidecar", p.id).Int("exit_code", exitCode).Msg("exited")
}

func (s *Sidecar) handleTerminate(ctx context.Context, inv plugin.Invocation) (any, error) {
	var in idInput
	if err := json.Unmarshal(inv.Args, &in); err != nil {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "parse arguments: %v", err)
	}
	if in.ID == "" {
		return nil, plugin.Errorf(plugin.CodeBadRequest, "id must not be empty")
	}

	s.mu.Lock()
	p, ok := s.procs[in.ID]
	running := ok && !p.exited
	s.mu.Unlock()

	if !running {
		return false, nil
	}
	s.terminate(p)
	return true, nil
}

// terminate signals the process group politely, then force-kills after
// the grace period.
func (s *Sidecar) terminate(p *proc) {
	signalTerm(p.cmd)
	select {
	case <-p.done:
	case <-time.After(terminateGrace):
		signalKill(p.cmd)
		<-p.done
	}
}

func (s *Sidecar) handleList(ctx context.Context, inv plugin.Invocation) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entryInfo, 0, len(s.procs))
	for _, p := range s.procs {
		out = append(out, s.info(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// info snapshots one process. Callers must hold s.mu.
func (s *Sidecar) info(p *proc) entryInfo {
	return entryInfo{
		ID:        p.id,
		Program:   p.program,
		PID:       p.cmd.Process.Pid,
		Running:   !p.exited,
		StartedAt: p.started,
		LogFile:   p.logFile.Name(),
	}
}
