// Package local runs agent commands directly on the host, confined to
// the workspace directory. It is the default sandbox; use the docker
// sandbox when the host should not be exposed to agent commands.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/drover-dev/drover/internal/ports"
)

type managedProcess struct {
	cmd     *exec.Cmd
	command string
	output  *bytes.Buffer
	done    chan struct{}
	exit    int
}

type Sandbox struct {
	workDir string
	timeout time.Duration

	mu        sync.Mutex
	processes map[int]*managedProcess
	nextID    int
}

func New(workDir string, timeout time.Duration) *Sandbox {
	return &Sandbox{
		workDir:   workDir,
		timeout:   timeout,
		processes: make(map[int]*managedProcess),
	}
}

// Execute runs a foreground command and waits for it. A non-zero exit
// is not an error; it comes back in the result for the caller to judge.
func (s *Sandbox) Execute(ctx context.Context, command string) (ports.ExecResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = s.workDir

	out, err := cmd.CombinedOutput()
	result := ports.ExecResult{Output: string(out)}
	if err == nil {
		return result, nil
	}

	// A killed process also surfaces as an ExitError, so the deadline check
	// has to come first.
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.Output = fmt.Sprintf("command %q timed out", command)
		result.ExitCode = -1
		return result, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, fmt.Errorf("executing command: %w", err)
}

// StartBackground launches a command that outlives the call and returns
// its tracking id. The process gets its own group so Kill takes down
// any children the shell spawned.
func (s *Sandbox) StartBackground(_ context.Context, command string) (int, error) {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = s.workDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting background command: %w", err)
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	mp := &managedProcess{
		cmd:     cmd,
		command: command,
		output:  &buf,
		done:    make(chan struct{}),
	}
	s.processes[id] = mp
	s.mu.Unlock()

	go func() {
		err := cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			mp.exit = exitErr.ExitCode()
		} else if err != nil {
			mp.exit = -1
		}
		close(mp.done)
	}()

	return id, nil
}

// Kill terminates a background command's process group and waits for
// it to be reaped.
func (s *Sandbox) Kill(ctx context.Context, id int) error {
	s.mu.Lock()
	mp, ok := s.processes[id]
	if ok {
		delete(s.processes, id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("background command %d not found", id)
	}

	if mp.cmd.Process != nil {
		syscall.Kill(-mp.cmd.Process.Pid, syscall.SIGKILL)
	}
	select {
	case <-mp.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close kills every background command still running.
func (s *Sandbox) Close() error {
	s.mu.Lock()
	procs := s.processes
	s.processes = make(map[int]*managedProcess)
	s.mu.Unlock()

	for _, mp := range procs {
		if mp.cmd.Process != nil {
			syscall.Kill(-mp.cmd.Process.Pid, syscall.SIGKILL)
		}
		<-mp.done
	}
	return nil
}
