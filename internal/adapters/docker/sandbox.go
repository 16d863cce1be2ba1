// Package docker runs agent commands inside a long-lived container.
// The workspace directory is bind-mounted at /workspace and every
// command goes through docker exec, so nothing an agent runs touches
// the host directly.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/drover-dev/drover/internal/ports"
)

type backgroundCommand struct {
	cmd     *exec.Cmd
	pidFile string
	output  *bytes.Buffer
	done    chan struct{}
}

type Sandbox struct {
	containerID string
	timeout     time.Duration

	mu        sync.Mutex
	processes map[int]*backgroundCommand
	nextID    int
}

// New starts the sandbox container and leaves it idling until Close.
// The image is pulled first if the host does not have it.
func New(ctx context.Context, workDir, image string, timeout time.Duration) (*Sandbox, error) {
	if _, err := exec.LookPath("docker"); err != nil {
		return nil, fmt.Errorf("docker not found in PATH: %w", err)
	}

	if err := exec.CommandContext(ctx, "docker", "image", "inspect", image).Run(); err != nil {
		pullCmd := exec.CommandContext(ctx, "docker", "pull", image)
		var stderr bytes.Buffer
		pullCmd.Stderr = &stderr
		if err := pullCmd.Run(); err != nil {
			return nil, fmt.Errorf("pulling image %s: %s: %w", image, stderr.String(), err)
		}
	}

	runCmd := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"-v", workDir+":/workspace",
		"--workdir", "/workspace",
		image, "sleep", "infinity",
	)
	var stdout, stderr bytes.Buffer
	runCmd.Stdout = &stdout
	runCmd.Stderr = &stderr
	if err := runCmd.Run(); err != nil {
		return nil, fmt.Errorf("starting sandbox container: %s: %w", stderr.String(), err)
	}

	return &Sandbox{
		containerID: strings.TrimSpace(stdout.String()),
		timeout:     timeout,
		processes:   make(map[int]*backgroundCommand),
	}, nil
}

// ContainerID returns the id of the running sandbox container.
func (s *Sandbox) ContainerID() string { return s.containerID }

// Execute runs a foreground command in the container and waits for it.
// docker exec propagates the in-container exit code, so a non-zero exit
// comes back in the result rather than as an error.
func (s *Sandbox) Execute(ctx context.Context, command string) (ports.ExecResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "exec", s.containerID, "sh", "-c", command)
	out, err := cmd.CombinedOutput()
	result := ports.ExecResult{Output: string(out)}
	if err == nil {
		return result, nil
	}

	// A killed docker exec client also surfaces as an ExitError, so the
	// deadline check has to come first.
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
	return result, fmt.Errorf("executing command in container: %w", err)
}

// StartBackground launches a command in the container without waiting.
// The in-container pid lands in a pid file so Kill can reach the real
// process, not just the docker exec client.
func (s *Sandbox) StartBackground(_ context.Context, command string) (int, error) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	pidFile := fmt.Sprintf("/tmp/drover-bg-%d.pid", id)
	wrapped := fmt.Sprintf("echo $$ > %s; exec sh -c %s", pidFile, shellQuote(command))

	cmd := exec.Command("docker", "exec", s.containerID, "sh", "-c", wrapped)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting background command: %w", err)
	}

	bg := &backgroundCommand{
		cmd:     cmd,
		pidFile: pidFile,
		output:  &buf,
		done:    make(chan struct{}),
	}
	s.mu.Lock()
	s.processes[id] = bg
	s.mu.Unlock()

	go func() {
		cmd.Wait()
		close(bg.done)
	}()

	return id, nil
}

// Kill terminates a background command inside the container and reaps
// the docker exec client.
func (s *Sandbox) Kill(ctx context.Context, id int) error {
	s.mu.Lock()
	bg, ok := s.processes[id]
	if ok {
		delete(s.processes, id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("background command %d not found", id)
	}

	killCmd := exec.CommandContext(ctx, "docker", "exec", s.containerID,
		"sh", "-c", fmt.Sprintf("kill -9 $(cat %s) 2>/dev/null", bg.pidFile))
	killCmd.Run()

	if bg.cmd.Process != nil {
		bg.cmd.Process.Kill()
	}
	select {
	case <-bg.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close removes the sandbox container; --rm on the run takes the
// filesystem with it.
func (s *Sandbox) Close() error {
	s.mu.Lock()
	procs := s.processes
	s.processes = make(map[int]*backgroundCommand)
	s.mu.Unlock()

	for _, bg := range procs {
		if bg.cmd.Process != nil {
			bg.cmd.Process.Kill()
		}
		<-bg.done
	}

	cmd := exec.Command("docker", "rm", "-f", s.containerID)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("removing sandbox container: %s: %w", stderr.String(), err)
	}
	return nil
}

// shellQuote wraps a string in single quotes for safe transport through
// an outer sh -c.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
