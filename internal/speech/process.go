package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// process is an external player or speech command running alongside the clock.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// startProcess runs argv until it exits or ctx is cancelled.
func startProcess(ctx context.Context, argv []string) (*process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	// #nosec G204 -- the command comes from the user's own config file
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}
	p := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Done is closed once the process has exited.
func (p *process) Done() <-chan struct{} {
	if p == nil {
		return nil
	}
	return p.done
}

// Err is the exit error. Only valid after Done is closed.
func (p *process) Err() error {
	if p.err != nil {
		return fmt.Errorf("%s: %w", p.cmd.Path, p.err)
	}
	return nil
}

// wait blocks until the process has exited. A nil process returns at once.
func (p *process) wait() {
	if p != nil {
		<-p.done
	}
}

// expandArgs substitutes {name} placeholders in a command template. When the
// template never mentions the trailing variable it is appended as the last
// argument.
func expandArgs(template []string, vars map[string]string, trailing string) []string {
	argv := make([]string, 0, len(template)+1)
	used := false
	for _, arg := range template {
		if strings.Contains(arg, "{"+trailing+"}") {
			used = true
		}
		for name, value := range vars {
			arg = strings.ReplaceAll(arg, "{"+name+"}", value)
		}
		argv = append(argv, arg)
	}
	if !used && trailing != "" {
		argv = append(argv, vars[trailing])
	}
	return argv
}
