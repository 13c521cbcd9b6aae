package notifier

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner starts external programs. It is swapped out in tests.
type Runner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct{}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// command is one program invocation, e.g. {"aplay", "-q", "alert.wav"}.
type command []string

// commandChannel delivers a message by running the first available program
// from a list of candidates built for the current platform.
type commandChannel struct {
	name    string
	kind    ErrorKind
	runner  Runner
	missing string
	build   func(Message) []command
}

func (c *commandChannel) Name() string {
	return c.name
}

func (c *commandChannel) Notify(ctx context.Context, msg Message) error {
	for _, cmd := range c.build(msg) {
		if _, err := c.runner.LookPath(cmd[0]); err != nil {
			continue
		}
		if err := c.runner.Run(ctx, cmd[0], cmd[1:]...); err != nil {
			return &ChannelError{Channel: c.name, Kind: c.kind, Err: err}
		}
		return nil
	}
	return &ChannelError{Channel: c.name, Kind: c.kind, Err: errors.New(c.missing)}
}
