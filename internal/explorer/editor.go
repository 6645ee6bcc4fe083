package explorer

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tide-ide/tide/internal/logging"
)

// TaskLine is the zero-based line the cursor is placed on when a task file
// opens. The first two lines of a task file are informational.
const TaskLine = 2

// Editor is the editor integration. Calls are fire-and-forget from the
// tree's point of view; errors are only reported.
type Editor interface {
	// Open shows path with the cursor on line. preview editors may be
	// replaced by the next Open.
	Open(ctx context.Context, path string, line int, preview bool) error
	// CloseAll closes every open editor.
	CloseAll(ctx context.Context) error
}

// CommandEditor runs an external command for Open, e.g.
// "code --goto {path}:{line}". {line} is one-based. An optional close
// command runs on CloseAll.
type CommandEditor struct {
	template []string
	close    []string
}

// NewCommandEditor parses the open and close command templates. An empty
// open template returns a LogEditor.
func NewCommandEditor(open, closeCmd string) Editor {
	fields := strings.Fields(open)
	if len(fields) == 0 {
		return LogEditor{}
	}
	return &CommandEditor{template: fields, close: strings.Fields(closeCmd)}
}

func (c *CommandEditor) args(path string, line int) []string {
	r := strings.NewReplacer("{path}", path, "{line}", strconv.Itoa(line+1))
	out := make([]string, len(c.template))
	for i, f := range c.template {
		out[i] = r.Replace(f)
	}
	return out
}

func (c *CommandEditor) Open(ctx context.Context, path string, line int, _ bool) error {
	return run(ctx, c.args(path, line))
}

// CloseAll runs the close command. Without one the request is only logged.
func (c *CommandEditor) CloseAll(ctx context.Context) error {
	if len(c.close) == 0 {
		logging.Debug("no editor close command configured, leaving editors open")
		return nil
	}
	return run(ctx, c.close)
}

func run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// LogEditor only logs requests. Used when no editor command is configured.
type LogEditor struct{}

func (LogEditor) Open(_ context.Context, path string, line int, preview bool) error {
	logging.Info("open task", zap.String("path", path), zap.Int("line", line), zap.Bool("preview", preview))
	return nil
}

func (LogEditor) CloseAll(context.Context) error {
	logging.Info("close all editors")
	return nil
}
