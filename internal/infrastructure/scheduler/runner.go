package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"ctt/internal/errs"
)

// Runner executes one external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, program string, args []string, timeout time.Duration) ([]byte, error)
}

// ExecRunner runs commands with os/exec under a per-call deadline.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, program string, args []string, timeout time.Duration) ([]byte, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, program, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return stdout.Bytes(), errs.WithStack(fmt.Errorf("%s timed out after %s", program, timeout))
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), errs.WithStack(fmt.Errorf("%s: %w: %s", program, err, msg))
		}
		return stdout.Bytes(), errs.WithStack(fmt.Errorf("%s: %w", program, err))
	}
	return stdout.Bytes(), nil
}
