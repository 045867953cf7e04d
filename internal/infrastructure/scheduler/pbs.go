package scheduler

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ctt/internal/bootstrap/logging"
	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/errs"
	"ctt/internal/ports"
)

// PBS talks to PBS Pro through clush and pbsnodes on the admin host.
type PBS struct {
	profile        Profile
	runner         Runner
	defaultTimeout int
}

var _ ports.Scheduler = (*PBS)(nil)

func NewPBS(profile Profile, runner Runner, defaultTimeoutSeconds int) *PBS {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PBS{profile: profile, runner: runner, defaultTimeout: defaultTimeoutSeconds}
}

func (s *PBS) run(ctx context.Context, name string, node string) ([]byte, error) {
	executor := s.profile.resolveExecutor(name, s.defaultTimeout)
	program, args := s.profile.expand(executor, node)

	logging.Debug(ctx, "scheduler command",
		slog.String("executor", name),
		slog.String("program", program),
		slog.Any("args", args),
	)
	return s.runner.Run(ctx, program, args, time.Duration(executor.TimeoutSeconds)*time.Second)
}

func (s *PBS) QueryNodeStates(ctx context.Context) ([]ports.NodeRecord, error) {
	out, err := s.run(ctx, ExecList, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domainctt.ErrSchedulerUnreachable, s.profile.AdminHost, err)
	}

	records := ParseNodeStates(out)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s returned no nodes", domainctt.ErrSchedulerUnreachable, s.profile.AdminHost)
	}
	return records, nil
}

func (s *PBS) Drain(ctx context.Context, node string) error {
	if _, err := s.run(ctx, ExecDrain, node); err != nil {
		return errs.Wrapf(err, "drain %s", node)
	}
	return nil
}

// Resume clears the node in PBS, then removes the local-disable and bad-node
// markers on the node itself. Marker cleanup failures are only logged.
func (s *PBS) Resume(ctx context.Context, node string) error {
	if _, err := s.run(ctx, ExecResume, node); err != nil {
		return errs.Wrapf(err, "resume %s", node)
	}
	if _, err := s.run(ctx, ExecCleanup, node); err != nil {
		logging.Warn(ctx, "can not remove node markers",
			slog.String("node", node),
			slog.Any("error", errs.Loggable(err)),
		)
	}
	return nil
}

func (s *PBS) ReadBadNodeMarker(ctx context.Context, node string) (string, error) {
	out, err := s.run(ctx, ExecMarker, node)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domainctt.ErrMarkerReadFailed, node, err)
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", domainctt.ErrNoMarker
	}
	return text, nil
}

// ParseNodeStates reads `pbsnodes -av -Fdsv -D,` output. Token 0 carries the
// node, token 5 the state and token 6 the secondary flags; a comment= token
// anywhere on the line is the operator comment. Short lines are skipped.
func ParseNodeStates(raw []byte) []ports.NodeRecord {
	var records []ports.NodeRecord

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tokens := strings.Split(line, ",")
		if len(tokens) < 6 {
			continue
		}

		rec := ports.NodeRecord{
			Node:  tokenValue(tokens[0]),
			State: tokenValue(tokens[5]),
		}
		if rec.Node == "" {
			continue
		}
		if len(tokens) > 6 {
			rec.SecondaryFlags = tokens[6]
		}
		for _, tok := range tokens {
			if value, ok := strings.CutPrefix(tok, "comment="); ok {
				rec.Comment = value
				rec.HasComment = true
				break
			}
		}
		records = append(records, rec)
	}
	return records
}

func tokenValue(token string) string {
	if _, value, ok := strings.Cut(token, "="); ok {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(token)
}
