package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"ctt/internal/bootstrap/logging"
	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/errs"
	"ctt/internal/ports"
)

var (
	errActorRequired       = errors.New("actor is required")
	errTitleRequired       = errors.New("title is required")
	errDescriptionRequired = errors.New("description is required")
	errHostnameRequired    = errors.New("hostname is required")
	errCommentRequired     = errors.New("comment is required")
	errEmptyUpdateValue    = errors.New("update values must not be empty")
)

// Actor is the user (or the automatic pass) performing an operation.
type Actor struct {
	Name  string
	Group string
}

// SystemActor is recorded for changes made by the automatic pass.
func SystemActor() Actor {
	return Actor{Name: domainctt.SystemActor}
}

// Options carries the tracker settings taken from config at startup.
type Options struct {
	Cluster         string
	Enforcement     bool
	DefaultSeverity int
	// Audience lists the notification groups tracked in view trackers; these are
	// also the only valid assignment targets besides the system actor.
	Audience       []string
	StrictNodes    []string
	AttachLocation string
	Topology       domainctt.Topology
}

type Service struct {
	repo      ports.IssueRepository
	uow       ports.UnitOfWork
	scheduler ports.Scheduler
	opts      Options
	now       func() time.Time
}

// NewService wires issue lifecycle operations over the store and the scheduler.
func NewService(repo ports.IssueRepository, uow ports.UnitOfWork, scheduler ports.Scheduler, opts Options) *Service {
	if opts.DefaultSeverity == 0 {
		opts.DefaultSeverity = 3
	}
	if opts.Topology.SlotsPerIru <= 0 || opts.Topology.NodesPerBlade <= 0 {
		opts.Topology = domainctt.DefaultTopology()
	}
	return &Service{
		repo:      repo,
		uow:       uow,
		scheduler: scheduler,
		opts:      opts,
		now:       time.Now,
	}
}

func (s *Service) check(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("issue repository is required")
	}
	if s.uow == nil {
		return errors.New("unit of work is required")
	}
	return nil
}

func checkActor(actor Actor) error {
	if strings.TrimSpace(actor.Name) == "" {
		return errActorRequired
	}
	return nil
}

func (s *Service) timestamp() string {
	return domainctt.FormatTime(s.now())
}

func (s *Service) viewTracker(actor Actor) string {
	return domainctt.NewViewTracker(s.opts.Audience, actor.Group)
}

func (s *Service) isGroup(group string) bool {
	return slices.Contains(s.opts.Audience, group)
}

// loadIssue returns the issue unless it is absent or deleted.
func (s *Service) loadIssue(ctx context.Context, issueID uint64) (ports.Issue, error) {
	issue, err := s.repo.GetIssue(ctx, issueID)
	if err != nil {
		if errors.Is(err, ports.ErrIssueNotFound) {
			return ports.Issue{}, fmt.Errorf("%w: %d", domainctt.ErrIssueNotFound, issueID)
		}
		return ports.Issue{}, err
	}
	if issue.Status == domainctt.StatusDeleted {
		return ports.Issue{}, fmt.Errorf("%w: %d", domainctt.ErrIssueNotFound, issueID)
	}
	return issue, nil
}

func (s *Service) history(ctx context.Context, issueID uint64, actor string, now string, text string) error {
	return s.repo.AppendHistory(ctx, ports.HistoryEntry{
		IssueID: issueID,
		Time:    now,
		Author:  actor,
		Text:    text,
	})
}

// touch records who changed the issue and marks it unseen for every other group.
func (s *Service) touch(ctx context.Context, issueID uint64, actor Actor, now string) error {
	tracker := s.viewTracker(actor)
	return s.repo.UpdateIssue(ctx, issueID, ports.IssueUpdate{
		UpdatedBy:   &actor.Name,
		UpdatedAt:   &now,
		ViewTracker: &tracker,
	})
}

// drainNodes offlines nodes in the scheduler after the issue has been committed.
// A failed node is logged and skipped; each drained node gets a history entry.
func (s *Service) drainNodes(ctx context.Context, issueID uint64, nodes []string, actor string) []string {
	return s.actuate(ctx, issueID, nodes, actor, "drain", s.scheduler.Drain, "Drained %s")
}

func (s *Service) resumeNodes(ctx context.Context, issueID uint64, nodes []string, actor string) []string {
	return s.actuate(ctx, issueID, nodes, actor, "resume", s.scheduler.Resume, "ctt resumed %s")
}

func (s *Service) actuate(
	ctx context.Context,
	issueID uint64,
	nodes []string,
	actor string,
	action string,
	fn func(context.Context, string) error,
	historyFormat string,
) []string {
	if s.scheduler == nil || len(nodes) == 0 {
		return nil
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.tracker"),
		slog.Uint64("cttissue", issueID),
		slog.String("action", action),
	)

	done := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if node == "" || node == domainctt.FatalHost {
			continue
		}
		if err := fn(ctx, node); err != nil {
			logging.Warn(logCtx, "scheduler command failed, node skipped",
				slog.String("node", node),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		if err := s.history(ctx, issueID, actor, s.timestamp(), fmt.Sprintf(historyFormat, node)); err != nil {
			logging.Warn(logCtx, "record actuation history failed",
				slog.String("node", node),
				slog.Any("err", errs.Loggable(err)),
			)
		}
		logging.Info(logCtx, "scheduler actuated", slog.String("node", node))
		done = append(done, node)
	}
	return done
}
