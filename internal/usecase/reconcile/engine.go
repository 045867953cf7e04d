package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"ctt/internal/bootstrap/logging"
	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/errs"
	"ctt/internal/ports"
	"ctt/internal/usecase/tracker"
)

const (
	titleSchedulerUnreachable = "Can not get pbsnodes"
	forcedOfflineNote         = "Auto forced pbs offline"
)

type Options struct {
	Enforcement   bool
	MaxIssuesOpen int
	MaxIssuesRun  int
	AutoSeverity  int
	// AutoNodes restricts issue creation and state tracking to these nodes when set.
	AutoNodes []string
}

// IssueOpener is the part of the tracker the engine needs.
type IssueOpener interface {
	OpenIssue(ctx context.Context, input tracker.OpenIssueInput) (ports.Issue, error)
	OpenSentinel(ctx context.Context, title string, details string, actor tracker.Actor) (ports.Issue, error)
}

// Engine compares scheduler node states with tracked issues.
type Engine struct {
	repo      ports.IssueRepository
	uow       ports.UnitOfWork
	scheduler ports.Scheduler
	issues    IssueOpener
	cache     ports.Cache
	metrics   ports.Metrics
	opts      Options

	now      func() time.Time
	newRunID func() string
}

func NewEngine(
	repo ports.IssueRepository,
	uow ports.UnitOfWork,
	scheduler ports.Scheduler,
	issues IssueOpener,
	cache ports.Cache,
	metrics ports.Metrics,
	opts Options,
) *Engine {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if opts.AutoSeverity == 0 {
		opts.AutoSeverity = 3
	}
	return &Engine{
		repo:      repo,
		uow:       uow,
		scheduler: scheduler,
		issues:    issues,
		cache:     cache,
		metrics:   metrics,
		opts:      opts,
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

type candidate struct {
	record ports.NodeRecord
	reason string
}

// Run executes one automatic pass. onlyNodes, when given, replaces the configured
// allow-list for this pass.
func (e *Engine) Run(ctx context.Context, onlyNodes []string) (Report, error) {
	if ctx == nil {
		return Report{}, errors.New("context is required")
	}
	if e.repo == nil || e.uow == nil || e.scheduler == nil || e.issues == nil {
		return Report{}, errors.New("reconcile engine is not fully wired")
	}

	started := e.now()
	report := Report{
		RunID:     e.newRunID(),
		StartedAt: domainctt.FormatTime(started),
	}
	ctx = logging.WithRun(ctx, report.RunID)
	ctx = logging.WithAttrs(ctx, slog.String("component", "usecase.reconcile"))

	allow := e.opts.AutoNodes
	if len(onlyNodes) > 0 {
		allow = onlyNodes
	}

	err := e.run(ctx, allow, &report)
	if err != nil {
		report.Error = err.Error()
	} else {
		e.metrics.PassCompleted(e.now().Sub(started).Seconds())
	}
	e.finish(ctx, report)
	return report, err
}

func (e *Engine) run(ctx context.Context, allow []string, report *Report) error {
	records, err := e.scheduler.QueryNodeStates(ctx)
	if err != nil {
		e.metrics.PassFailed("scheduler")
		e.sentinel(ctx, titleSchedulerUnreachable, err.Error(), report)
		return errs.Wrap(err, "query node states")
	}
	report.Records = len(records)
	e.metrics.ObserveRecords(len(records))

	if err := e.checkOpenValve(ctx, report); err != nil {
		e.metrics.PassFailed("max_open")
		return err
	}

	staged, err := e.trackStates(ctx, records, allow, report)
	if err != nil {
		e.metrics.PassFailed("store")
		return err
	}

	if err := e.createIssues(ctx, staged, report); err != nil {
		return err
	}

	if e.opts.Enforcement {
		if err := e.forceOffline(ctx, records, report); err != nil {
			e.metrics.PassFailed("store")
			return err
		}
	}

	logging.Info(ctx, "auto pass finished",
		slog.Int("records", report.Records),
		slog.Int("created", len(report.Created)),
		slog.Int("updated", report.Updated),
		slog.Int("forced", len(report.Forced)),
	)
	return nil
}

// checkOpenValve stops the pass when too many issues are already open, recording
// one MAX OPEN REACHED sentinel.
func (e *Engine) checkOpenValve(ctx context.Context, report *Report) error {
	open, err := e.repo.CountOpenIssues(ctx)
	if err != nil {
		return err
	}
	e.metrics.ObserveOpenIssues(open)

	if e.opts.MaxIssuesOpen == 0 || open < int64(e.opts.MaxIssuesOpen) {
		return nil
	}

	exists, err := e.repo.HasOpenIssueTitled(ctx, domainctt.TitleMaxOpenReached)
	if err != nil {
		return err
	}
	if !exists {
		e.sentinel(ctx, domainctt.TitleMaxOpenReached, "To gather nodes and failures, increase max_issues_open", report)
	}
	return fmt.Errorf("%w: %d open issues, max_issues_open is %d", domainctt.ErrThresholdExceeded, open, e.opts.MaxIssuesOpen)
}

// trackStates walks every record once: open siblings and open issues follow the
// observed state, failing nodes without an issue are staged.
func (e *Engine) trackStates(ctx context.Context, records []ports.NodeRecord, allow []string, report *Report) ([]candidate, error) {
	var staged []candidate
	seen := make(map[string]struct{}, len(records))

	err := e.uow.WithTx(ctx, func(txCtx context.Context) error {
		for _, rec := range records {
			if len(allow) > 0 && !slices.Contains(allow, rec.Node) {
				continue
			}

			siblings, err := e.repo.ListOpenSiblingsByNode(txCtx, rec.Node)
			if err != nil {
				return err
			}
			if len(siblings) > 0 {
				if err := e.repo.UpdateOpenSiblingState(txCtx, rec.Node, rec.State); err != nil {
					return err
				}
				continue
			}

			issue, found, err := e.repo.FindOpenIssueByNode(txCtx, rec.Node)
			if err != nil {
				return err
			}
			if found {
				// Members of a combined hostname share one node_state; only the
				// exact host moves it.
				if issue.Hostname != rec.Node || issue.NodeState == rec.State {
					continue
				}
				if err := e.recordStateChange(txCtx, issue.ID, rec); err != nil {
					return err
				}
				report.Updated++
				e.metrics.StateChanged()
				continue
			}

			if !domainctt.IsFailingState(rec.State) {
				continue
			}
			// A present but empty comment= is not staged.
			if rec.HasComment && strings.TrimSpace(rec.Comment) == "" {
				continue
			}
			if _, dup := seen[rec.Node]; dup {
				continue
			}
			seen[rec.Node] = struct{}{}
			staged = append(staged, candidate{record: rec, reason: reasonFor(rec)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return staged, nil
}

func (e *Engine) recordStateChange(ctx context.Context, issueID uint64, rec ports.NodeRecord) error {
	now := domainctt.FormatTime(e.now())
	actor := domainctt.SystemActor
	state := rec.State
	if err := e.repo.UpdateIssue(ctx, issueID, ports.IssueUpdate{
		NodeState: &state,
		UpdatedBy: &actor,
		UpdatedAt: &now,
	}); err != nil {
		return err
	}
	return e.repo.AppendHistory(ctx, ports.HistoryEntry{
		IssueID: issueID,
		Time:    now,
		Author:  actor,
		Text:    fmt.Sprintf("%s state changed to %s", rec.Node, rec.State),
	})
}

func reasonFor(rec ports.NodeRecord) string {
	if rec.HasComment {
		return strings.TrimSpace(rec.Comment)
	}
	return domainctt.TitleUnknownReason
}

// createIssues opens the staged issues unless there are more than max_issues_run
// of them, in which case one MAX RUN REACHED sentinel is opened instead.
func (e *Engine) createIssues(ctx context.Context, staged []candidate, report *Report) error {
	if len(staged) == 0 {
		return nil
	}

	if len(staged) > e.opts.MaxIssuesRun {
		e.metrics.PassFailed("max_run")
		title := fmt.Sprintf("MAX RUN REACHED: %d/%d", len(staged), e.opts.MaxIssuesRun)
		e.sentinel(ctx, title, overflowDetails(staged, e.opts.MaxIssuesRun), report)
		return fmt.Errorf("%w: %d candidate issues, max_issues_run is %d", domainctt.ErrThresholdExceeded, len(staged), e.opts.MaxIssuesRun)
	}

	for _, c := range staged {
		title, description, source := e.describe(ctx, c)
		issue, err := e.issues.OpenIssue(ctx, tracker.OpenIssueInput{
			Title:       title,
			Description: description,
			Hostname:    c.record.Node,
			Severity:    e.opts.AutoSeverity,
			AssignedTo:  domainctt.SystemActor,
			IssueType:   domainctt.TypeUnknown,
			NodeState:   c.record.State,
			Actor:       tracker.SystemActor(),
		})
		if err != nil {
			e.metrics.PassFailed("store")
			return errs.Wrapf(err, "open issue for %s", c.record.Node)
		}
		report.Created = append(report.Created, issue.ID)
		report.createdNodes = append(report.createdNodes, c.record.Node)
		e.metrics.IssueCreated(source)
		logging.Info(ctx, "issue opened for failing node",
			slog.Uint64("cttissue", issue.ID),
			slog.String("node", c.record.Node),
			slog.String("state", c.record.State),
		)
	}
	return nil
}

// describe prefers the node's bad-node marker over the scheduler comment.
func (e *Engine) describe(ctx context.Context, c candidate) (string, string, string) {
	marker, err := e.scheduler.ReadBadNodeMarker(ctx, c.record.Node)
	switch {
	case err == nil:
		description := marker
		if comment := strings.TrimSpace(c.record.Comment); c.record.HasComment && comment != "" {
			description += ", PBS comment=" + comment
		}
		return marker, description, "marker"
	case errors.Is(err, domainctt.ErrNoMarker):
	default:
		logging.Warn(ctx, "bad node marker unreadable, using scheduler comment",
			slog.String("node", c.record.Node),
			slog.Any("err", errs.Loggable(err)),
		)
	}
	if c.reason == domainctt.TitleUnknownReason {
		return c.reason, c.reason, "unknown"
	}
	return c.reason, c.reason, "comment"
}

func overflowDetails(staged []candidate, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This run of ctt discovered more issues than max_issues_run. Discovered: %d; max_issues_run: %d\n\n", len(staged), limit)
	for _, c := range staged {
		fmt.Fprintf(&b, "%s: %s\n", c.record.Node, c.reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

// forceOffline drains every tracked node the scheduler no longer reports offline.
// Nodes opened during this pass were drained on creation and are skipped.
func (e *Engine) forceOffline(ctx context.Context, records []ports.NodeRecord, report *Report) error {
	for _, rec := range records {
		if domainctt.IsOfflineState(rec.State, rec.SecondaryFlags) {
			continue
		}
		if slices.Contains(report.createdNodes, rec.Node) {
			continue
		}

		siblings, err := e.repo.ListOpenSiblingsByNode(ctx, rec.Node)
		if err != nil {
			return err
		}
		if len(siblings) > 0 {
			owners := make([]uint64, 0, len(siblings))
			for _, sib := range siblings {
				owners = append(owners, sib.IssueID)
			}
			if e.drain(ctx, rec.Node) {
				if err := e.markSiblingOffline(ctx, rec.Node, owners); err != nil {
					return err
				}
				report.Forced = append(report.Forced, rec.Node)
				e.metrics.ForcedOffline("sibling")
			}
		}

		issue, found, err := e.repo.FindOpenIssueByNode(ctx, rec.Node)
		if err != nil {
			return err
		}
		if !found || issue.Hostname == domainctt.FatalHost {
			continue
		}
		if e.drain(ctx, rec.Node) {
			if err := e.markIssueOffline(ctx, issue.ID); err != nil {
				return err
			}
			report.Forced = append(report.Forced, rec.Node)
			e.metrics.ForcedOffline("primary")
		}
	}
	return nil
}

func (e *Engine) drain(ctx context.Context, node string) bool {
	if err := e.scheduler.Drain(ctx, node); err != nil {
		logging.Warn(ctx, "force offline failed, node skipped",
			slog.String("node", node),
			slog.Any("err", errs.Loggable(err)),
		)
		return false
	}
	logging.Info(ctx, "node forced offline", slog.String("node", node))
	return true
}

func (e *Engine) markSiblingOffline(ctx context.Context, node string, owners []uint64) error {
	now := domainctt.FormatTime(e.now())
	return e.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := e.repo.UpdateOpenSiblingState(txCtx, node, domainctt.StateOffline); err != nil {
			return err
		}
		for _, id := range owners {
			if err := e.repo.AppendHistory(txCtx, ports.HistoryEntry{
				IssueID: id,
				Time:    now,
				Author:  domainctt.SystemActor,
				Text:    forcedOfflineNote,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) markIssueOffline(ctx context.Context, issueID uint64) error {
	now := domainctt.FormatTime(e.now())
	state := domainctt.StateOffline
	return e.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := e.repo.UpdateIssue(txCtx, issueID, ports.IssueUpdate{NodeState: &state}); err != nil {
			return err
		}
		return e.repo.AppendHistory(txCtx, ports.HistoryEntry{
			IssueID: issueID,
			Time:    now,
			Author:  domainctt.SystemActor,
			Text:    forcedOfflineNote,
		})
	})
}

// sentinel opens a FATAL issue; failing to do so is only logged since the pass is
// already failing.
func (e *Engine) sentinel(ctx context.Context, title string, details string, report *Report) {
	issue, err := e.issues.OpenSentinel(ctx, title, details, tracker.SystemActor())
	if err != nil {
		logging.Error(ctx, "open fatal issue failed",
			slog.String("title", title),
			slog.Any("err", errs.Loggable(err)),
		)
		return
	}
	report.Sentinel = issue.ID
}
