package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"ctt/internal/bootstrap/logging"
	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/ports"
)

type OpenIssueInput struct {
	Title       string
	Description string
	// Hostname may list several nodes ("r1i0n1,r1i0n2"); they share one issue.
	Hostname   string
	Severity   int
	Tickets    string
	AssignedTo string
	IssueType  domainctt.IssueType
	Cluster    string
	NodeState  string
	Actor      Actor
}

// OpenIssue records a new issue and drains its nodes when enforcement is on.
func (s *Service) OpenIssue(ctx context.Context, input OpenIssueInput) (ports.Issue, error) {
	if err := s.check(ctx); err != nil {
		return ports.Issue{}, err
	}
	issue, nodes, err := s.normalizeOpenInput(input)
	if err != nil {
		return ports.Issue{}, err
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		for _, node := range nodes {
			if node == domainctt.FatalHost {
				continue
			}
			existing, found, err := s.repo.FindOpenIssueByNode(txCtx, node)
			if err != nil {
				return err
			}
			if found {
				return fmt.Errorf("%w: %s is tracked by issue %d", domainctt.ErrIssueAlreadyOpen, node, existing.ID)
			}
		}
		return s.insertIssue(txCtx, &issue, input.Actor.Name)
	}); err != nil {
		return ports.Issue{}, err
	}

	logging.Info(ctx, "issue opened",
		slog.String("component", "usecase.tracker"),
		slog.Uint64("cttissue", issue.ID),
		slog.String("hostname", issue.Hostname),
	)

	if s.opts.Enforcement {
		s.drainNodes(ctx, issue.ID, nodes, input.Actor.Name)
	}
	return issue, nil
}

func (s *Service) normalizeOpenInput(input OpenIssueInput) (ports.Issue, []string, error) {
	if err := checkActor(input.Actor); err != nil {
		return ports.Issue{}, nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return ports.Issue{}, nil, errTitleRequired
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return ports.Issue{}, nil, errDescriptionRequired
	}

	nodes := domainctt.SplitHosts(input.Hostname)
	if len(nodes) == 0 {
		return ports.Issue{}, nil, errHostnameRequired
	}
	if len(s.opts.StrictNodes) > 0 {
		for _, node := range nodes {
			if !slices.Contains(s.opts.StrictNodes, node) {
				return ports.Issue{}, nil, fmt.Errorf("%w: %s is not a managed node", domainctt.ErrInvalidNodeName, node)
			}
		}
	}

	severity := input.Severity
	if severity == 0 {
		severity = s.opts.DefaultSeverity
	}
	if err := domainctt.ValidateSeverity(severity); err != nil {
		return ports.Issue{}, nil, err
	}

	issueType := input.IssueType
	if issueType == "" {
		issueType = domainctt.TypeUnknown
	}
	if _, err := domainctt.ParseIssueType(string(issueType)); err != nil {
		return ports.Issue{}, nil, err
	}

	assignedTo := strings.TrimSpace(input.AssignedTo)
	switch {
	case assignedTo == "":
		assignedTo = input.Actor.Group
		if assignedTo == "" {
			assignedTo = domainctt.SystemActor
		}
	case assignedTo == domainctt.SystemActor:
	case !s.isGroup(assignedTo):
		return ports.Issue{}, nil, fmt.Errorf("%w: %s", domainctt.ErrInvalidGroup, assignedTo)
	}

	tickets := strings.TrimSpace(input.Tickets)
	if tickets == "" {
		tickets = domainctt.None
	}
	cluster := strings.TrimSpace(input.Cluster)
	if cluster == "" {
		cluster = s.opts.Cluster
	}
	state := strings.TrimSpace(input.NodeState)
	if state == "" {
		state = domainctt.StateUnknown
	}

	now := s.timestamp()
	return ports.Issue{
		OpenedAt:    now,
		Severity:    severity,
		Tickets:     tickets,
		Status:      domainctt.StatusOpen,
		Cluster:     cluster,
		Hostname:    strings.Join(nodes, ","),
		Title:       title,
		Description: description,
		AssignedTo:  assignedTo,
		Originator:  input.Actor.Name,
		UpdatedBy:   input.Actor.Name,
		IssueType:   issueType,
		NodeState:   state,
		UpdatedAt:   now,
		ViewTracker: s.viewTracker(input.Actor),
	}, nodes, nil
}

// insertIssue allocates the id and writes the issue with its "new issue" history.
func (s *Service) insertIssue(ctx context.Context, issue *ports.Issue, author string) error {
	id, err := s.repo.NextIssueID(ctx)
	if err != nil {
		return err
	}
	issue.ID = id
	if err := s.repo.CreateIssue(ctx, *issue); err != nil {
		return err
	}
	return s.history(ctx, id, author, issue.OpenedAt, "new issue")
}

// OpenSentinel records a FATAL issue about ctt itself. It never drains anything.
func (s *Service) OpenSentinel(ctx context.Context, title string, details string, actor Actor) (ports.Issue, error) {
	if err := s.check(ctx); err != nil {
		return ports.Issue{}, err
	}
	if err := checkActor(actor); err != nil {
		return ports.Issue{}, err
	}

	now := s.timestamp()
	issue := ports.Issue{
		OpenedAt:    now,
		Severity:    1,
		Tickets:     domainctt.None,
		Status:      domainctt.StatusOpen,
		Cluster:     s.opts.Cluster,
		Hostname:    domainctt.FatalHost,
		Title:       title,
		Description: details,
		AssignedTo:  domainctt.FatalHost,
		Originator:  domainctt.FatalHost,
		UpdatedBy:   domainctt.FatalHost,
		IssueType:   domainctt.TypeOther,
		NodeState:   domainctt.FatalHost,
		UpdatedAt:   now,
		ViewTracker: s.viewTracker(actor),
	}
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		return s.insertIssue(txCtx, &issue, actor.Name)
	}); err != nil {
		return ports.Issue{}, err
	}

	logging.Error(ctx, "fatal issue opened",
		slog.String("component", "usecase.tracker"),
		slog.Uint64("cttissue", issue.ID),
		slog.String("title", title),
	)
	return issue, nil
}
