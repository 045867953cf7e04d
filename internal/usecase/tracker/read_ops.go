package tracker

import (
	"context"
	"strings"

	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/ports"
)

// IssueDetail is everything show prints for one issue.
type IssueDetail struct {
	Issue    ports.Issue
	Siblings []ports.Sibling
	Comments []ports.Comment
	History  []ports.HistoryEntry
}

func (s *Service) GetIssue(ctx context.Context, issueID uint64) (IssueDetail, error) {
	if err := s.check(ctx); err != nil {
		return IssueDetail{}, err
	}

	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return IssueDetail{}, err
	}
	siblings, err := s.repo.ListSiblings(ctx, issueID, "")
	if err != nil {
		return IssueDetail{}, err
	}
	comments, err := s.repo.ListComments(ctx, issueID)
	if err != nil {
		return IssueDetail{}, err
	}
	history, err := s.repo.ListHistory(ctx, issueID)
	if err != nil {
		return IssueDetail{}, err
	}
	return IssueDetail{
		Issue:    issue,
		Siblings: siblings,
		Comments: comments,
		History:  history,
	}, nil
}

// ListIssues lists issues in one status, or every real issue when status is empty.
func (s *Service) ListIssues(ctx context.Context, status domainctt.Status) ([]ports.Issue, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListIssues(ctx, ports.IssueFilter{Status: status})
}

// ListSiblings returns the sibling rows of an issue in any status; an empty
// status lists them all.
func (s *Service) ListSiblings(ctx context.Context, issueID uint64, status domainctt.Status) ([]ports.Sibling, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListSiblings(ctx, issueID, status)
}

func (s *Service) ListComments(ctx context.Context, issueID uint64) ([]ports.Comment, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if _, err := s.loadIssue(ctx, issueID); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, issueID)
}

func (s *Service) ListHistory(ctx context.Context, issueID uint64) ([]ports.HistoryEntry, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if _, err := s.loadIssue(ctx, issueID); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, issueID)
}

// AcknowledgeIssue marks the issue as seen by group. Unknown groups are ignored.
func (s *Service) AcknowledgeIssue(ctx context.Context, issueID uint64, group string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	group = strings.TrimSpace(group)
	if group == "" {
		return nil
	}

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		issue, err := s.loadIssue(txCtx, issueID)
		if err != nil {
			return err
		}
		tracker := domainctt.AckViewTracker(issue.ViewTracker, group)
		if tracker == issue.ViewTracker {
			return nil
		}
		return s.repo.UpdateIssue(txCtx, issueID, ports.IssueUpdate{ViewTracker: &tracker})
	})
}

// Stats counts issues by status, and open issues by type and severity.
type Stats struct {
	Total      int
	ByStatus   map[domainctt.Status]int
	ByType     map[domainctt.IssueType]int
	BySeverity map[int]int
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if err := s.check(ctx); err != nil {
		return Stats{}, err
	}

	issues, err := s.repo.ListIssues(ctx, ports.IssueFilter{})
	if err != nil {
		return Stats{}, err
	}

	out := Stats{
		Total:      len(issues),
		ByStatus:   make(map[domainctt.Status]int, 3),
		ByType:     make(map[domainctt.IssueType]int, 6),
		BySeverity: make(map[int]int, 4),
	}
	for _, issue := range issues {
		out.ByStatus[issue.Status]++
		if issue.Status != domainctt.StatusOpen {
			continue
		}
		out.ByType[issue.IssueType]++
		out.BySeverity[issue.Severity]++
	}
	return out, nil
}
