package tracker

import (
	"context"
	"fmt"
	"strings"

	domainctt "ctt/internal/domain/ctt"
)

// ReopenIssue moves a closed issue back to open. Nodes are not drained again and
// sibling rows stay closed; attach siblings again if needed.
func (s *Service) ReopenIssue(ctx context.Context, issueID uint64, comment string, actor Actor) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := checkActor(actor); err != nil {
		return err
	}
	comment = strings.TrimSpace(comment)

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		issue, err := s.loadIssue(txCtx, issueID)
		if err != nil {
			return err
		}
		if issue.Status != domainctt.StatusClosed {
			return fmt.Errorf("%w: %d", domainctt.ErrIssueNotClosed, issueID)
		}

		if issue.Hostname != domainctt.FatalHost {
			for _, node := range domainctt.SplitHosts(issue.Hostname) {
				other, found, err := s.repo.FindOpenIssueByNode(txCtx, node)
				if err != nil {
					return err
				}
				if found {
					return fmt.Errorf("%w: %s is tracked by issue %d", domainctt.ErrIssueAlreadyOpen, node, other.ID)
				}
			}
		}

		now := s.timestamp()
		if err := s.repo.SetIssueStatus(txCtx, issueID, domainctt.StatusOpen); err != nil {
			return err
		}
		if comment != "" {
			if err := s.appendComment(txCtx, issueID, comment, actor, now); err != nil {
				return err
			}
		}
		if err := s.touch(txCtx, issueID, actor, now); err != nil {
			return err
		}
		return s.history(txCtx, issueID, actor.Name, now, "reopened issue")
	})
}
