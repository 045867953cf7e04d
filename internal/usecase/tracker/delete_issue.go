package tracker

import (
	"context"

	domainctt "ctt/internal/domain/ctt"
)

// DeleteIssue marks the issue deleted and closes its sibling rows. Nothing is
// resumed and no history is written.
func (s *Service) DeleteIssue(ctx context.Context, issueID uint64, actor Actor) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := checkActor(actor); err != nil {
		return err
	}

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.loadIssue(txCtx, issueID); err != nil {
			return err
		}
		if err := s.repo.SetSiblingsStatus(txCtx, issueID, domainctt.StatusClosed); err != nil {
			return err
		}
		return s.repo.SetIssueStatus(txCtx, issueID, domainctt.StatusDeleted)
	})
}
