package tracker

import (
	"context"
	"fmt"
	"strings"

	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/ports"
)

func (s *Service) AssignIssue(ctx context.Context, issueID uint64, group string, actor Actor) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := checkActor(actor); err != nil {
		return err
	}
	group = strings.ToLower(strings.TrimSpace(group))
	if !s.isGroup(group) {
		return fmt.Errorf("%w: %q", domainctt.ErrInvalidGroup, group)
	}

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.loadIssue(txCtx, issueID); err != nil {
			return err
		}
		now := s.timestamp()
		if err := s.repo.UpdateIssue(txCtx, issueID, ports.IssueUpdate{AssignedTo: &group}); err != nil {
			return err
		}
		if err := s.touch(txCtx, issueID, actor, now); err != nil {
			return err
		}
		return s.history(txCtx, issueID, actor.Name, now, "assigned to "+group)
	})
}
