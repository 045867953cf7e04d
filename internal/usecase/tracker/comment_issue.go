package tracker

import (
	"context"
	"strings"

	"ctt/internal/ports"
)

// CommentIssue appends a comment to an open or closed issue.
func (s *Service) CommentIssue(ctx context.Context, issueID uint64, text string, actor Actor) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := checkActor(actor); err != nil {
		return err
	}
	body := strings.TrimSpace(text)
	if body == "" {
		return errCommentRequired
	}

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.loadIssue(txCtx, issueID); err != nil {
			return err
		}
		now := s.timestamp()
		if err := s.appendComment(txCtx, issueID, body, actor, now); err != nil {
			return err
		}
		if err := s.touch(txCtx, issueID, actor, now); err != nil {
			return err
		}
		return s.history(txCtx, issueID, actor.Name, now, "comment added")
	})
}

func (s *Service) appendComment(ctx context.Context, issueID uint64, body string, actor Actor, now string) error {
	return s.repo.AppendComment(ctx, ports.Comment{
		IssueID: issueID,
		Time:    now,
		Author:  actor.Name,
		Text:    body,
	})
}
