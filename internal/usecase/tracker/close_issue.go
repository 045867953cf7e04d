package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ctt/internal/bootstrap/logging"
	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/ports"
)

// CloseIssue closes the issue and its sibling rows, then resumes the nodes no other
// open issue or sibling still holds. It returns the nodes actually resumed.
func (s *Service) CloseIssue(ctx context.Context, issueID uint64, comment string, actor Actor) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)

	var resumable []string
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		issue, err := s.loadIssue(txCtx, issueID)
		if err != nil {
			return err
		}
		if issue.Status != domainctt.StatusOpen {
			return fmt.Errorf("%w: %d", domainctt.ErrIssueNotOpen, issueID)
		}

		resumable, err = s.resumableNodes(txCtx, issue)
		if err != nil {
			return err
		}

		now := s.timestamp()
		if err := s.repo.SetSiblingsStatus(txCtx, issueID, domainctt.StatusClosed); err != nil {
			return err
		}
		if err := s.repo.SetIssueStatus(txCtx, issueID, domainctt.StatusClosed); err != nil {
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
		return s.history(txCtx, issueID, actor.Name, now, "closed issue")
	}); err != nil {
		return nil, err
	}

	if !s.opts.Enforcement {
		logging.Info(ctx, "enforcement disabled, nodes not resumed",
			slog.String("component", "usecase.tracker"),
			slog.Uint64("cttissue", issueID),
		)
		return nil, nil
	}
	return s.resumeNodes(ctx, issueID, resumable, actor.Name), nil
}

// resumableNodes applies the close rule: a candidate is resumable only when no other
// open issue has it as hostname and no other issue holds it as an open sibling.
func (s *Service) resumableNodes(ctx context.Context, issue ports.Issue) ([]string, error) {
	openSiblings, err := s.repo.ListSiblings(ctx, issue.ID, domainctt.StatusOpen)
	if err != nil {
		return nil, err
	}

	candidates := domainctt.SplitHosts(issue.Hostname)
	if len(openSiblings) > 0 {
		candidates, err = s.opts.Topology.Siblings(issue.Hostname)
		if err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(candidates))
	for _, node := range candidates {
		if node == domainctt.FatalHost {
			continue
		}
		issues, err := s.repo.CountOtherOpenIssuesForNode(ctx, node, issue.ID)
		if err != nil {
			return nil, err
		}
		siblings, err := s.repo.CountOtherOpenSiblingsForNode(ctx, node, issue.ID)
		if err != nil {
			return nil, err
		}
		if issues > 0 || siblings > 0 {
			logging.Info(ctx, "node still held elsewhere, not resuming",
				slog.String("component", "usecase.tracker"),
				slog.Uint64("cttissue", issue.ID),
				slog.String("node", node),
			)
			continue
		}
		out = append(out, node)
	}
	return out, nil
}
