package tracker

import (
	"context"
	"fmt"

	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/ports"
)

// AttachSiblings pulls every other node of the issue's blade into the issue and
// drains them when enforcement is on. It returns the nodes newly attached.
func (s *Service) AttachSiblings(ctx context.Context, issueID uint64, actor Actor) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if err := checkActor(actor); err != nil {
		return nil, err
	}

	var attached []string
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		attached, err = s.attachSiblingsTx(txCtx, issueID, actor)
		return err
	}); err != nil {
		return nil, err
	}

	if s.opts.Enforcement {
		s.drainNodes(ctx, issueID, attached, actor.Name)
	}
	return attached, nil
}

func (s *Service) attachSiblingsTx(ctx context.Context, issueID uint64, actor Actor) ([]string, error) {
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.Status != domainctt.StatusOpen {
		return nil, fmt.Errorf("%w: %d", domainctt.ErrIssueNotOpen, issueID)
	}

	primary, err := domainctt.ParseNode(issue.Hostname)
	if err != nil {
		return nil, err
	}
	blade, err := s.opts.Topology.Siblings(issue.Hostname)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListSiblings(ctx, issueID, domainctt.StatusOpen)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(existing)+1)
	known[primary.String()] = struct{}{}
	for _, sib := range existing {
		known[sib.Node] = struct{}{}
	}

	now := s.timestamp()
	attached := make([]string, 0, len(blade))
	for _, node := range blade {
		if _, ok := known[node]; ok {
			continue
		}
		if err := s.repo.CreateSibling(ctx, ports.Sibling{
			IssueID:  issueID,
			OpenedAt: now,
			Status:   domainctt.StatusOpen,
			Parent:   issue.Hostname,
			Node:     node,
			State:    domainctt.StateUnknown,
		}); err != nil {
			return nil, err
		}
		if err := s.history(ctx, issueID, actor.Name, now, fmt.Sprintf("Attached sibling %s to issue", node)); err != nil {
			return nil, err
		}
		attached = append(attached, node)
	}

	issueType := domainctt.TypeHardwareWithSiblings
	if err := s.repo.UpdateIssue(ctx, issueID, ports.IssueUpdate{IssueType: &issueType}); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, issueID, actor, now); err != nil {
		return nil, err
	}
	return attached, nil
}
