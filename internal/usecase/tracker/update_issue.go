package tracker

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/ports"
)

// UpdateFields lists the columns an operator may change; nil fields stay as they are.
type UpdateFields struct {
	Severity *int
	Cluster  *string
	Hostname *string
	// Ticket is toggled in or out of the issue's ticket list.
	Ticket      *string
	AssignedTo  *string
	Title       *string
	Description *string
	IssueType   *domainctt.IssueType
}

func (f UpdateFields) empty() bool {
	return f == UpdateFields{}
}

// UpdateIssue applies the same change to every issue in ids inside one transaction.
// Setting the type to h! attaches siblings and drains them when enforcement is on.
func (s *Service) UpdateIssue(ctx context.Context, ids []uint64, fields UpdateFields, actor Actor) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := checkActor(actor); err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: no issue given", domainctt.ErrInvalidIssueID)
	}
	if fields.empty() {
		return nil
	}
	if err := s.validateUpdate(&fields); err != nil {
		return err
	}

	attached := make(map[uint64][]string)
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		for _, id := range ids {
			if _, err := s.loadIssue(txCtx, id); err != nil {
				return err
			}
		}
		for _, id := range ids {
			nodes, err := s.updateOneTx(txCtx, id, fields, actor)
			if err != nil {
				return err
			}
			if len(nodes) > 0 {
				attached[id] = nodes
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if s.opts.Enforcement {
		for _, id := range ids {
			s.drainNodes(ctx, id, attached[id], actor.Name)
		}
	}
	return nil
}

func (s *Service) validateUpdate(fields *UpdateFields) error {
	if fields.Severity != nil {
		if err := domainctt.ValidateSeverity(*fields.Severity); err != nil {
			return err
		}
	}
	if fields.IssueType != nil {
		t, err := domainctt.ParseIssueType(string(*fields.IssueType))
		if err != nil {
			return err
		}
		fields.IssueType = &t
	}
	if fields.AssignedTo != nil {
		group := strings.ToLower(strings.TrimSpace(*fields.AssignedTo))
		if !s.isGroup(group) {
			return fmt.Errorf("%w: %q", domainctt.ErrInvalidGroup, group)
		}
		fields.AssignedTo = &group
	}
	if fields.Hostname != nil {
		nodes := domainctt.SplitHosts(*fields.Hostname)
		if len(nodes) == 0 {
			return errHostnameRequired
		}
		if len(s.opts.StrictNodes) > 0 {
			for _, node := range nodes {
				if !slices.Contains(s.opts.StrictNodes, node) {
					return fmt.Errorf("%w: %s is not a managed node", domainctt.ErrInvalidNodeName, node)
				}
			}
		}
		joined := strings.Join(nodes, ",")
		fields.Hostname = &joined
	}
	for _, v := range []*string{fields.Title, fields.Description, fields.Cluster, fields.Ticket} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return errEmptyUpdateValue
		}
	}
	return nil
}

func (s *Service) updateOneTx(ctx context.Context, id uint64, fields UpdateFields, actor Actor) ([]string, error) {
	issue, err := s.loadIssue(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	var update ports.IssueUpdate
	var notes []string

	if fields.Severity != nil {
		update.Severity = fields.Severity
		notes = append(notes, "severity changed to "+strconv.Itoa(*fields.Severity))
	}
	if fields.Cluster != nil {
		update.Cluster = fields.Cluster
		notes = append(notes, "cluster changed to "+*fields.Cluster)
	}
	if fields.Hostname != nil {
		if issue.Status == domainctt.StatusOpen {
			for _, node := range domainctt.SplitHosts(*fields.Hostname) {
				other, found, err := s.repo.FindOpenIssueByNode(ctx, node)
				if err != nil {
					return nil, err
				}
				if found && other.ID != id {
					return nil, fmt.Errorf("%w: %s is tracked by issue %d", domainctt.ErrIssueAlreadyOpen, node, other.ID)
				}
			}
		}
		update.Hostname = fields.Hostname
		notes = append(notes, "hostname changed to "+*fields.Hostname)
	}
	if fields.Ticket != nil {
		tickets := domainctt.ToggleTicket(issue.Tickets, *fields.Ticket)
		update.Tickets = &tickets
		notes = append(notes, "ticket list changed to "+tickets)
	}
	if fields.AssignedTo != nil {
		update.AssignedTo = fields.AssignedTo
		notes = append(notes, "assigned to "+*fields.AssignedTo)
	}
	if fields.Title != nil {
		update.Title = fields.Title
		notes = append(notes, "title changed")
	}
	if fields.Description != nil {
		update.Description = fields.Description
		notes = append(notes, "description changed")
	}

	attachSiblings := false
	if fields.IssueType != nil {
		if *fields.IssueType == domainctt.TypeHardwareWithSiblings {
			attachSiblings = true
		} else {
			update.IssueType = fields.IssueType
		}
		notes = append(notes, "issue type changed to "+string(*fields.IssueType))
	}

	if err := s.repo.UpdateIssue(ctx, id, update); err != nil {
		return nil, err
	}
	for _, note := range notes {
		if err := s.history(ctx, id, actor.Name, now, note); err != nil {
			return nil, err
		}
	}
	if err := s.touch(ctx, id, actor, now); err != nil {
		return nil, err
	}

	if !attachSiblings {
		return nil, nil
	}
	return s.attachSiblingsTx(ctx, id, actor)
}
