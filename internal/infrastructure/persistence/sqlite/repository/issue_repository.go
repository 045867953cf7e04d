package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/errs"
	"ctt/internal/infrastructure/persistence/sqlite/model"
	"ctt/internal/ports"
)

const issueSequence = "cttissue"

// hostMatch matches a node against plain and combined ("a,b" or "a b") hostnames.
// instr is case-sensitive and treats the node as literal text.
const hostMatch = "(hostname = ? OR instr(',' || replace(hostname, ' ', ',') || ',', ?) > 0)"

type IssueRepository struct {
	db *gorm.DB
}

var _ ports.IssueRepository = (*IssueRepository)(nil)

func NewIssueRepository(db *gorm.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

func (r *IssueRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// inTx runs fn in the caller's transaction, or opens one when ctx carries none.
func (r *IssueRepository) inTx(ctx context.Context, fn func(db *gorm.DB) error) error {
	if ports.TxFromContext(ctx) != nil {
		db, err := r.dbFromContext(ctx)
		if err != nil {
			return err
		}
		return fn(db)
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

// cttissue columns are TEXT in the legacy schema, so ids are always bound as text.
func key(issueID uint64) string {
	return strconv.FormatUint(issueID, 10)
}

func listMember(node string) string {
	return "," + node + ","
}

func (r *IssueRepository) EnsureSeed(ctx context.Context, createdAt string) error {
	return r.inTx(ctx, func(db *gorm.DB) error {
		var count int64
		if err := db.Model(&model.Issue{}).Count(&count).Error; err != nil {
			return errs.Wrap(err, "count issues")
		}
		if count == 0 {
			row := model.Issue{
				CttIssue:         domainctt.FirstIssueID,
				Date:             createdAt,
				Severity:         99,
				Ticket:           domainctt.None,
				Status:           domainctt.None,
				Cluster:          domainctt.None,
				Hostname:         domainctt.None,
				IssueTitle:       domainctt.None,
				IssueDescription: "Created table",
				AssignedTo:       domainctt.None,
				IssueOriginator:  domainctt.None,
				UpdatedBy:        domainctt.None,
				IssueType:        domainctt.None,
				State:            domainctt.None,
				UpdatedTime:      domainctt.None,
				ViewTracker:      domainctt.None,
			}
			if err := db.Create(&row).Error; err != nil {
				return errs.Wrap(err, "insert table created row")
			}
		}

		var seq int64
		if err := db.Model(&model.Sequence{}).Where("name = ?", issueSequence).Count(&seq).Error; err != nil {
			return errs.Wrap(err, "count issue sequence")
		}
		if seq > 0 {
			return nil
		}

		maxID, err := maxIssueID(db)
		if err != nil {
			return err
		}
		if err := db.Create(&model.Sequence{Name: issueSequence, Value: maxID}).Error; err != nil {
			return errs.Wrap(err, "insert issue sequence")
		}
		return nil
	})
}

func maxIssueID(db *gorm.DB) (uint64, error) {
	var maxID uint64
	if err := db.Model(&model.Issue{}).
		Select("COALESCE(MAX(CAST(cttissue AS INTEGER)), ?)", domainctt.FirstIssueID).
		Scan(&maxID).Error; err != nil {
		return 0, errs.Wrap(err, "query max cttissue")
	}
	if maxID < domainctt.FirstIssueID {
		maxID = domainctt.FirstIssueID
	}
	return maxID, nil
}

// NextIssueID bumps the sequence row before reading it, so the transaction holds
// SQLite's write lock for the whole read-modify-write.
func (r *IssueRepository) NextIssueID(ctx context.Context) (uint64, error) {
	var next uint64
	err := r.inTx(ctx, func(db *gorm.DB) error {
		res := db.Model(&model.Sequence{}).
			Where("name = ?", issueSequence).
			Update("value", gorm.Expr("value + 1"))
		if res.Error != nil {
			return errs.Wrap(res.Error, "increment issue sequence")
		}

		if res.RowsAffected == 0 {
			maxID, err := maxIssueID(db)
			if err != nil {
				return err
			}
			next = maxID + 1
			if err := db.Create(&model.Sequence{Name: issueSequence, Value: next}).Error; err != nil {
				return errs.Wrap(err, "insert issue sequence")
			}
			return nil
		}

		var seq model.Sequence
		if err := db.Where("name = ?", issueSequence).Take(&seq).Error; err != nil {
			return errs.Wrap(err, "read issue sequence")
		}
		next = seq.Value
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *IssueRepository) CreateIssue(ctx context.Context, issue ports.Issue) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := toIssueRow(issue)
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrapf(err, "insert issue %d", issue.ID)
	}
	return nil
}

func (r *IssueRepository) GetIssue(ctx context.Context, issueID uint64) (ports.Issue, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Issue{}, err
	}

	var row model.Issue
	if err := db.Where("cttissue = ? AND status IN ?", key(issueID), realStatuses()).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Issue{}, ports.ErrIssueNotFound
		}
		return ports.Issue{}, errs.Wrap(err, "query issue")
	}
	return mapIssue(row), nil
}

func (r *IssueRepository) ListIssues(ctx context.Context, filter ports.IssueFilter) ([]ports.Issue, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Issue{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	} else {
		query = query.Where("status IN ?", realStatuses())
	}

	var rows []model.Issue
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query issues")
	}

	items := make([]ports.Issue, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapIssue(row))
	}
	return items, nil
}

func (r *IssueRepository) CountOpenIssues(ctx context.Context) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.Issue{}).Where("status = ?", string(domainctt.StatusOpen)).Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count open issues")
	}
	return count, nil
}

func (r *IssueRepository) HasOpenIssueTitled(ctx context.Context, title string) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	var count int64
	if err := db.Model(&model.Issue{}).
		Where("status = ? AND issuetitle = ?", string(domainctt.StatusOpen), title).
		Count(&count).Error; err != nil {
		return false, errs.Wrap(err, "count open issues by title")
	}
	return count > 0, nil
}

func (r *IssueRepository) FindOpenIssueByNode(ctx context.Context, node string) (ports.Issue, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Issue{}, false, err
	}
	return firstIssue(db.Where("status = ? AND "+hostMatch, string(domainctt.StatusOpen), node, listMember(node)))
}

func firstIssue(query *gorm.DB) (ports.Issue, bool, error) {
	var rows []model.Issue
	if err := query.Order("id asc").Limit(1).Find(&rows).Error; err != nil {
		return ports.Issue{}, false, errs.Wrap(err, "query open issue")
	}
	if len(rows) == 0 {
		return ports.Issue{}, false, nil
	}
	return mapIssue(rows[0]), true, nil
}

func (r *IssueRepository) CountOtherOpenIssuesForNode(ctx context.Context, node string, excludeIssueID uint64) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.Issue{}).
		Where("status = ? AND cttissue != ? AND "+hostMatch, string(domainctt.StatusOpen), key(excludeIssueID), node, listMember(node)).
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count other open issues for node")
	}
	return count, nil
}

func (r *IssueRepository) UpdateIssue(ctx context.Context, issueID uint64, update ports.IssueUpdate) error {
	if update.Empty() {
		return nil
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Issue{}).
		Where("cttissue = ?", key(issueID)).
		Updates(updateColumns(update)).Error; err != nil {
		return errs.Wrapf(err, "update issue %d", issueID)
	}
	return nil
}

func (r *IssueRepository) SetIssueStatus(ctx context.Context, issueID uint64, status domainctt.Status) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Issue{}).
		Where("cttissue = ?", key(issueID)).
		Update("status", string(status)).Error; err != nil {
		return errs.Wrapf(err, "set issue %d status %s", issueID, status)
	}
	return nil
}

func (r *IssueRepository) CreateSibling(ctx context.Context, sibling ports.Sibling) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Sibling{
		CttIssue: sibling.IssueID,
		Date:     sibling.OpenedAt,
		Status:   string(sibling.Status),
		Parent:   sibling.Parent,
		Sibling:  sibling.Node,
		State:    sibling.State,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrapf(err, "insert sibling %s", sibling.Node)
	}
	return nil
}

func (r *IssueRepository) ListSiblings(ctx context.Context, issueID uint64, status domainctt.Status) ([]ports.Sibling, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Where("cttissue = ?", key(issueID))
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	return findSiblings(query)
}

func (r *IssueRepository) ListOpenSiblingsByNode(ctx context.Context, node string) ([]ports.Sibling, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return findSiblings(db.Where("sibling = ? AND status = ?", node, string(domainctt.StatusOpen)))
}

func findSiblings(query *gorm.DB) ([]ports.Sibling, error) {
	var rows []model.Sibling
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query siblings")
	}

	items := make([]ports.Sibling, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.Sibling{
			IssueID:  row.CttIssue,
			OpenedAt: row.Date,
			Status:   domainctt.Status(row.Status),
			Parent:   row.Parent,
			Node:     row.Sibling,
			State:    row.State,
		})
	}
	return items, nil
}

func (r *IssueRepository) CountOtherOpenSiblingsForNode(ctx context.Context, node string, excludeIssueID uint64) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.Sibling{}).
		Where("sibling = ? AND status = ? AND cttissue != ?", node, string(domainctt.StatusOpen), key(excludeIssueID)).
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count other open siblings for node")
	}
	return count, nil
}

func (r *IssueRepository) SetSiblingsStatus(ctx context.Context, issueID uint64, status domainctt.Status) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Sibling{}).
		Where("cttissue = ?", key(issueID)).
		Update("status", string(status)).Error; err != nil {
		return errs.Wrapf(err, "set siblings of %d %s", issueID, status)
	}
	return nil
}

func (r *IssueRepository) UpdateOpenSiblingState(ctx context.Context, node string, state string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Sibling{}).
		Where("sibling = ? AND status = ?", node, string(domainctt.StatusOpen)).
		Update("state", state).Error; err != nil {
		return errs.Wrapf(err, "update sibling %s state", node)
	}
	return nil
}

func (r *IssueRepository) AppendComment(ctx context.Context, comment ports.Comment) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Comment{
		CttIssue:  comment.IssueID,
		Date:      comment.Time,
		UpdatedBy: comment.Author,
		Comment:   comment.Text,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert comment")
	}
	return nil
}

func (r *IssueRepository) ListComments(ctx context.Context, issueID uint64) ([]ports.Comment, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Comment
	if err := db.Where("cttissue = ?", key(issueID)).Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query comments")
	}

	items := make([]ports.Comment, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.Comment{
			IssueID: row.CttIssue,
			Time:    row.Date,
			Author:  row.UpdatedBy,
			Text:    row.Comment,
		})
	}
	return items, nil
}

func (r *IssueRepository) AppendHistory(ctx context.Context, entry ports.HistoryEntry) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.History{
		CttIssue:  entry.IssueID,
		Date:      entry.Time,
		UpdatedBy: entry.Author,
		Info:      entry.Text,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert history")
	}
	return nil
}

func (r *IssueRepository) ListHistory(ctx context.Context, issueID uint64) ([]ports.HistoryEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.History
	if err := db.Where("cttissue = ?", key(issueID)).Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query history")
	}

	items := make([]ports.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.HistoryEntry{
			IssueID: row.CttIssue,
			Time:    row.Date,
			Author:  row.UpdatedBy,
			Text:    row.Info,
		})
	}
	return items, nil
}

func realStatuses() []string {
	return []string{
		string(domainctt.StatusOpen),
		string(domainctt.StatusClosed),
		string(domainctt.StatusDeleted),
	}
}

func updateColumns(u ports.IssueUpdate) map[string]any {
	cols := make(map[string]any, 12)
	if u.Severity != nil {
		cols["severity"] = *u.Severity
	}
	if u.Tickets != nil {
		cols["ticket"] = *u.Tickets
	}
	if u.Cluster != nil {
		cols["cluster"] = *u.Cluster
	}
	if u.Hostname != nil {
		cols["hostname"] = *u.Hostname
	}
	if u.Title != nil {
		cols["issuetitle"] = *u.Title
	}
	if u.Description != nil {
		cols["issuedescription"] = *u.Description
	}
	if u.AssignedTo != nil {
		cols["assignedto"] = *u.AssignedTo
	}
	if u.IssueType != nil {
		cols["issuetype"] = string(*u.IssueType)
	}
	if u.NodeState != nil {
		cols["state"] = *u.NodeState
	}
	if u.UpdatedBy != nil {
		cols["updatedby"] = *u.UpdatedBy
	}
	if u.UpdatedAt != nil {
		cols["updatedtime"] = *u.UpdatedAt
	}
	if u.ViewTracker != nil {
		cols["viewtracker"] = *u.ViewTracker
	}
	return cols
}

func toIssueRow(issue ports.Issue) model.Issue {
	return model.Issue{
		CttIssue:         issue.ID,
		Date:             issue.OpenedAt,
		Severity:         issue.Severity,
		Ticket:           issue.Tickets,
		Status:           string(issue.Status),
		Cluster:          issue.Cluster,
		Hostname:         issue.Hostname,
		IssueTitle:       issue.Title,
		IssueDescription: issue.Description,
		AssignedTo:       issue.AssignedTo,
		IssueOriginator:  issue.Originator,
		UpdatedBy:        issue.UpdatedBy,
		IssueType:        string(issue.IssueType),
		State:            issue.NodeState,
		UpdatedTime:      issue.UpdatedAt,
		ViewTracker:      issue.ViewTracker,
	}
}

func mapIssue(row model.Issue) ports.Issue {
	return ports.Issue{
		ID:          row.CttIssue,
		OpenedAt:    row.Date,
		Severity:    row.Severity,
		Tickets:     row.Ticket,
		Status:      domainctt.Status(row.Status),
		Cluster:     row.Cluster,
		Hostname:    row.Hostname,
		Title:       row.IssueTitle,
		Description: row.IssueDescription,
		AssignedTo:  row.AssignedTo,
		Originator:  row.IssueOriginator,
		UpdatedBy:   row.UpdatedBy,
		IssueType:   domainctt.IssueType(row.IssueType),
		NodeState:   row.State,
		UpdatedAt:   row.UpdatedTime,
		ViewTracker: row.ViewTracker,
	}
}
