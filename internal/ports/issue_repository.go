package ports

import (
	"context"
	"errors"

	domainctt "ctt/internal/domain/ctt"
)

var ErrIssueNotFound = errors.New("ctt issue not found")

// Issue is one row of the issues table.
type Issue struct {
	ID          uint64
	OpenedAt    string
	Severity    int
	Tickets     string
	Status      domainctt.Status
	Cluster     string
	Hostname    string
	Title       string
	Description string
	AssignedTo  string
	Originator  string
	UpdatedBy   string
	IssueType   domainctt.IssueType
	NodeState   string
	UpdatedAt   string
	ViewTracker string
}

type Sibling struct {
	IssueID  uint64
	OpenedAt string
	Status   domainctt.Status
	Parent   string
	Node     string
	State    string
}

type Comment struct {
	IssueID uint64
	Time    string
	Author  string
	Text    string
}

type HistoryEntry struct {
	IssueID uint64
	Time    string
	Author  string
	Text    string
}

// IssueFilter selects issues for listings. An empty Status lists every real issue.
type IssueFilter struct {
	Status domainctt.Status
}

// IssueUpdate carries the columns to change; nil fields are left alone.
type IssueUpdate struct {
	Severity    *int
	Tickets     *string
	Cluster     *string
	Hostname    *string
	Title       *string
	Description *string
	AssignedTo  *string
	IssueType   *domainctt.IssueType
	NodeState   *string
	UpdatedBy   *string
	UpdatedAt   *string
	ViewTracker *string
}

func (u IssueUpdate) Empty() bool {
	return u == IssueUpdate{}
}

type IssueReadRepository interface {
	GetIssue(ctx context.Context, issueID uint64) (Issue, error)
	ListIssues(ctx context.Context, filter IssueFilter) ([]Issue, error)
	CountOpenIssues(ctx context.Context) (int64, error)
	HasOpenIssueTitled(ctx context.Context, title string) (bool, error)
	// FindOpenIssueByNode matches node against the hostname of open issues,
	// including combined hostnames listing several nodes.
	FindOpenIssueByNode(ctx context.Context, node string) (Issue, bool, error)
	CountOtherOpenIssuesForNode(ctx context.Context, node string, excludeIssueID uint64) (int64, error)

	ListSiblings(ctx context.Context, issueID uint64, status domainctt.Status) ([]Sibling, error)
	ListOpenSiblingsByNode(ctx context.Context, node string) ([]Sibling, error)
	CountOtherOpenSiblingsForNode(ctx context.Context, node string, excludeIssueID uint64) (int64, error)

	ListComments(ctx context.Context, issueID uint64) ([]Comment, error)
	ListHistory(ctx context.Context, issueID uint64) ([]HistoryEntry, error)
}

type IssueRepository interface {
	IssueReadRepository
	// EnsureSeed writes the "Created table" row and the id sequence when missing.
	EnsureSeed(ctx context.Context, createdAt string) error
	// NextIssueID atomically allocates the next cttissue number.
	NextIssueID(ctx context.Context) (uint64, error)
	CreateIssue(ctx context.Context, issue Issue) error
	UpdateIssue(ctx context.Context, issueID uint64, update IssueUpdate) error
	SetIssueStatus(ctx context.Context, issueID uint64, status domainctt.Status) error

	CreateSibling(ctx context.Context, sibling Sibling) error
	SetSiblingsStatus(ctx context.Context, issueID uint64, status domainctt.Status) error
	UpdateOpenSiblingState(ctx context.Context, node string, state string) error

	AppendComment(ctx context.Context, comment Comment) error
	AppendHistory(ctx context.Context, entry HistoryEntry) error
}
