package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "ctt/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "ctt/internal/infrastructure/persistence/sqlite/uow"
	"ctt/internal/ports"
)

type fakeScheduler struct {
	drained   []string
	resumed   []string
	failDrain map[string]bool
}

func (f *fakeScheduler) QueryNodeStates(context.Context) ([]ports.NodeRecord, error) {
	return nil, nil
}

func (f *fakeScheduler) Drain(_ context.Context, node string) error {
	if f.failDrain[node] {
		return errors.New("clush: exit 1")
	}
	f.drained = append(f.drained, node)
	return nil
}

func (f *fakeScheduler) Resume(_ context.Context, node string) error {
	f.resumed = append(f.resumed, node)
	return nil
}

func (f *fakeScheduler) ReadBadNodeMarker(context.Context, string) (string, error) {
	return "", domainctt.ErrNoMarker
}

var (
	alice = Actor{Name: "alice", Group: "casg"}
	carol = Actor{Name: "carol", Group: "ssg"}
)

func setupService(t *testing.T, opts Options) (*Service, *sqliterepo.IssueRepository, *fakeScheduler) {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "ctt.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repo := sqliterepo.NewIssueRepository(db)
	if err := repo.EnsureSeed(context.Background(), "2026-01-01 00:00:00.000000"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if opts.Cluster == "" {
		opts.Cluster = "testcluster"
	}
	if opts.Audience == nil {
		opts.Audience = []string{"casg", "ssg"}
	}
	sched := &fakeScheduler{failDrain: map[string]bool{}}
	svc := NewService(repo, sqliteuow.NewUnitOfWork(db), sched, opts)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local) }
	return svc, repo, sched
}

func openTestIssue(t *testing.T, svc *Service, hostname string) ports.Issue {
	t.Helper()

	issue, err := svc.OpenIssue(context.Background(), OpenIssueInput{
		Title:       "bad dimm",
		Description: "dimm 4 reports ecc errors",
		Hostname:    hostname,
		Actor:       alice,
	})
	if err != nil {
		t.Fatalf("OpenIssue(%s) error = %v", hostname, err)
	}
	return issue
}

func historyTexts(t *testing.T, repo *sqliterepo.IssueRepository, id uint64) []string {
	t.Helper()

	entries, err := repo.ListHistory(context.Background(), id)
	if err != nil {
		t.Fatalf("ListHistory(%d) error = %v", id, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Text)
	}
	return out
}

func TestOpenIssueAllocatesIncreasingIDsAndDrains(t *testing.T) {
	svc, repo, sched := setupService(t, Options{Enforcement: true})
	ctx := context.Background()

	first := openTestIssue(t, svc, "r1i0n0")
	second := openTestIssue(t, svc, "r1i0n1,r1i0n2")
	if first.ID != 1001 || second.ID <= first.ID {
		t.Fatalf("ids = %d, %d", first.ID, second.ID)
	}

	got, err := svc.GetIssue(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if got.Issue.Status != domainctt.StatusOpen {
		t.Fatalf("status = %q, want open", got.Issue.Status)
	}
	if got.Issue.ViewTracker != "ssg" {
		t.Fatalf("viewtracker = %q, want ssg", got.Issue.ViewTracker)
	}
	if got.Issue.AssignedTo != "casg" || got.Issue.Severity != 3 || got.Issue.IssueType != domainctt.TypeUnknown {
		t.Fatalf("unexpected defaults: %+v", got.Issue)
	}
	if got.Issue.Tickets != domainctt.None {
		t.Fatalf("tickets = %q", got.Issue.Tickets)
	}

	if want := []string{"r1i0n0", "r1i0n1", "r1i0n2"}; !slices.Equal(sched.drained, want) {
		t.Fatalf("drained = %v, want %v", sched.drained, want)
	}
	if texts := historyTexts(t, repo, second.ID); !slices.Equal(texts, []string{"new issue", "Drained r1i0n1", "Drained r1i0n2"}) {
		t.Fatalf("history = %v", texts)
	}
}

func TestOpenIssueRejectsNodeWithOpenIssue(t *testing.T) {
	svc, _, _ := setupService(t, Options{})
	ctx := context.Background()

	openTestIssue(t, svc, "r1i0n1,r1i0n2")

	for _, host := range []string{"r1i0n1", "r1i0n2", "r1i0n3,r1i0n2"} {
		_, err := svc.OpenIssue(ctx, OpenIssueInput{Title: "t", Description: "d", Hostname: host, Actor: alice})
		if !errors.Is(err, domainctt.ErrIssueAlreadyOpen) {
			t.Fatalf("OpenIssue(%s) error = %v, want ErrIssueAlreadyOpen", host, err)
		}
	}

	issues, err := svc.ListIssues(ctx, domainctt.StatusOpen)
	if err != nil {
		t.Fatalf("ListIssues() error = %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("open issues = %d, want 1", len(issues))
	}
}

func TestOpenIssueValidatesInput(t *testing.T) {
	svc, _, _ := setupService(t, Options{StrictNodes: []string{"r1i0n0"}})
	ctx := context.Background()

	cases := []struct {
		name  string
		input OpenIssueInput
		want  error
	}{
		{"severity", OpenIssueInput{Title: "t", Description: "d", Hostname: "r1i0n0", Severity: 7, Actor: alice}, domainctt.ErrInvalidSeverity},
		{"type", OpenIssueInput{Title: "t", Description: "d", Hostname: "r1i0n0", IssueType: "x", Actor: alice}, domainctt.ErrInvalidIssueType},
		{"group", OpenIssueInput{Title: "t", Description: "d", Hostname: "r1i0n0", AssignedTo: "nobody", Actor: alice}, domainctt.ErrInvalidGroup},
		{"strict", OpenIssueInput{Title: "t", Description: "d", Hostname: "r9i9n9", Actor: alice}, domainctt.ErrInvalidNodeName},
		{"actor", OpenIssueInput{Title: "t", Description: "d", Hostname: "r1i0n0"}, errActorRequired},
		{"title", OpenIssueInput{Description: "d", Hostname: "r1i0n0", Actor: alice}, errTitleRequired},
	}
	for _, tc := range cases {
		if _, err := svc.OpenIssue(ctx, tc.input); !errors.Is(err, tc.want) {
			t.Fatalf("%s: error = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestOpenIssueWithoutEnforcementDoesNotDrain(t *testing.T) {
	svc, repo, sched := setupService(t, Options{})

	issue := openTestIssue(t, svc, "r1i0n0")
	if len(sched.drained) != 0 {
		t.Fatalf("drained = %v, want none", sched.drained)
	}
	if texts := historyTexts(t, repo, issue.ID); !slices.Equal(texts, []string{"new issue"}) {
		t.Fatalf("history = %v", texts)
	}
}

func TestDrainFailureIsSkipped(t *testing.T) {
	svc, repo, sched := setupService(t, Options{Enforcement: true})
	sched.failDrain["r1i0n1"] = true

	issue := openTestIssue(t, svc, "r1i0n1,r1i0n2")
	if !slices.Equal(sched.drained, []string{"r1i0n2"}) {
		t.Fatalf("drained = %v", sched.drained)
	}
	if texts := historyTexts(t, repo, issue.ID); !slices.Equal(texts, []string{"new issue", "Drained r1i0n2"}) {
		t.Fatalf("history = %v", texts)
	}
}

func TestAttachSiblings(t *testing.T) {
	svc, repo, sched := setupService(t, Options{Enforcement: true})
	ctx := context.Background()

	issue := openTestIssue(t, svc, "r1i0n0")
	sched.drained = nil

	attached, err := svc.AttachSiblings(ctx, issue.ID, alice)
	if err != nil {
		t.Fatalf("AttachSiblings() error = %v", err)
	}
	want := []string{"r1i0n9", "r1i0n18", "r1i0n27"}
	if !slices.Equal(attached, want) || !slices.Equal(sched.drained, want) {
		t.Fatalf("attached = %v drained = %v, want %v", attached, sched.drained, want)
	}

	detail, err := svc.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if detail.Issue.IssueType != domainctt.TypeHardwareWithSiblings {
		t.Fatalf("issue type = %q, want h!", detail.Issue.IssueType)
	}
	if len(detail.Siblings) != 3 || detail.Siblings[0].State != domainctt.StateUnknown || detail.Siblings[0].Parent != "r1i0n0" {
		t.Fatalf("siblings = %+v", detail.Siblings)
	}
	texts := historyTexts(t, repo, issue.ID)
	if !slices.Contains(texts, "Attached sibling r1i0n18 to issue") {
		t.Fatalf("history = %v", texts)
	}

	again, err := svc.AttachSiblings(ctx, issue.ID, alice)
	if err != nil {
		t.Fatalf("AttachSiblings(again) error = %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("AttachSiblings(again) = %v, want none", again)
	}

	if _, err := svc.CloseIssue(ctx, issue.ID, "", alice); err != nil {
		t.Fatalf("CloseIssue() error = %v", err)
	}
	open, err := svc.ListSiblings(ctx, issue.ID, domainctt.StatusOpen)
	if err != nil {
		t.Fatalf("ListSiblings(open) error = %v", err)
	}
	all, err := svc.ListSiblings(ctx, issue.ID, "")
	if err != nil {
		t.Fatalf("ListSiblings(all) error = %v", err)
	}
	if len(open) != 0 || len(all) != 3 {
		t.Fatalf("open siblings = %d, all = %d", len(open), len(all))
	}
}

func TestAttachSiblingsRequiresOpenIssue(t *testing.T) {
	svc, _, _ := setupService(t, Options{})
	ctx := context.Background()

	issue := openTestIssue(t, svc, "r1i0n0")
	if _, err := svc.CloseIssue(ctx, issue.ID, "", alice); err != nil {
		t.Fatalf("CloseIssue() error = %v", err)
	}
	if _, err := svc.AttachSiblings(ctx, issue.ID, alice); !errors.Is(err, domainctt.ErrIssueNotOpen) {
		t.Fatalf("AttachSiblings(closed) error = %v, want ErrIssueNotOpen", err)
	}

	combined := openTestIssue(t, svc, "r2i0n0,r2i0n1")
	if _, err := svc.AttachSiblings(ctx, combined.ID, alice); !errors.Is(err, domainctt.ErrInvalidNodeName) {
		t.Fatalf("AttachSiblings(combined) error = %v, want ErrInvalidNodeName", err)
	}
}

func TestCloseDoesNotResumeNodeHeldBySiblingElsewhere(t *testing.T) {
	svc, repo, sched := setupService(t, Options{Enforcement: true})
	ctx := context.Background()

	a := openTestIssue(t, svc, "r1i1n1")
	if _, err := svc.AttachSiblings(ctx, a.ID, alice); err != nil {
		t.Fatalf("AttachSiblings() error = %v", err)
	}
	b := openTestIssue(t, svc, "r2i0n0")
	if err := repo.CreateSibling(ctx, ports.Sibling{
		IssueID: b.ID, OpenedAt: "2026-03-01 10:00:00.000000", Status: domainctt.StatusOpen,
		Parent: "r2i0n0", Node: "r1i1n10", State: domainctt.StateUnknown,
	}); err != nil {
		t.Fatalf("CreateSibling() error = %v", err)
	}

	resumed, err := svc.CloseIssue(ctx, a.ID, "dimm replaced", alice)
	if err != nil {
		t.Fatalf("CloseIssue() error = %v", err)
	}
	want := []string{"r1i1n1", "r1i1n19", "r1i1n28"}
	if !slices.Equal(resumed, want) || !slices.Equal(sched.resumed, want) {
		t.Fatalf("resumed = %v (scheduler %v), want %v", resumed, sched.resumed, want)
	}

	detail, err := svc.GetIssue(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if detail.Issue.Status != domainctt.StatusClosed {
		t.Fatalf("status = %q, want closed", detail.Issue.Status)
	}
	for _, sib := range detail.Siblings {
		if sib.Status != domainctt.StatusClosed {
			t.Fatalf("sibling %s status = %q, want closed", sib.Node, sib.Status)
		}
	}
	if len(detail.Comments) != 1 || detail.Comments[0].Text != "dimm replaced" {
		t.Fatalf("comments = %+v", detail.Comments)
	}
	texts := historyTexts(t, repo, a.ID)
	if !slices.Contains(texts, "closed issue") || !slices.Contains(texts, "ctt resumed r1i1n19") || slices.Contains(texts, "ctt resumed r1i1n10") {
		t.Fatalf("history = %v", texts)
	}
}

func TestCloseDoesNotResumeNodeWithAnotherOpenIssue(t *testing.T) {
	svc, _, sched := setupService(t, Options{Enforcement: true})
	ctx := context.Background()

	a := openTestIssue(t, svc, "r1i0n0")
	if _, err := svc.AttachSiblings(ctx, a.ID, alice); err != nil {
		t.Fatalf("AttachSiblings() error = %v", err)
	}
	openTestIssue(t, svc, "r1i0n9")

	resumed, err := svc.CloseIssue(ctx, a.ID, "", alice)
	if err != nil {
		t.Fatalf("CloseIssue() error = %v", err)
	}
	if slices.Contains(resumed, "r1i0n9") || slices.Contains(sched.resumed, "r1i0n9") {
		t.Fatalf("r1i0n9 resumed while its own issue is open: %v", resumed)
	}
	if len(resumed) != 3 {
		t.Fatalf("resumed = %v, want 3 nodes", resumed)
	}
}

func TestCloseWithoutEnforcementSkipsResume(t *testing.T) {
	svc, _, sched := setupService(t, Options{})
	ctx := context.Background()

	issue := openTestIssue(t, svc, "r1i0n0")
	resumed, err := svc.CloseIssue(ctx, issue.ID, "", alice)
	if err != nil {
		t.Fatalf("CloseIssue() error = %v", err)
	}
	if len(resumed) != 0 || len(sched.resumed) != 0 {
		t.Fatalf("resumed = %v, want none", resumed)
	}

	if _, err := svc.CloseIssue(ctx, issue.ID, "", alice); !errors.Is(err, domainctt.ErrIssueNotOpen) {
		t.Fatalf("CloseIssue(again) error = %v, want ErrIssueNotOpen", err)
	}
}

func TestCommentRoundTrip(t *testing.T) {
	svc, repo, _ := setupService(t, Options{})
	ctx := context.Background()

	issue := openTestIssue(t, svc, "r1i0n0")
	if err := svc.CommentIssue(ctx, issue.ID, "first look: dimm 4", carol); err != nil {
		t.Fatalf("CommentIssue() error = %v", err)
	}
	if err := svc.CommentIssue(ctx, issue.ID, "vendor ticket opened", alice); err != nil {
		t.Fatalf("CommentIssue(second) error = %v", err)
	}

	comments, err := svc.ListComments(ctx, issue.ID)
	if err != nil {
		t.Fatalf("ListComments() error = %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("comments = %+v", comments)
	}
	if comments[0].Text != "first look: dimm 4" || comments[0].Author != "carol" || comments[1].Author != "alice" {
		t.Fatalf("comments = %+v", comments)
	}

	detail, err := svc.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if detail.Issue.ViewTracker != "ssg" || detail.Issue.UpdatedBy != "alice" {
		t.Fatalf("viewtracker=%q updatedby=%q", detail.Issue.ViewTracker, detail.Issue.UpdatedBy)
	}
	if texts := historyTexts(t, repo, issue.ID); !slices.Equal(texts, []string{"new issue", "comment added", "comment added"}) {
		t.Fatalf("history = %v", texts)
	}

	if err := svc.CommentIssue(ctx, issue.ID, "  ", alice); !errors.Is(err, errCommentRequired) {
		t.Fatalf("CommentIssue(blank) error = %v", err)
	}
}

func TestDeleteIssue(t *testing.T) {
	svc, repo, sched := setupService(t, Options{Enforcement: true})
	ctx := context.Background()

	issue := openTestIssue(t, svc, "r1i0n0")
	if _, err := svc.AttachSiblings(ctx, issue.ID, alice); err != nil {
		t.Fatalf("AttachSiblings() error = %v", err)
	}
	before := len(historyTexts(t, repo, issue.ID))

	if err := svc.DeleteIssue(ctx, issue.ID, alice); err != nil {
		t.Fatalf("DeleteIssue() error = %v", err)
	}
	if len(sched.resumed) != 0 {
		t.Fatalf("delete resumed %v", sched.resumed)
	}
	if after := len(historyTexts(t, repo, issue.ID)); after != before {
		t.Fatalf("history grew from %d to %d", before, after)
	}
	open, err := repo.ListSiblings(ctx, issue.ID, domainctt.StatusOpen)
	if err != nil {
		t.Fatalf("ListSiblings() error = %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("open siblings after delete = %+v", open)
	}

	if _, err := svc.GetIssue(ctx, issue.ID); !errors.Is(err, domainctt.ErrIssueNotFound) {
		t.Fatalf("GetIssue(deleted) error = %v", err)
	}
	if err := svc.DeleteIssue(ctx, issue.ID, alice); !errors.Is(err, domainctt.ErrIssueNotFound) {
		t.Fatalf("DeleteIssue(again) error = %v", err)
	}
	if err := svc.CommentIssue(ctx, issue.ID, "late", alice); !errors.Is(err, domainctt.ErrIssueNotFound) {
		t.Fatalf("CommentIssue(deleted) error = %v", err)
	}
}

func TestAssignIssue(t *testing.T) {
	svc, _, _ := setupService(t, Options{})
	ctx := context.Background()

	issue := openTestIssue(t, svc, "r1i0n0")
	if err := svc.AssignIssue(ctx, issue.ID, "nobody", alice); !errors.Is(err, domainctt.ErrInvalidGroup) {
		t.Fatalf("AssignIssue(nobody) error = %v", err)
	}
	if err := svc.AssignIssue(ctx, issue.ID, "SSG", alice); err != nil {
		t.Fatalf("AssignIssue(ssg) error = %v", err)
	}
	detail, err := svc.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if detail.Issue.AssignedTo != "ssg" {
		t.Fatalf("assignedto = %q", detail.Issue.AssignedTo)
	}
	if err := svc.AssignIssue(ctx, 9999, "ssg", alice); !errors.Is(err, domainctt.ErrIssueNotFound) {
		t.Fatalf("AssignIssue(missing) error = %v", err)
	}
}

func TestReopenIssue(t *testing.T) {
	svc, repo, sched := setupService(t, Options{Enforcement: true})
	ctx := context.Background()

	issue := openTestIssue(t, svc, "r1i0n0")
	if err := svc.ReopenIssue(ctx, issue.ID, "", alice); !errors.Is(err, domainctt.ErrIssueNotClosed) {
		t.Fatalf("ReopenIssue(open) error = %v", err)
	}
	if _, err := svc.CloseIssue(ctx, issue.ID, "", alice); err != nil {
		t.Fatalf("CloseIssue() error = %v", err)
	}
	sched.drained = nil

	if err := svc.ReopenIssue(ctx, issue.ID, "came back", alice); err != nil {
		t.Fatalf("ReopenIssue() error = %v", err)
	}
	detail, err := svc.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if detail.Issue.Status != domainctt.StatusOpen {
		t.Fatalf("status = %q", detail.Issue.Status)
	}
	if len(sched.drained) != 0 {
		t.Fatalf("reopen drained %v", sched.drained)
	}
	if texts := historyTexts(t, repo, issue.ID); texts[len(texts)-1] != "reopened issue" {
		t.Fatalf("history = %v", texts)
	}

	if _, err := svc.CloseIssue(ctx, issue.ID, "", alice); err != nil {
		t.Fatalf("CloseIssue(second) error = %v", err)
	}
	openTestIssue(t, svc, "r1i0n0")
	if err := svc.ReopenIssue(ctx, issue.ID, "", alice); !errors.Is(err, domainctt.ErrIssueAlreadyOpen) {
		t.Fatalf("ReopenIssue(node busy) error = %v", err)
	}
}

func TestUpdateIssue(t *testing.T) {
	svc, repo, sched := setupService(t, Options{Enforcement: true})
	ctx := context.Background()

	a := openTestIssue(t, svc, "r1i0n0")
	b := openTestIssue(t, svc, "r3i0n0")
	sched.drained = nil

	sev := 1
	ticket := "INC1234"
	if err := svc.UpdateIssue(ctx, []uint64{a.ID, b.ID}, UpdateFields{Severity: &sev, Ticket: &ticket}, carol); err != nil {
		t.Fatalf("UpdateIssue() error = %v", err)
	}
	got, err := svc.GetIssue(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if got.Issue.Severity != 1 || got.Issue.Tickets != "INC1234" || got.Issue.ViewTracker != "casg" {
		t.Fatalf("after update: %+v", got.Issue)
	}

	if err := svc.UpdateIssue(ctx, []uint64{a.ID}, UpdateFields{Ticket: &ticket}, carol); err != nil {
		t.Fatalf("UpdateIssue(toggle) error = %v", err)
	}
	got, _ = svc.GetIssue(ctx, a.ID)
	if got.Issue.Tickets != domainctt.None {
		t.Fatalf("tickets after toggle = %q", got.Issue.Tickets)
	}

	hw := domainctt.TypeHardwareWithSiblings
	if err := svc.UpdateIssue(ctx, []uint64{a.ID}, UpdateFields{IssueType: &hw}, carol); err != nil {
		t.Fatalf("UpdateIssue(h!) error = %v", err)
	}
	if !slices.Equal(sched.drained, []string{"r1i0n9", "r1i0n18", "r1i0n27"}) {
		t.Fatalf("drained = %v", sched.drained)
	}
	texts := historyTexts(t, repo, a.ID)
	if !slices.Contains(texts, "severity changed to 1") || !slices.Contains(texts, "issue type changed to h!") {
		t.Fatalf("history = %v", texts)
	}

	bad := 9
	if err := svc.UpdateIssue(ctx, []uint64{a.ID}, UpdateFields{Severity: &bad}, carol); !errors.Is(err, domainctt.ErrInvalidSeverity) {
		t.Fatalf("UpdateIssue(bad severity) error = %v", err)
	}
	if err := svc.UpdateIssue(ctx, []uint64{a.ID, 9999}, UpdateFields{Severity: &sev}, carol); !errors.Is(err, domainctt.ErrIssueNotFound) {
		t.Fatalf("UpdateIssue(missing) error = %v", err)
	}

	host := "r3i0n0"
	if err := svc.UpdateIssue(ctx, []uint64{a.ID}, UpdateFields{Hostname: &host}, carol); !errors.Is(err, domainctt.ErrIssueAlreadyOpen) {
		t.Fatalf("UpdateIssue(hostname taken) error = %v", err)
	}
}

func TestAcknowledgeIssue(t *testing.T) {
	svc, _, _ := setupService(t, Options{Audience: []string{"casg", "ssg", "hsg"}})
	ctx := context.Background()

	issue := openTestIssue(t, svc, "r1i0n0")
	if issue.ViewTracker != "ssg.hsg" {
		t.Fatalf("viewtracker = %q", issue.ViewTracker)
	}
	for _, group := range []string{"ssg", "hsg"} {
		if err := svc.AcknowledgeIssue(ctx, issue.ID, group); err != nil {
			t.Fatalf("AcknowledgeIssue(%s) error = %v", group, err)
		}
	}
	detail, err := svc.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if detail.Issue.ViewTracker != domainctt.None {
		t.Fatalf("viewtracker = %q, want ---", detail.Issue.ViewTracker)
	}
}

func TestOpenSentinel(t *testing.T) {
	svc, repo, sched := setupService(t, Options{Enforcement: true})
	ctx := context.Background()

	issue, err := svc.OpenSentinel(ctx, "Can not get pbsnodes", "Can not get pbsnodes from admin", SystemActor())
	if err != nil {
		t.Fatalf("OpenSentinel() error = %v", err)
	}
	if issue.Hostname != domainctt.FatalHost || issue.Severity != 1 || issue.IssueType != domainctt.TypeOther {
		t.Fatalf("sentinel = %+v", issue)
	}
	if len(sched.drained) != 0 {
		t.Fatalf("sentinel drained %v", sched.drained)
	}
	if texts := historyTexts(t, repo, issue.ID); !slices.Equal(texts, []string{"new issue"}) {
		t.Fatalf("history = %v", texts)
	}

	if _, err := svc.OpenSentinel(ctx, "MAX OPEN REACHED", "details", SystemActor()); err != nil {
		t.Fatalf("OpenSentinel(second FATAL) error = %v", err)
	}
}

func TestStats(t *testing.T) {
	svc, _, _ := setupService(t, Options{})
	ctx := context.Background()

	a := openTestIssue(t, svc, "r1i0n0")
	openTestIssue(t, svc, "r1i0n1")
	c := openTestIssue(t, svc, "r1i0n2")
	if _, err := svc.CloseIssue(ctx, a.ID, "", alice); err != nil {
		t.Fatalf("CloseIssue() error = %v", err)
	}
	if err := svc.DeleteIssue(ctx, c.ID, alice); err != nil {
		t.Fatalf("DeleteIssue() error = %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 3 || stats.ByStatus[domainctt.StatusOpen] != 1 || stats.ByStatus[domainctt.StatusClosed] != 1 || stats.ByStatus[domainctt.StatusDeleted] != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.BySeverity[3] != 1 || stats.ByType[domainctt.TypeUnknown] != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}
