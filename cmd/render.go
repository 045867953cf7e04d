package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	domainctt "ctt/internal/domain/ctt"
	"ctt/internal/errs"
	"ctt/internal/ports"
	"ctt/internal/usecase/tracker"
)

const (
	ruler     = "----------------------------------------"
	wrapWidth = 60
	titleCap  = 25
)

// isTerminal reports whether w is a terminal; colour is only used there.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type styles struct {
	color    bool
	label    lipgloss.Style
	urgent   lipgloss.Style
	header   lipgloss.Style
	dimmed   lipgloss.Style
	wrapping lipgloss.Style
}

func newStyles(color bool) styles {
	return styles{
		color:    color,
		label:    lipgloss.NewStyle().Bold(true),
		urgent:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		dimmed:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		wrapping: lipgloss.NewStyle().Width(wrapWidth),
	}
}

func (s styles) apply(style lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return style.Render(text)
}

// wrap folds text at wrapWidth without the padding lipgloss adds to short lines.
func (s styles) wrap(text string) string {
	lines := strings.Split(s.wrapping.Render(text), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}

type column struct {
	name  string
	width int
}

var (
	baseColumns = []column{
		{"ISSUE", 8}, {"DATE", 19}, {"TICKET", 9}, {"HOSTNAME", 13}, {"STATE", 16},
		{"SEV", 6}, {"TYPE", 7}, {"OWNER", 8}, {"UNSEEN", 12},
	}
	verboseColumns = []column{
		{"CLUSTER", 12}, {"ORIG", 8}, {"UPD.BY", 10}, {"UPD.TIME", 19}, {"STATUS", 10},
	}
)

func listColumns(verbose int) []column {
	cols := append([]column(nil), baseColumns...)
	if verbose > 0 {
		cols = append(cols, verboseColumns...)
	}
	if verbose > 1 {
		return append(cols, column{"TITLE", 20}, column{"DESC", 0})
	}
	return append(cols, column{"TITLE (25 chars)", 0})
}

func formatRow(cols []column, cells []string) string {
	var b strings.Builder
	for i, cell := range cells {
		if cols[i].width == 0 || i == len(cells)-1 {
			b.WriteString(cell)
			continue
		}
		if len(cell) >= cols[i].width {
			b.WriteString(cell + " ")
			continue
		}
		fmt.Fprintf(&b, "%-*s", cols[i].width, cell)
	}
	return strings.TrimRight(b.String(), " ")
}

func issueCells(issue ports.Issue, hostname, state, issueType, title string, verbose int) []string {
	ticket := issue.Tickets
	if verbose == 0 && ticket != domainctt.None {
		ticket = "yes"
	}
	cells := []string{
		fmt.Sprint(issue.ID),
		domainctt.ShortTime(issue.OpenedAt),
		ticket,
		hostname,
		state,
		fmt.Sprint(issue.Severity),
		issueType,
		issue.AssignedTo,
		issue.ViewTracker,
	}
	if verbose > 0 {
		cells = append(cells,
			issue.Cluster,
			issue.Originator,
			issue.UpdatedBy,
			domainctt.ShortTime(issue.UpdatedAt),
			string(issue.Status),
		)
	}
	if verbose > 1 {
		return append(cells, title, issue.Description)
	}
	return append(cells, truncate(title, titleCap))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// renderIssueList prints one row per issue followed by its sibling rows.
// Severity 1 rows are highlighted when colour is on.
func renderIssueList(w io.Writer, issues []ports.Issue, siblings map[uint64][]ports.Sibling, verbose int, st styles) error {
	cols := listColumns(verbose)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	if _, err := fmt.Fprintln(w, st.apply(st.header, formatRow(cols, names))); err != nil {
		return errs.Wrap(err, "write list header")
	}

	for _, issue := range issues {
		row := formatRow(cols, issueCells(issue, issue.Hostname, issue.NodeState, string(issue.IssueType), issue.Title, verbose))
		if issue.Severity == 1 {
			row = st.apply(st.urgent, row)
		}
		if _, err := fmt.Fprintln(w, row); err != nil {
			return errs.Wrap(err, "write list row")
		}
		for _, sib := range siblings[issue.ID] {
			sibRow := formatRow(cols, issueCells(issue, sib.Node, sib.State, string(domainctt.TypeOther), "Sibling to "+sib.Parent, verbose))
			if _, err := fmt.Fprintln(w, st.apply(st.dimmed, sibRow)); err != nil {
				return errs.Wrap(err, "write sibling row")
			}
		}
	}
	return nil
}

// renderIssueText prints an issue the way operators read it at the terminal.
func renderIssueText(w io.Writer, d tracker.IssueDetail, withHistory bool, st styles) error {
	issue := d.Issue
	var b strings.Builder
	field := func(name string, value any) {
		fmt.Fprintf(&b, "%s %v\n", st.apply(st.label, name+":"), value)
	}
	field("CTT Issue", issue.ID)
	field("External Ticket", issue.Tickets)
	field("Date Opened", domainctt.ShortTime(issue.OpenedAt))
	field("Assigned To", issue.AssignedTo)
	field("Issue Originator", issue.Originator)
	field("Last Updated By", issue.UpdatedBy)
	field("Last Update Time", domainctt.ShortTime(issue.UpdatedAt))
	field("Severity", issue.Severity)
	field("Status", issue.Status)
	field("Type", issue.IssueType)
	field("Cluster", issue.Cluster)
	field("Hostname", issue.Hostname)
	field("Node State", issue.NodeState)
	if len(d.Siblings) == 0 {
		field("Attached Siblings", "None")
	} else {
		fmt.Fprintln(&b, st.apply(st.label, "Attached Siblings:"))
		for _, sib := range d.Siblings {
			fmt.Fprintf(&b, "%s state = %s (%s)\n", sib.Node, sib.State, sib.Status)
		}
	}
	fmt.Fprintln(&b, ruler)
	fmt.Fprintf(&b, "\n%s\n%s\n", st.apply(st.label, "Issue Title:"), issue.Title)
	fmt.Fprintf(&b, "\n%s\n%s\n", st.apply(st.label, "Issue Description:"), st.wrap(issue.Description))
	fmt.Fprintf(&b, "\n%s\n", ruler)

	for _, c := range d.Comments {
		fmt.Fprintf(&b, "\nComment by: %s at %s\n%s\n", c.Author, domainctt.ShortTime(c.Time), st.wrap(c.Text))
	}

	if withHistory {
		fmt.Fprintf(&b, "\n%s\n", ruler)
		fmt.Fprintln(&b, st.apply(st.header, fmt.Sprintf("%-24s%-14s%s", "DATE", "UPDATE.BY", "INFO")))
		for _, h := range d.History {
			fmt.Fprintf(&b, "%-24s%-14s%s\n", domainctt.ShortTime(h.Time), h.Author, h.Text)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return errs.Wrap(err, "write issue")
	}
	return nil
}

type issueYAML struct {
	Issue       uint64        `yaml:"cttissue"`
	Opened      string        `yaml:"date"`
	Severity    int           `yaml:"severity"`
	Ticket      string        `yaml:"ticket"`
	Status      string        `yaml:"status"`
	Cluster     string        `yaml:"cluster"`
	Hostname    string        `yaml:"hostname"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	AssignedTo  string        `yaml:"assigned_to"`
	Originator  string        `yaml:"originator"`
	UpdatedBy   string        `yaml:"updated_by"`
	UpdatedTime string        `yaml:"updated_time"`
	Type        string        `yaml:"type"`
	NodeState   string        `yaml:"node_state"`
	Unseen      string        `yaml:"unseen"`
	Siblings    []siblingYAML `yaml:"siblings,omitempty"`
	Comments    []entryYAML   `yaml:"comments,omitempty"`
	History     []entryYAML   `yaml:"history,omitempty"`
}

type siblingYAML struct {
	Node   string `yaml:"node"`
	State  string `yaml:"state"`
	Status string `yaml:"status"`
}

type entryYAML struct {
	Date   string `yaml:"date"`
	Author string `yaml:"by"`
	Text   string `yaml:"text"`
}

func renderIssueYAML(w io.Writer, d tracker.IssueDetail, withHistory bool) error {
	issue := d.Issue
	out := issueYAML{
		Issue:       issue.ID,
		Opened:      issue.OpenedAt,
		Severity:    issue.Severity,
		Ticket:      issue.Tickets,
		Status:      string(issue.Status),
		Cluster:     issue.Cluster,
		Hostname:    issue.Hostname,
		Title:       issue.Title,
		Description: issue.Description,
		AssignedTo:  issue.AssignedTo,
		Originator:  issue.Originator,
		UpdatedBy:   issue.UpdatedBy,
		UpdatedTime: issue.UpdatedAt,
		Type:        string(issue.IssueType),
		NodeState:   issue.NodeState,
		Unseen:      issue.ViewTracker,
	}
	for _, sib := range d.Siblings {
		out.Siblings = append(out.Siblings, siblingYAML{Node: sib.Node, State: sib.State, Status: string(sib.Status)})
	}
	for _, c := range d.Comments {
		out.Comments = append(out.Comments, entryYAML{Date: c.Time, Author: c.Author, Text: c.Text})
	}
	if withHistory {
		for _, h := range d.History {
			out.History = append(out.History, entryYAML{Date: h.Time, Author: h.Author, Text: h.Text})
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return errs.Wrap(err, "encode issue yaml")
	}
	return errs.Wrap(enc.Close(), "close yaml encoder")
}
