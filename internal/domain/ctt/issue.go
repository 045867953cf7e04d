package ctt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusDeleted Status = "deleted"
)

// IssueType codes are stored verbatim in the issuetype column.
type IssueType string

const (
	TypeHardwareWithSiblings IssueType = "h!"
	TypeHardware             IssueType = "h"
	TypeSoftware             IssueType = "s"
	TypeTest                 IssueType = "t"
	TypeUnknown              IssueType = "u"
	TypeOther                IssueType = "o"
)

func ParseIssueType(raw string) (IssueType, error) {
	switch t := IssueType(strings.ToLower(strings.TrimSpace(raw))); t {
	case TypeHardwareWithSiblings, TypeHardware, TypeSoftware, TypeTest, TypeUnknown, TypeOther:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidIssueType, raw)
	}
}

func ValidateSeverity(sev int) error {
	if sev < 1 || sev > 4 {
		return fmt.Errorf("%w: %d (want 1-4)", ErrInvalidSeverity, sev)
	}
	return nil
}

const (
	// FirstIssueID is the cttissue of the "Created table" row.
	FirstIssueID uint64 = 1000

	// None fills empty ticket and view tracker columns.
	None = "---"

	// SystemActor is recorded for everything the auto pass does.
	SystemActor = "ctt"

	// FatalHost is the hostname of sentinel issues ctt opens about itself.
	FatalHost = "FATAL"

	TitleMaxOpenReached = "MAX OPEN REACHED"
	TitleUnknownReason  = "Unknown Reason"
	StateUnknown        = "unknown"
	StateOffline        = "offline"

	timeLayout = "2006-01-02 15:04:05.000000"
)

// FormatTime renders timestamps the way they are stored in every table.
func FormatTime(t time.Time) string {
	return t.Format(timeLayout)
}

// ShortTime trims a stored timestamp to minutes for listings.
func ShortTime(stored string) string {
	if len(stored) > 16 {
		return stored[:16]
	}
	return stored
}

func ParseIssueID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= FirstIssueID {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIssueID, raw)
	}
	return id, nil
}

// ParseIssueIDs accepts a comma separated list such as "1031,1022".
func ParseIssueIDs(raw string) ([]uint64, error) {
	parts := strings.Split(raw, ",")
	out := make([]uint64, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		id, err := ParseIssueID(part)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIssueID, raw)
	}
	return out, nil
}

// SplitHosts expands a combined hostname ("r1i1n1,r1i1n2" or space separated).
func SplitHosts(hostname string) []string {
	fields := strings.FieldsFunc(hostname, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// IsOfflineState reports whether a scheduler state or flag token marks the node offline.
func IsOfflineState(tokens ...string) bool {
	for _, tok := range tokens {
		if strings.Contains(tok, StateOffline) {
			return true
		}
	}
	return false
}

// IsFailingState lists the scheduler states that make the auto pass open an issue.
func IsFailingState(state string) bool {
	switch state {
	case "state-unknown", "offline", "down":
		return true
	default:
		return false
	}
}
