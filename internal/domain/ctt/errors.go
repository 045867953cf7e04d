package ctt

import "errors"

var (
	ErrInvalidNodeName  = errors.New("invalid node name")
	ErrInvalidGroup     = errors.New("invalid group")
	ErrInvalidIssueID   = errors.New("invalid issue id")
	ErrInvalidSeverity  = errors.New("invalid severity")
	ErrInvalidIssueType = errors.New("invalid issue type")
	ErrUnknownUser      = errors.New("user not found in any configured group")

	ErrIssueNotFound    = errors.New("issue not found or deleted")
	ErrIssueNotOpen     = errors.New("issue is not open")
	ErrIssueNotClosed   = errors.New("issue is not closed")
	ErrIssueAlreadyOpen = errors.New("node already has an open issue")

	ErrSchedulerUnreachable = errors.New("scheduler unreachable")
	ErrThresholdExceeded    = errors.New("auto issue threshold exceeded")
	ErrNoMarker             = errors.New("no bad node marker")
	ErrMarkerReadFailed     = errors.New("bad node marker read failed")
)
