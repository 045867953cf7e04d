package ports

import "context"

// NodeRecord is one line of the scheduler's node listing.
type NodeRecord struct {
	Node           string
	State          string
	SecondaryFlags string
	Comment        string
	HasComment     bool
}

// Scheduler queries and actuates node state in the batch scheduler.
type Scheduler interface {
	QueryNodeStates(ctx context.Context) ([]NodeRecord, error)
	Drain(ctx context.Context, node string) error
	Resume(ctx context.Context, node string) error
	// ReadBadNodeMarker returns domain ErrNoMarker when the node carries no marker
	// and ErrMarkerReadFailed when the node could not be asked.
	ReadBadNodeMarker(ctx context.Context, node string) (string, error)
}
