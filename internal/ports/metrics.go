package ports

// Metrics receives counters from the reconciliation pass.
type Metrics interface {
	ObserveRecords(n int)
	ObserveOpenIssues(n int64)
	IssueCreated(reason string)
	StateChanged()
	ForcedOffline(kind string)
	PassFailed(reason string)
	PassCompleted(durationSeconds float64)
	// Flush publishes collected values; a no-op when no sink is configured.
	Flush() error
}

type NopMetrics struct{}

func (NopMetrics) ObserveRecords(int) {}
func (NopMetrics) ObserveOpenIssues(int64) {}
func (NopMetrics) IssueCreated(string) {}
func (NopMetrics) StateChanged() {}
func (NopMetrics) ForcedOffline(string) {}
func (NopMetrics) PassFailed(string) {}
func (NopMetrics) PassCompleted(float64) {}
func (NopMetrics) Flush() error { return nil }
