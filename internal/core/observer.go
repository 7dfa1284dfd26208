package core

// Observer receives run events for metrics.
type Observer interface {
	LineProcessed()
	DiagnosticRecorded(d Diagnostic)
	RecordEmitted()
	RunFinished(mode Mode, success bool)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) LineProcessed() {}
func (NopObserver) DiagnosticRecorded(Diagnostic) {}
func (NopObserver) RecordEmitted() {}
func (NopObserver) RunFinished(Mode, bool) {}
