package scraper

// EventKind identifies a progress notification
type EventKind int

const (
	EventGenerationStarted EventKind = iota
	EventDomainStarted
	EventDomainFinished
	EventRunFinished
)

// Event is a progress notification emitted by the Controller
type Event struct {
	Kind       EventKind
	Generation int
	Domain     string
	Domains    int // batch size for EventGenerationStarted, processed total for EventRunFinished
	Snapshots  int // resolved snapshots for EventDomainFinished, URLs for EventRunFinished
	Err        error
}
