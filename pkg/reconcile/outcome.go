package reconcile

// Outcome reports what a reconciliation did. A no-op is a successful run
// with zero writes, not an error.
type Outcome int

const (
	OutcomeNoop Outcome = iota
	OutcomeCreated
	OutcomeUpdated
	OutcomeReplaced
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "noop"
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}
