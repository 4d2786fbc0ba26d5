package engine

// Outcome classifies one attempt at one item.
type Outcome int

const (
	// OutcomeProcessError means the agent subprocess exited nonzero.
	OutcomeProcessError Outcome = iota

	// OutcomeNoChanges means the agent exited cleanly but touched nothing
	// and emitted no sentinel.
	OutcomeNoChanges

	// OutcomeNoCodeRequired means the agent declared the item needs no
	// code change. Counts as solved without a commit.
	OutcomeNoCodeRequired

	// OutcomeSuccess means the working tree changed; the changes are
	// staged and committed.
	OutcomeSuccess
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessError:
		return "process_error"
	case OutcomeNoChanges:
		return "no_changes"
	case OutcomeNoCodeRequired:
		return "no_code_required"
	case OutcomeSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Attempt records one classified attempt. Never mutated after classification.
type Attempt struct {
	Index          int
	Outcome        Outcome
	Summary        string
	TranscriptPath string
}
