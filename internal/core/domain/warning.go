package domain

type Outcome string

const (
	OutcomeDone        Outcome = "done"
	OutcomeInProtected Outcome = "in_protected"
	OutcomeInUse       Outcome = "in_use"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeError       Outcome = "error"
)

var Outcomes = []Outcome{OutcomeDone, OutcomeInProtected, OutcomeInUse, OutcomeNotFound, OutcomeError}

// WarningReport classifies every requested variant token into exactly one bucket.
type WarningReport struct {
	Done        []string `json:"done"`
	InProtected []string `json:"in_protected"`
	InUse       []string `json:"in_use"`
	NotFound    []string `json:"not_found"`
	Error       []string `json:"error"`
}

func NewWarningReport() WarningReport {
	return WarningReport{
		Done:        []string{},
		InProtected: []string{},
		InUse:       []string{},
		NotFound:    []string{},
		Error:       []string{},
	}
}

func (w *WarningReport) Add(outcome Outcome, token string) {
	switch outcome {
	case OutcomeDone:
		w.Done = append(w.Done, token)
	case OutcomeInProtected:
		w.InProtected = append(w.InProtected, token)
	case OutcomeInUse:
		w.InUse = append(w.InUse, token)
	case OutcomeNotFound:
		w.NotFound = append(w.NotFound, token)
	default:
		w.Error = append(w.Error, token)
	}
}

func (w WarningReport) Bucket(outcome Outcome) []string {
	switch outcome {
	case OutcomeDone:
		return w.Done
	case OutcomeInProtected:
		return w.InProtected
	case OutcomeInUse:
		return w.InUse
	case OutcomeNotFound:
		return w.NotFound
	default:
		return w.Error
	}
}

func (w WarningReport) Total() int {
	return len(w.Done) + len(w.InProtected) + len(w.InUse) + len(w.NotFound) + len(w.Error)
}

type BatchResult struct {
	Success          bool          `json:"success"`
	Warnings         WarningReport `json:"warnings"`
	Cart             Cart          `json:"cart"`
	ClientMutationID string        `json:"client_mutation_id,omitempty"`
}

// StoredMutation is a committed batch result kept for replay. Fingerprint
// identifies the request items the result answered.
type StoredMutation struct {
	Fingerprint string      `json:"fingerprint"`
	Result      BatchResult `json:"result"`
}
