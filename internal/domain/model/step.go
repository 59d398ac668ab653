package model

// StepStatus distinguishes a best-effort side step that was skipped from
// one that failed fatally. Callers and tests can assert on which failures
// are tolerated instead of relying on swallowed errors.
type StepStatus int

const (
	// StepDone means the step completed.
	StepDone StepStatus = iota
	// StepSkipped means the step did not apply (missing container, empty
	// path) and the surrounding operation continues.
	StepSkipped
	// StepFailed means the step failed and the operation must stop.
	StepFailed
)

// StepResult records the outcome of one side step of a multi-step
// transaction, e.g. a container path copy during backup.
type StepResult struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
	Err    error      `json:"-"`
}

// Skipped builds a non-fatal StepResult.
func Skipped(name, reason string) StepResult {
	return StepResult{Name: name, Status: StepSkipped, Reason: reason}
}

// Done builds a completed StepResult.
func Done(name string) StepResult {
	return StepResult{Name: name, Status: StepDone}
}

// Failed builds a fatal StepResult.
func Failed(name string, err error) StepResult {
	return StepResult{Name: name, Status: StepFailed, Err: err}
}
