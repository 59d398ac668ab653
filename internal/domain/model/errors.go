package model

import "errors"

// Error taxonomy shared across the orchestration core. Callers match with
// errors.Is; the concrete message carries the specific rule or resource.
var (
	// ErrValidation indicates a malformed identifier, key or missing
	// required field. The wrapped message names the violated rule.
	ErrValidation = errors.New("validation error")

	// ErrConflict indicates a duplicate tenant or app.
	ErrConflict = errors.New("conflict")

	// ErrNotFound indicates a missing app, tenant, override or key.
	ErrNotFound = errors.New("not found")

	// ErrExternalTool indicates a nonzero exit from the container runtime
	// or the backup tool that could not be reclassified into a more
	// specific condition. The full tool output is logged server-side; the
	// message attached to this error is deliberately generic.
	ErrExternalTool = errors.New("external tool failure")
)
