package results

import "errors"

// Symptoms of the Error artifacts the SDK emits on its own.
const (
	SymptomProceduralError = "ocpdiag-procedural-error"
	SymptomInternalError   = "ocpdiag-internal-error"
	SymptomUnregisteredHw  = "unregistered-hardware-info"
	SymptomUnregisteredSw  = "unregistered-software-info"
	SymptomOutOfRange      = "measurement-value-out-of-range"
	SymptomInvalidValue    = "measurement-invalid-value"
)

// InvalidRecordID is never registered with a writer.
const InvalidRecordID = "invalid"

var (
	ErrRunAlreadyActive = errors.New("another TestRun is already active")
	ErrRunNotStarted    = errors.New("TestRun has not been started")
	ErrRunEnded         = errors.New("TestRun has already ended")
	ErrStepEnded        = errors.New("TestStep has already ended")
	ErrNilParent        = errors.New("parent cannot be nil")
)
