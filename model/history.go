package model

import "time"

// History represents a single diagnostic execution recorded by the ocpdiag
// binary.
type History struct {
	// Unique ID for this execution (UUID)
	ID string `json:"id"`
	// Name of the diagnostic that was run
	Name string `json:"name"`
	// Version of the diagnostic
	Version string `json:"version,omitempty"`
	// Timestamp when the execution started
	Timestamp time.Time `json:"timestamp"`
	// Command-line arguments (including command name)
	Args []string `json:"args"`
	// Duration of execution
	Duration time.Duration `json:"duration"`
	// Final run status
	Status TestStatus `json:"status"`
	// Final run result
	Result TestResult `json:"result"`
	// Number of artifacts written, by kind
	Counts map[ArtifactKind]int `json:"counts,omitempty"`
	// Target execution environment
	Target *Target `json:"target,omitempty"`
	// Output files produced during this run
	Outputs []Output `json:"outputs,omitempty"`
}

// Target contains information about the execution environment
type Target struct {
	// Machine under test ("local" or "user@host")
	Machine string `json:"machine,omitempty"`
	// Operating system of the execution environment
	OS string `json:"os,omitempty"`
	// CPU architecture of the execution environment
	Arch string `json:"arch,omitempty"`
}

// OutputType identifies the type of output file
type OutputType uint8

const (
	OutputTypeResults OutputType = iota
	OutputTypeResultsJSON
	OutputTypePprofProfile
	OutputTypeMetrics
)

func (t OutputType) String() string {
	switch t {
	case OutputTypeResults:
		return "results"
	case OutputTypeResultsJSON:
		return "results-json"
	case OutputTypePprofProfile:
		return "pprof"
	case OutputTypeMetrics:
		return "metrics"
	default:
		return "unknown"
	}
}

// Output represents a file generated during execution
type Output struct {
	Type OutputType `json:"type"`
	Size uint64     `json:"size"`
	File string     `json:"file"` // absolute, or relative to the history entry dir
}
