package model

// This file contains the artifact envelope written to the results stream
// and the step-scoped payloads it can carry.

import (
	"encoding/json"
	"time"
)

// ArtifactKind names the payload carried by an Artifact.
type ArtifactKind string

const (
	ArtifactKindUnknown                ArtifactKind = "unknown"
	ArtifactKindTestRunStart           ArtifactKind = "test_run_start"
	ArtifactKindTestRunEnd             ArtifactKind = "test_run_end"
	ArtifactKindRunLog                 ArtifactKind = "run_log"
	ArtifactKindTag                    ArtifactKind = "tag"
	ArtifactKindRunError               ArtifactKind = "run_error"
	ArtifactKindTestStepStart          ArtifactKind = "test_step_start"
	ArtifactKindTestStepEnd            ArtifactKind = "test_step_end"
	ArtifactKindMeasurement            ArtifactKind = "measurement"
	ArtifactKindMeasurementSeriesStart ArtifactKind = "measurement_series_start"
	ArtifactKindMeasurementSeriesEnd   ArtifactKind = "measurement_series_end"
	ArtifactKindMeasurementElement     ArtifactKind = "measurement_element"
	ArtifactKindDiagnosis              ArtifactKind = "diagnosis"
	ArtifactKindStepError              ArtifactKind = "step_error"
	ArtifactKindFile                   ArtifactKind = "file"
	ArtifactKindStepLog                ArtifactKind = "step_log"
	ArtifactKindExtension              ArtifactKind = "extension"
)

// ArtifactKinds lists every known kind in stream order of first appearance
// for a typical run.
var ArtifactKinds = []ArtifactKind{
	ArtifactKindTestRunStart,
	ArtifactKindTestRunEnd,
	ArtifactKindRunLog,
	ArtifactKindTag,
	ArtifactKindRunError,
	ArtifactKindTestStepStart,
	ArtifactKindTestStepEnd,
	ArtifactKindMeasurement,
	ArtifactKindMeasurementSeriesStart,
	ArtifactKindMeasurementSeriesEnd,
	ArtifactKindMeasurementElement,
	ArtifactKindDiagnosis,
	ArtifactKindStepError,
	ArtifactKindFile,
	ArtifactKindStepLog,
	ArtifactKindExtension,
}

// Artifact is one record of the results stream. Exactly one of
// TestRunArtifact and TestStepArtifact is set.
type Artifact struct {
	// Assigned by the writer, starts at 0 and has no gaps
	SequenceNumber int `json:"sequence_number"`
	// Wall-clock time at write
	Timestamp time.Time `json:"timestamp"`

	TestRunArtifact  *TestRunArtifact  `json:"test_run_artifact,omitempty"`
	TestStepArtifact *TestStepArtifact `json:"test_step_artifact,omitempty"`
}

// Kind reports which payload the artifact carries.
func (a *Artifact) Kind() ArtifactKind {
	if a == nil {
		return ArtifactKindUnknown
	}
	if r := a.TestRunArtifact; r != nil {
		switch {
		case r.TestRunStart != nil:
			return ArtifactKindTestRunStart
		case r.TestRunEnd != nil:
			return ArtifactKindTestRunEnd
		case r.Log != nil:
			return ArtifactKindRunLog
		case r.Tag != nil:
			return ArtifactKindTag
		case r.Error != nil:
			return ArtifactKindRunError
		}
	}
	if s := a.TestStepArtifact; s != nil {
		switch {
		case s.TestStepStart != nil:
			return ArtifactKindTestStepStart
		case s.TestStepEnd != nil:
			return ArtifactKindTestStepEnd
		case s.Measurement != nil:
			return ArtifactKindMeasurement
		case s.MeasurementSeriesStart != nil:
			return ArtifactKindMeasurementSeriesStart
		case s.MeasurementSeriesEnd != nil:
			return ArtifactKindMeasurementSeriesEnd
		case s.MeasurementElement != nil:
			return ArtifactKindMeasurementElement
		case s.Diagnosis != nil:
			return ArtifactKindDiagnosis
		case s.Error != nil:
			return ArtifactKindStepError
		case s.File != nil:
			return ArtifactKindFile
		case s.Log != nil:
			return ArtifactKindStepLog
		case s.Extension != nil:
			return ArtifactKindExtension
		}
	}
	return ArtifactKindUnknown
}

// StepID returns the owning step ID of a step-scoped artifact.
func (a *Artifact) StepID() (string, bool) {
	if a == nil || a.TestStepArtifact == nil {
		return "", false
	}
	return a.TestStepArtifact.TestStepID, true
}

// TestStepArtifact holds exactly one step-scoped payload.
type TestStepArtifact struct {
	TestStepID string `json:"test_step_id"`

	TestStepStart          *TestStepStart          `json:"test_step_start,omitempty"`
	TestStepEnd            *TestStepEnd            `json:"test_step_end,omitempty"`
	Measurement            *Measurement            `json:"measurement,omitempty"`
	MeasurementSeriesStart *MeasurementSeriesStart `json:"measurement_series_start,omitempty"`
	MeasurementSeriesEnd   *MeasurementSeriesEnd   `json:"measurement_series_end,omitempty"`
	MeasurementElement     *MeasurementElement     `json:"measurement_element,omitempty"`
	Diagnosis              *Diagnosis              `json:"diagnosis,omitempty"`
	Error                  *Error                  `json:"error,omitempty"`
	File                   *File                   `json:"file,omitempty"`
	Log                    *Log                    `json:"log,omitempty"`
	Extension              *Extension              `json:"extension,omitempty"`
}

type TestStepStart struct {
	Name string `json:"name"`
}

type TestStepEnd struct {
	Name   string     `json:"name"`
	Status TestStatus `json:"status"`
}

// DiagnosisType classifies a diagnosis.
type DiagnosisType string

const (
	DiagnosisTypeUnknown DiagnosisType = "UNKNOWN"
	DiagnosisTypePass    DiagnosisType = "PASS"
	DiagnosisTypeFail    DiagnosisType = "FAIL"
)

type Diagnosis struct {
	Symptom        string        `json:"symptom"`
	Type           DiagnosisType `json:"type"`
	Msg            string        `json:"msg,omitempty"`
	HardwareInfoID []string      `json:"hardware_info_id,omitempty"`
}

type Error struct {
	Symptom        string   `json:"symptom"`
	Msg            string   `json:"msg,omitempty"`
	SoftwareInfoID []string `json:"software_info_id,omitempty"`
}

// LogSeverity is the severity of a Log artifact.
type LogSeverity string

const (
	LogSeverityDebug   LogSeverity = "DEBUG"
	LogSeverityInfo    LogSeverity = "INFO"
	LogSeverityWarning LogSeverity = "WARNING"
	LogSeverityError   LogSeverity = "ERROR"
	LogSeverityFatal   LogSeverity = "FATAL"
)

type Log struct {
	Severity LogSeverity `json:"severity"`
	Text     string      `json:"text"`
}

// File references an output file produced by a step.
type File struct {
	// Name the file is uploaded as
	UploadAsName string `json:"upload_as_name,omitempty"`
	// Path of the file, local to the diagnostic's working directory once
	// emitted
	OutputPath  string `json:"output_path"`
	Description string `json:"description,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	IsSnapshot  bool   `json:"is_snapshot,omitempty"`
	// Node the file lives on; empty for local files
	NodeAddress string `json:"node_address,omitempty"`
	Tags        []Tag  `json:"tags,omitempty"`
}

// Extension carries an arbitrary typed payload as a protobuf JSON encoded
// google.protobuf.Any.
type Extension struct {
	Name      string          `json:"name"`
	Extension json.RawMessage `json:"extension"`
}

// MeasurementInfo describes what is being measured.
type MeasurementInfo struct {
	Name           string `json:"name"`
	Unit           string `json:"unit,omitempty"`
	HardwareInfoID string `json:"hardware_info_id,omitempty"`
}

// Range bounds a measurement value, inclusive on both ends. A bound with
// KindNotSet is open.
type Range struct {
	Minimum Value `json:"minimum"`
	Maximum Value `json:"maximum"`
}

// ValidValues lists the values a measurement may take. An empty list
// accepts everything.
type ValidValues struct {
	Values []Value `json:"values"`
}

// MeasurementElement is one measured value, standalone or part of a
// series.
type MeasurementElement struct {
	Index               int          `json:"index"`
	MeasurementSeriesID string       `json:"measurement_series_id,omitempty"`
	Range               *Range       `json:"range,omitempty"`
	ValidValues         *ValidValues `json:"valid_values,omitempty"`
	Value               Value        `json:"value"`
	DutTimestamp        *time.Time   `json:"dut_timestamp,omitempty"`
}

type Measurement struct {
	Info    MeasurementInfo     `json:"info"`
	Element *MeasurementElement `json:"element,omitempty"`
}

type MeasurementSeriesStart struct {
	MeasurementSeriesID string          `json:"measurement_series_id"`
	Info                MeasurementInfo `json:"info"`
}

type MeasurementSeriesEnd struct {
	MeasurementSeriesID   string `json:"measurement_series_id"`
	TotalMeasurementCount int    `json:"total_measurement_count"`
}
