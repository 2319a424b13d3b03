package results

// This file contains the TestStep, a named subdivision of a run.

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/ocpdiag/ocpdiag/model"
)

// TestStep emits step-scoped artifacts. It is safe for concurrent use.
type TestStep struct {
	id     string
	name   string
	run    *TestRun
	writer *ArtifactWriter
	series IntIncrementer

	mu         sync.Mutex
	status     model.TestStatus
	ended      bool
	openSeries map[*MeasurementSeries]struct{}
}

// NewTestStep begins a step of run and emits its start artifact. It
// panics if run is nil, not started or already ended.
func NewTestStep(run *TestRun, name string) *TestStep {
	s, err := newTestStep(run, name)
	if err != nil {
		panic("results: " + err.Error())
	}
	return s
}

func newTestStep(run *TestRun, name string) (*TestStep, error) {
	if run == nil {
		return nil, fmt.Errorf("failed to begin TestStep %q: %w", name, ErrNilParent)
	}
	s := &TestStep{
		name:       name,
		run:        run,
		writer:     run.writer,
		status:     model.TestStatusUnknown,
		openSeries: make(map[*MeasurementSeries]struct{}),
	}
	if err := run.addStep(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TestStep) ID() string   { return s.id }
func (s *TestStep) Name() string { return s.name }

func (s *TestStep) Status() model.TestStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *TestStep) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *TestStep) emit(sa *model.TestStepArtifact) {
	sa.TestStepID = s.id
	s.writer.Write(&model.Artifact{TestStepArtifact: sa})
}

// AddDiagnosis emits a diagnosis about hw. A FAIL diagnosis fails the run.
//
// By default each unregistered hardware record is reported as an
// unregistered-hardware-info error and omitted from the diagnosis. With
// WithStrictRegistration(true) it panics instead.
func (s *TestStep) AddDiagnosis(typ model.DiagnosisType, symptom, message string, hw []HwRecord) {
	diag := &model.Diagnosis{Symptom: symptom, Type: typ, Msg: message}
	for _, rec := range hw {
		if !s.writer.IsHwRegistered(rec.ID()) {
			if s.run.cfg.strictRegistration {
				panic(fmt.Sprintf("results: diagnosis %q references hardware %q that is not registered with the TestRun", symptom, rec.ID()))
			}
			s.AddError(SymptomUnregisteredHw, fmt.Sprintf(
				"The following hardware will be omitted from the diagnosis, as it was not previously registered with the TestRun: %+v", rec.Data()), nil)
			continue
		}
		diag.HardwareInfoID = append(diag.HardwareInfoID, rec.ID())
	}
	s.emit(&model.TestStepArtifact{Diagnosis: diag})

	if typ == model.DiagnosisTypeFail {
		s.run.processFailureDiagnosis()
	}
}

// AddError emits an error, marks the step as errored and notifies the
// run. Unregistered software is omitted and reported as its own error.
func (s *TestStep) AddError(symptom, message string, sw []SwRecord) {
	s.mu.Lock()
	s.status = model.TestStatusError
	s.mu.Unlock()
	s.run.processStepError()

	e := &model.Error{Symptom: symptom, Msg: message}
	for _, rec := range sw {
		if !s.writer.IsSwRegistered(rec.ID()) {
			s.AddError(SymptomUnregisteredSw, fmt.Sprintf(
				"The following software will be omitted from the error, as it was not previously registered with the TestRun: %+v", rec.Data()), nil)
			continue
		}
		e.SoftwareInfoID = append(e.SoftwareInfoID, rec.ID())
	}
	s.emit(&model.TestStepArtifact{Error: e})
}

// AddMeasurement emits a standalone measurement and reports whether its
// value satisfies its range or valid values. A malformed element is
// reported as a procedural error and not emitted. hw may be nil.
func (s *TestStep) AddMeasurement(info model.MeasurementInfo, elem model.MeasurementElement, hw *HwRecord) bool {
	if err := ValidateMeasurementElement(elem); err != nil {
		s.AddError(SymptomProceduralError, err.Error(), nil)
		return false
	}

	info.HardwareInfoID = ""
	if hw != nil {
		if s.writer.IsHwRegistered(hw.ID()) {
			info.HardwareInfoID = hw.ID()
		} else {
			s.AddError(SymptomUnregisteredHw, fmt.Sprintf(
				"The following hardware will be omitted from the Measurement result, as it was not previously registered with the TestRun: %+v", hw.Data()), nil)
		}
	}

	s.emit(&model.TestStepArtifact{Measurement: &model.Measurement{Info: info, Element: &elem}})

	valid, violation := CheckLimits(info.Name, elem)
	if violation != nil {
		s.reportLimitViolation(violation)
	}
	return valid
}

func (s *TestStep) reportLimitViolation(v *LimitViolation) {
	if s.run.cfg.limitViolationsAsLogs {
		s.LogWarn(v.Message)
		return
	}
	s.AddError(v.Symptom, v.Message, nil)
}

// AddFile emits a file artifact. Files on remote nodes, and local files
// outside of the working directory, are copied into it first; a failed
// copy is reported as an internal error and the file is not emitted.
func (s *TestStep) AddFile(f model.File) {
	files := s.run.cfg.files
	switch {
	case f.NodeAddress != "":
		if err := files.CopyRemoteFile(&f); err != nil {
			s.AddError(SymptomInternalError, err.Error(), nil)
			return
		}
	default:
		cwd, err := os.Getwd()
		if err != nil {
			s.AddError(SymptomInternalError, fmt.Sprintf("Failed to get working directory: %v", err), nil)
			return
		}
		if needsLocalCopy(f.OutputPath, cwd) {
			if err := files.CopyLocalFile(&f, ""); err != nil {
				s.AddError(SymptomInternalError, err.Error(), nil)
				return
			}
		}
	}
	s.emit(&model.TestStepArtifact{File: &f})
}

// AddArtifactExtension wraps m in a google.protobuf.Any, unless it is one
// already, and emits it under name.
func (s *TestStep) AddArtifactExtension(name string, m proto.Message) {
	a, ok := m.(*anypb.Any)
	if !ok {
		var err error
		a, err = anypb.New(m)
		if err != nil {
			s.AddError(SymptomProceduralError, fmt.Sprintf("Unable to process artifact extension %q: %v", name, err), nil)
			return
		}
	}
	data, err := protojson.Marshal(a)
	if err != nil {
		s.AddError(SymptomProceduralError, fmt.Sprintf("Unable to process artifact extension %q: %v", name, err), nil)
		return
	}
	s.emit(&model.TestStepArtifact{Extension: &model.Extension{Name: name, Extension: json.RawMessage(data)}})
}

func (s *TestStep) LogDebug(msg string) { s.writeLog(model.LogSeverityDebug, msg) }
func (s *TestStep) LogInfo(msg string)  { s.writeLog(model.LogSeverityInfo, msg) }
func (s *TestStep) LogWarn(msg string)  { s.writeLog(model.LogSeverityWarning, msg) }
func (s *TestStep) LogError(msg string) { s.writeLog(model.LogSeverityError, msg) }

// LogFatal emits a fatal log, flushes the writer and calls the run's
// fatal hook.
func (s *TestStep) LogFatal(msg string) {
	s.writeLog(model.LogSeverityFatal, msg)
	if err := s.writer.Flush(); err != nil {
		s.run.cfg.logger.Error().Err(err).Msg("Failed to flush results")
	}
	s.run.cfg.fatalHook(msg)
}

func (s *TestStep) writeLog(severity model.LogSeverity, msg string) {
	s.emit(&model.TestStepArtifact{Log: &model.Log{Severity: severity, Text: msg}})
}

// End ends all open series of the step and emits the step end artifact.
// A step without errors or skips completes. Calls after the first return
// the same status.
func (s *TestStep) End() model.TestStatus {
	s.mu.Lock()
	// Series begun while the open ones are being ended are picked up by
	// the next pass; the step only ends once none is left.
	for {
		if s.ended {
			defer s.mu.Unlock()
			return s.status
		}
		if len(s.openSeries) == 0 {
			break
		}
		open := make([]*MeasurementSeries, 0, len(s.openSeries))
		for ms := range s.openSeries {
			open = append(open, ms)
		}
		s.mu.Unlock()

		for _, ms := range open {
			ms.End()
		}
		s.mu.Lock()
	}
	if s.status == model.TestStatusUnknown {
		s.status = model.TestStatusComplete
	}
	s.ended = true
	status := s.status
	s.emit(&model.TestStepArtifact{TestStepEnd: &model.TestStepEnd{Name: s.name, Status: status}})
	s.mu.Unlock()

	s.run.removeStep(s)
	return status
}

// Skip marks the step skipped, unless it already errored, and ends it.
func (s *TestStep) Skip() model.TestStatus {
	s.mu.Lock()
	if !s.ended && s.status != model.TestStatusError {
		s.status = model.TestStatusSkipped
	}
	s.mu.Unlock()
	return s.End()
}

func (s *TestStep) nextSeriesID() string {
	return fmt.Sprint(s.series.Next())
}

// addSeries registers a series unless the step has ended.
func (s *TestStep) addSeries(ms *MeasurementSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return fmt.Errorf("failed to begin MeasurementSeries %q: %w", ms.info.Name, ErrStepEnded)
	}
	s.openSeries[ms] = struct{}{}
	return nil
}

func (s *TestStep) removeSeries(ms *MeasurementSeries) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.openSeries, ms)
}
