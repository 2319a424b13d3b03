package results

// This file contains the TestRun, the top-level object of a diagnostic.

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/ocpdiag/ocpdiag/model"
)

type runState int

const (
	runNotStarted runState = iota
	runInProgress
	runEnded
)

// TestRun reports the results of one diagnostic run. At most one run may
// be active per registry; create it with NewTestRun, start it with
// StartAndRegisterInfos and finish it with End or Skip.
type TestRun struct {
	name   string
	cfg    runConfig
	writer *ArtifactWriter
	calc   ResultSink
	steps  IntIncrementer

	mu        sync.Mutex
	state     runState
	openSteps map[*TestStep]struct{}
	startedAt time.Time
	closed    bool
}

// NewTestRun creates a run and claims the registry slot. It panics if
// another run is active.
func NewTestRun(name string, opts ...Option) *TestRun {
	r, err := newTestRun(name, opts...)
	if err != nil {
		panic(err.Error())
	}
	return r
}

func newTestRun(name string, opts ...Option) (*TestRun, error) {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry != nil {
		if err := cfg.registry.Acquire(name); err != nil {
			return nil, err
		}
	}
	cfg.finish()

	return &TestRun{
		name:      name,
		cfg:       cfg,
		writer:    cfg.writer,
		calc:      cfg.sink,
		openSteps: make(map[*TestStep]struct{}),
	}, nil
}

// StartAndRegisterInfos registers the hardware and software of duts with
// the writer and emits the run start artifact. params, if not nil, is
// recorded verbatim. Starting a run twice panics.
func (r *TestRun) StartAndRegisterInfos(duts []*DutInfo, params proto.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != runNotStarted {
		panic(fmt.Sprintf("results: TestRun %q has already been started", r.name))
	}
	r.state = runInProgress
	r.startedAt = r.cfg.now()
	r.calc.NotifyStartRun()

	start := &model.TestRunStart{Name: r.name, Version: r.cfg.version}
	for _, dut := range duts {
		if dut == nil {
			continue
		}
		info := dut.ToModel()
		for _, hw := range info.HardwareComponents {
			r.writer.RegisterHwID(hw.HardwareInfoID)
		}
		for _, sw := range info.SoftwareInfos {
			r.writer.RegisterSwID(sw.SoftwareInfoID)
		}
		start.DutInfo = append(start.DutInfo, info)
	}

	var paramErr error
	if params != nil {
		data, err := protojson.Marshal(params)
		if err != nil {
			paramErr = err
		} else {
			start.Parameters = json.RawMessage(data)
		}
	}

	r.writer.Write(&model.Artifact{TestRunArtifact: &model.TestRunArtifact{TestRunStart: start}})

	if paramErr != nil {
		r.writeError(SymptomInternalError, fmt.Sprintf("Failed to serialize test parameters: %v", paramErr))
		r.calc.NotifyError()
	}
}

// End finalizes the result, ending any open steps first, and emits the
// run end artifact. A run that was never started gets an empty start
// artifact first. Calls after the first return the same result.
func (r *TestRun) End() model.TestResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Steps begun while the open ones are being ended are picked up by the
	// next pass.
	for {
		if r.state == runEnded {
			return r.calc.Result()
		}
		if len(r.openSteps) == 0 {
			break
		}
		open := make([]*TestStep, 0, len(r.openSteps))
		for s := range r.openSteps {
			open = append(open, s)
		}
		r.mu.Unlock()

		for _, s := range open {
			s.End()
		}
		r.mu.Lock()
	}
	if r.state == runNotStarted {
		r.startedAt = r.cfg.now()
		r.writer.Write(&model.Artifact{TestRunArtifact: &model.TestRunArtifact{
			TestRunStart: &model.TestRunStart{Name: r.name, Version: r.cfg.version},
		}})
	}
	r.state = runEnded
	r.calc.Finalize()

	status, result := r.calc.Status(), r.calc.Result()
	r.writer.Write(&model.Artifact{TestRunArtifact: &model.TestRunArtifact{
		TestRunEnd: &model.TestRunEnd{Name: r.name, Status: status, Result: result},
	}})
	if err := r.writer.Flush(); err != nil {
		r.cfg.logger.Error().Err(err).Str("run", r.name).Msg("Failed to flush results")
	}
	r.cfg.metrics.ObserveRunEnd(status, result, r.cfg.now().Sub(r.startedAt))
	return result
}

// Skip marks the run skipped, unless an error was already reported, and
// ends it.
func (r *TestRun) Skip() model.TestResult {
	r.mu.Lock()
	if r.state == runEnded {
		r.mu.Unlock()
		return r.calc.Result()
	}
	r.calc.NotifySkip()
	r.mu.Unlock()
	return r.End()
}

// Close ends the run if needed, releases the registry slot and closes the
// writer.
func (r *TestRun) Close() error {
	r.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.cfg.registry != nil {
		r.cfg.registry.Release()
	}

	var result *multierror.Error
	if err := r.writer.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close results writer: %w", err))
	}
	return result.ErrorOrNil()
}

// AddError emits a run-scoped error and marks the run as errored. It may
// be called before the run is started.
func (r *TestRun) AddError(symptom, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeError(symptom, message)
	if r.state == runEnded {
		r.cfg.logger.Warn().Str("run", r.name).Str("symptom", symptom).Msg("Error reported after the run ended")
		return
	}
	r.calc.NotifyError()
}

func (r *TestRun) writeError(symptom, message string) {
	r.writer.Write(&model.Artifact{TestRunArtifact: &model.TestRunArtifact{
		Error: &model.Error{Symptom: symptom, Msg: message},
	}})
}

// AddTag emits a run-scoped tag.
func (r *TestRun) AddTag(tag string) {
	r.writer.Write(&model.Artifact{TestRunArtifact: &model.TestRunArtifact{
		Tag: &model.Tag{Tag: tag},
	}})
}

func (r *TestRun) LogDebug(msg string) { r.writeLog(model.LogSeverityDebug, msg) }
func (r *TestRun) LogInfo(msg string)  { r.writeLog(model.LogSeverityInfo, msg) }
func (r *TestRun) LogWarn(msg string)  { r.writeLog(model.LogSeverityWarning, msg) }
func (r *TestRun) LogError(msg string) { r.writeLog(model.LogSeverityError, msg) }

// LogFatal emits a fatal log, flushes the writer and calls the fatal hook,
// which exits the process by default.
func (r *TestRun) LogFatal(msg string) {
	r.writeLog(model.LogSeverityFatal, msg)
	if err := r.writer.Flush(); err != nil {
		r.cfg.logger.Error().Err(err).Msg("Failed to flush results")
	}
	r.cfg.fatalHook(msg)
}

func (r *TestRun) writeLog(severity model.LogSeverity, msg string) {
	r.writer.Write(&model.Artifact{TestRunArtifact: &model.TestRunArtifact{
		Log: &model.Log{Severity: severity, Text: msg},
	}})
}

func (r *TestRun) Name() string { return r.name }

func (r *TestRun) Status() model.TestStatus { return r.calc.Status() }

func (r *TestRun) Result() model.TestResult { return r.calc.Result() }

// Started reports whether the run is in progress or has ended after being
// started.
func (r *TestRun) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state != runNotStarted
}

func (r *TestRun) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == runEnded
}

// Writer returns the writer shared by the run and its steps.
func (r *TestRun) Writer() *ArtifactWriter { return r.writer }

// addStep registers a new step and emits its start artifact unless the
// run is not in progress.
func (r *TestRun) addStep(s *TestStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case runNotStarted:
		return fmt.Errorf("failed to begin TestStep %q: %w", s.name, ErrRunNotStarted)
	case runEnded:
		return fmt.Errorf("failed to begin TestStep %q: %w", s.name, ErrRunEnded)
	}
	s.id = fmt.Sprint(r.steps.Next())
	r.openSteps[s] = struct{}{}

	s.writer.Write(&model.Artifact{TestStepArtifact: &model.TestStepArtifact{
		TestStepID:    s.id,
		TestStepStart: &model.TestStepStart{Name: s.name},
	}})
	return nil
}

func (r *TestRun) removeStep(s *TestStep) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.openSteps, s)
}

// processStepError and processFailureDiagnosis drop notifications that
// arrive after the run finalized.
func (r *TestRun) processStepError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == runEnded {
		r.cfg.logger.Warn().Str("run", r.name).Msg("Step error reported after the run ended")
		return
	}
	r.calc.NotifyError()
}

func (r *TestRun) processFailureDiagnosis() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == runEnded {
		r.cfg.logger.Warn().Str("run", r.name).Msg("Failure diagnosis reported after the run ended")
		return
	}
	r.calc.NotifyFailureDiagnosis()
}
