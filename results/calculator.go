package results

// This file contains the state machine that derives the final status and
// result of a run from the notifications it receives.

import (
	"sync"

	"github.com/ocpdiag/ocpdiag/model"
)

// ResultSink receives the lifecycle notifications of a run.
type ResultSink interface {
	NotifyStartRun()
	NotifySkip()
	NotifyError()
	NotifyFailureDiagnosis()
	Finalize()
	Status() model.TestStatus
	Result() model.TestResult
}

// Calculator is the default ResultSink. Errors win over skips and
// failures, failures win over the default pass.
type Calculator struct {
	mu        sync.Mutex
	status    model.TestStatus
	result    model.TestResult
	started   bool
	finalized bool
}

func NewCalculator() *Calculator {
	return &Calculator{
		status: model.TestStatusUnknown,
		result: model.TestResultNotApplicable,
	}
}

// NotifyStartRun panics if the run was already started.
func (c *Calculator) NotifyStartRun() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		panic("results: NotifyStartRun called on a run that already started")
	}
	c.started = true
}

func (c *Calculator) NotifySkip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustNotBeFinalized("NotifySkip")
	if c.status == model.TestStatusUnknown {
		c.result = model.TestResultNotApplicable
		c.status = model.TestStatusSkipped
	}
}

func (c *Calculator) NotifyError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustNotBeFinalized("NotifyError")
	if c.status == model.TestStatusUnknown {
		c.result = model.TestResultNotApplicable
		c.status = model.TestStatusError
	}
}

func (c *Calculator) NotifyFailureDiagnosis() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustNotBeFinalized("NotifyFailureDiagnosis")
	if c.result == model.TestResultNotApplicable && c.status == model.TestStatusUnknown {
		c.result = model.TestResultFail
	}
}

// Finalize fixes the status and result. Any later notification panics.
func (c *Calculator) Finalize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustNotBeFinalized("Finalize")
	c.finalized = true

	switch {
	case c.started && c.status == model.TestStatusUnknown:
		c.status = model.TestStatusComplete
		if c.result == model.TestResultNotApplicable {
			c.result = model.TestResultPass
		}
	case !c.started && c.status != model.TestStatusError:
		c.status = model.TestStatusSkipped
		c.result = model.TestResultNotApplicable
	}
}

func (c *Calculator) Status() model.TestStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Calculator) Result() model.TestResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

func (c *Calculator) mustNotBeFinalized(op string) {
	if c.finalized {
		panic("results: " + op + " called after the result was finalized")
	}
}
