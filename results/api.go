package results

import (
	"github.com/ocpdiag/ocpdiag/model"
)

// API creates runs, steps and series, returning errors where the New*
// constructors would panic.
type API struct {
	opts []Option
}

// NewAPI returns an API applying opts to every run it initializes.
func NewAPI(opts ...Option) *API {
	return &API{opts: opts}
}

// InitializeTestRun creates a run. It fails with ErrRunAlreadyActive if
// the registry slot is taken.
func (a *API) InitializeTestRun(name string, opts ...Option) (*TestRun, error) {
	all := append(append([]Option(nil), a.opts...), opts...)
	return newTestRun(name, all...)
}

// BeginTestStep begins a step of run. It fails with ErrNilParent,
// ErrRunNotStarted or ErrRunEnded.
func (a *API) BeginTestStep(run *TestRun, name string) (*TestStep, error) {
	return newTestStep(run, name)
}

// BeginMeasurementSeries begins a series on step. It fails with
// ErrNilParent or ErrStepEnded.
func (a *API) BeginMeasurementSeries(step *TestStep, hw HwRecord, info model.MeasurementInfo) (*MeasurementSeries, error) {
	return newMeasurementSeries(step, hw, info)
}
