package results

// This file contains the MeasurementSeries, an ordered sequence of
// measurement elements of a single value kind.

import (
	"fmt"
	"sync"

	"github.com/ocpdiag/ocpdiag/model"
)

// MeasurementSeries emits the elements of one series. The first element
// locks the value kind of the series; later elements and bounds of any
// other kind are rejected as procedural errors.
type MeasurementSeries struct {
	id   string
	step *TestStep
	info model.MeasurementInfo

	mu    sync.Mutex
	kind  model.Kind
	count int
	ended bool
}

// NewMeasurementSeries begins a series on step for the hardware hw and
// emits its start artifact. It panics if step is nil or ended.
//
// By default unregistered hardware is reported as an
// unregistered-hardware-info error and its ID is omitted from the series.
// With WithStrictRegistration(true) it panics instead.
func NewMeasurementSeries(step *TestStep, hw HwRecord, info model.MeasurementInfo) *MeasurementSeries {
	ms, err := newMeasurementSeries(step, hw, info)
	if err != nil {
		panic("results: " + err.Error())
	}
	return ms
}

func newMeasurementSeries(step *TestStep, hw HwRecord, info model.MeasurementInfo) (*MeasurementSeries, error) {
	if step == nil {
		return nil, fmt.Errorf("failed to begin MeasurementSeries %q: %w", info.Name, ErrNilParent)
	}
	if step.Ended() {
		return nil, fmt.Errorf("failed to begin MeasurementSeries %q: %w", info.Name, ErrStepEnded)
	}

	info.HardwareInfoID = hw.ID()
	if !step.writer.IsHwRegistered(hw.ID()) {
		if step.run.cfg.strictRegistration {
			panic(fmt.Sprintf("results: MeasurementSeries %q references hardware %q that is not registered with the TestRun", info.Name, hw.ID()))
		}
		step.AddError(SymptomUnregisteredHw, fmt.Sprintf(
			"The MeasurementSeries (%s) is ill-formed; the associated hardware info is not registered with the TestRun: %+v", info.Name, hw.Data()), nil)
		info.HardwareInfoID = ""
	}

	ms := &MeasurementSeries{
		step: step,
		info: info,
	}
	// A concurrent step End may reach ms as soon as it is added; holding
	// ms.mu keeps its end behind the start artifact.
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := step.addSeries(ms); err != nil {
		return nil, err
	}
	ms.id = step.nextSeriesID()

	step.emit(&model.TestStepArtifact{MeasurementSeriesStart: &model.MeasurementSeriesStart{
		MeasurementSeriesID: ms.id,
		Info:                info,
	}})
	return ms, nil
}

func (ms *MeasurementSeries) ID() string { return ms.id }

func (ms *MeasurementSeries) Info() model.MeasurementInfo { return ms.info }

func (ms *MeasurementSeries) Ended() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.ended
}

// AddElementWithRange adds a number or string value bounded by rng and
// reports whether it lies within it.
func (ms *MeasurementSeries) AddElementWithRange(value model.Value, rng model.Range) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	bounds := make([]model.Value, 0, 2)
	for _, b := range []model.Value{rng.Minimum, rng.Maximum} {
		if b.Kind() != model.KindNotSet {
			bounds = append(bounds, b)
		}
	}
	if !ms.acceptKinds(value, bounds, RangeKinds) {
		return false
	}
	return ms.emitElement(model.MeasurementElement{Value: value, Range: &rng})
}

// AddElementWithValues adds a value that must equal one of valid and
// reports whether it does. An empty valid list accepts every value.
func (ms *MeasurementSeries) AddElementWithValues(value model.Value, valid []model.Value) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.acceptKinds(value, valid, ValidValueKinds) {
		return false
	}
	elem := model.MeasurementElement{Value: value}
	if len(valid) > 0 {
		elem.ValidValues = &model.ValidValues{Values: append([]model.Value(nil), valid...)}
	}
	return ms.emitElement(elem)
}

// AddElement adds an unconstrained value.
func (ms *MeasurementSeries) AddElement(value model.Value) bool {
	return ms.AddElementWithValues(value, nil)
}

// acceptKinds locks the series kind on first use and checks value and
// bounds against it. It must be called with ms.mu held.
func (ms *MeasurementSeries) acceptKinds(value model.Value, bounds []model.Value, allowed []model.Kind) bool {
	if ms.ended {
		panic(fmt.Sprintf("results: element added to MeasurementSeries %q after it ended", ms.id))
	}

	if ms.kind == model.KindNotSet {
		if err := CheckValueKind(value.Kind(), allowed); err != nil {
			ms.step.AddError(SymptomProceduralError, err.Error(), nil)
			return false
		}
		ms.kind = value.Kind()
	}

	for _, v := range append([]model.Value{value}, bounds...) {
		if v.Kind() != ms.kind {
			ms.step.AddError(SymptomProceduralError, fmt.Sprintf(
				"MeasurementSeries %q only accepts values of kind '%s'; got '%s'", ms.id, ms.kind, v.Kind()), nil)
			return false
		}
	}
	if err := CheckValueKind(ms.kind, allowed); err != nil {
		ms.step.AddError(SymptomProceduralError, err.Error(), nil)
		return false
	}
	return true
}

// emitElement must be called with ms.mu held.
func (ms *MeasurementSeries) emitElement(elem model.MeasurementElement) bool {
	now := ms.step.run.cfg.now()
	elem.Index = ms.count
	elem.MeasurementSeriesID = ms.id
	elem.DutTimestamp = &now
	ms.count++

	ms.step.emit(&model.TestStepArtifact{MeasurementElement: &elem})

	valid, violation := CheckLimits(ms.info.Name, elem)
	if violation != nil {
		ms.step.reportLimitViolation(violation)
	}
	return valid
}

// End emits the series end artifact with the number of elements added.
// Calls after the first are no-ops.
func (ms *MeasurementSeries) End() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.ended {
		return
	}
	ms.step.emit(&model.TestStepArtifact{MeasurementSeriesEnd: &model.MeasurementSeriesEnd{
		MeasurementSeriesID:   ms.id,
		TotalMeasurementCount: ms.count,
	}})
	if err := ms.step.writer.Flush(); err != nil {
		ms.step.run.cfg.logger.Error().Err(err).Str("series", ms.id).Msg("Failed to flush results")
	}
	ms.ended = true
	ms.step.removeSeries(ms)
}
