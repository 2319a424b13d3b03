package results

// This file contains the value kind, range and valid values checks applied
// to measurement elements.

import (
	"fmt"
	"strings"

	"github.com/ocpdiag/ocpdiag/model"
)

var (
	// ValidValueKinds may be used for unbounded and valid values
	// constrained measurements.
	ValidValueKinds = []model.Kind{model.KindNull, model.KindNumber, model.KindString, model.KindBool, model.KindList}
	// RangeKinds may be used for range constrained measurements.
	RangeKinds = []model.Kind{model.KindNumber, model.KindString}
)

// CheckValueKind returns an error naming the allowed kinds if kind is not
// one of them.
func CheckValueKind(kind model.Kind, allowed []model.Kind) error {
	for _, k := range allowed {
		if k == kind {
			return nil
		}
	}
	return fmt.Errorf("MeasurementElement value of kind '%s' is invalid in this context. "+
		"Expected one of: %s. Note: if you'd like to use a Struct Value type, flatten it "+
		"into discrete measurement elements instead.", kind, kindNames(allowed))
}

func kindNames(kinds []model.Kind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}
	return strings.Join(names, ", ")
}

func sameKindError(got, want model.Kind) error {
	return fmt.Errorf("Every value in a MeasurementElement must be of the same kind. '%s' does not equal '%s'", got, want)
}

// ValidateMeasurementElement checks that the element's value and all of
// its bounds are of one acceptable kind.
func ValidateMeasurementElement(elem model.MeasurementElement) error {
	kind := elem.Value.Kind()
	if err := CheckValueKind(kind, ValidValueKinds); err != nil {
		return err
	}

	switch {
	case elem.ValidValues != nil:
		for _, v := range elem.ValidValues.Values {
			if err := CheckValueKind(v.Kind(), ValidValueKinds); err != nil {
				return err
			}
			if v.Kind() != kind {
				return sameKindError(v.Kind(), kind)
			}
		}
	case elem.Range != nil:
		if err := CheckValueKind(kind, RangeKinds); err != nil {
			return err
		}
		for _, bound := range []model.Value{elem.Range.Minimum, elem.Range.Maximum} {
			if bound.Kind() == model.KindNotSet {
				continue
			}
			if err := CheckValueKind(bound.Kind(), RangeKinds); err != nil {
				return err
			}
			if bound.Kind() != kind {
				return sameKindError(bound.Kind(), kind)
			}
		}
	}
	return nil
}

// LimitViolation describes a value outside of its declared constraint.
type LimitViolation struct {
	Symptom string
	Message string
}

// CheckLimits reports whether the element's value satisfies its range or
// valid values. The element must have passed ValidateMeasurementElement.
// A NaN value satisfies neither.
func CheckLimits(name string, elem model.MeasurementElement) (bool, *LimitViolation) {
	v := elem.Value
	switch {
	case elem.ValidValues != nil && len(elem.ValidValues.Values) > 0:
		for _, valid := range elem.ValidValues.Values {
			if model.Equal(v, valid) {
				return true, nil
			}
		}
		return false, &LimitViolation{
			Symptom: SymptomInvalidValue,
			Message: fmt.Sprintf("Measurement %q value %s is not one of the valid values %s", name, v, model.List(elem.ValidValues.Values...)),
		}
	case elem.Range != nil:
		if model.IsNaN(v) {
			return false, &LimitViolation{
				Symptom: SymptomOutOfRange,
				Message: fmt.Sprintf("Measurement %q value %s is not a number", name, v),
			}
		}
		if lo := elem.Range.Minimum; lo.Kind() != model.KindNotSet {
			if c, err := model.Compare(v, lo); err != nil || c < 0 {
				return false, &LimitViolation{
					Symptom: SymptomOutOfRange,
					Message: fmt.Sprintf("Measurement %q value %s is below the minimum %s", name, v, lo),
				}
			}
		}
		if hi := elem.Range.Maximum; hi.Kind() != model.KindNotSet {
			if c, err := model.Compare(v, hi); err != nil || c > 0 {
				return false, &LimitViolation{
					Symptom: SymptomOutOfRange,
					Message: fmt.Sprintf("Measurement %q value %s is above the maximum %s", name, v, hi),
				}
			}
		}
	}
	return true, nil
}
