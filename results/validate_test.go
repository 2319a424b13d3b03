package results

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ocpdiag/ocpdiag/model"
)

func TestCheckValueKind(t *testing.T) {
	require.NoError(t, CheckValueKind(model.KindNumber, RangeKinds))
	require.NoError(t, CheckValueKind(model.KindList, ValidValueKinds))

	err := CheckValueKind(model.KindBool, RangeKinds)
	require.Error(t, err)
	require.Contains(t, err.Error(), "'bool'")
	require.Contains(t, err.Error(), "Expected one of: double, string.")

	err = CheckValueKind(model.KindStruct, ValidValueKinds)
	require.Error(t, err)
	require.Contains(t, err.Error(), "NullValue, double, string, bool, ListValue")
}

func TestValidateMeasurementElement(t *testing.T) {
	tests := []struct {
		name    string
		elem    model.MeasurementElement
		wantErr string
	}{
		{
			name: "unbounded number",
			elem: model.MeasurementElement{Value: model.Number(1)},
		},
		{
			name:    "struct",
			elem:    model.MeasurementElement{Value: model.Struct(map[string]model.Value{"a": model.Number(1)})},
			wantErr: "'Struct' is invalid",
		},
		{
			name:    "unset",
			elem:    model.MeasurementElement{},
			wantErr: "is invalid in this context",
		},
		{
			name: "range",
			elem: model.MeasurementElement{
				Value: model.Number(5),
				Range: &model.Range{Minimum: model.Number(0), Maximum: model.Number(10)},
			},
		},
		{
			name: "open range",
			elem: model.MeasurementElement{
				Value: model.String("b"),
				Range: &model.Range{Minimum: model.String("a")},
			},
		},
		{
			name: "bool range",
			elem: model.MeasurementElement{
				Value: model.Bool(true),
				Range: &model.Range{Minimum: model.Bool(false)},
			},
			wantErr: "'bool' is invalid",
		},
		{
			name: "range kind mismatch",
			elem: model.MeasurementElement{
				Value: model.Number(5),
				Range: &model.Range{Maximum: model.String("z")},
			},
			wantErr: "'string' does not equal 'double'",
		},
		{
			name: "valid values",
			elem: model.MeasurementElement{
				Value:       model.Bool(true),
				ValidValues: &model.ValidValues{Values: []model.Value{model.Bool(true), model.Bool(false)}},
			},
		},
		{
			name: "valid values kind mismatch",
			elem: model.MeasurementElement{
				Value:       model.Bool(true),
				ValidValues: &model.ValidValues{Values: []model.Value{model.Number(1)}},
			},
			wantErr: "'double' does not equal 'bool'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMeasurementElement(tt.elem)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCheckLimits(t *testing.T) {
	numRange := func(v, lo, hi float64) model.MeasurementElement {
		return model.MeasurementElement{
			Value: model.Number(v),
			Range: &model.Range{Minimum: model.Number(lo), Maximum: model.Number(hi)},
		}
	}
	valid := func(v model.Value, vs ...model.Value) model.MeasurementElement {
		return model.MeasurementElement{Value: v, ValidValues: &model.ValidValues{Values: vs}}
	}

	tests := []struct {
		name        string
		elem        model.MeasurementElement
		want        bool
		wantSymptom string
	}{
		{name: "inside", elem: numRange(5, 0, 10), want: true},
		{name: "at minimum", elem: numRange(0, 0, 10), want: true},
		{name: "at maximum", elem: numRange(10, 0, 10), want: true},
		{name: "below", elem: numRange(-1, 0, 10), wantSymptom: SymptomOutOfRange},
		{name: "above", elem: numRange(11, 0, 10), wantSymptom: SymptomOutOfRange},
		{
			name: "string range",
			elem: model.MeasurementElement{
				Value: model.String("m"),
				Range: &model.Range{Minimum: model.String("a"), Maximum: model.String("z")},
			},
			want: true,
		},
		{
			name: "string above",
			elem: model.MeasurementElement{
				Value: model.String("zz"),
				Range: &model.Range{Maximum: model.String("z")},
			},
			wantSymptom: SymptomOutOfRange,
		},
		{
			name: "open minimum",
			elem: model.MeasurementElement{
				Value: model.Number(-100),
				Range: &model.Range{Maximum: model.Number(0)},
			},
			want: true,
		},
		{name: "valid", elem: valid(model.String("ok"), model.String("ok"), model.String("good")), want: true},
		{name: "invalid", elem: valid(model.String("bad"), model.String("ok")), wantSymptom: SymptomInvalidValue},
		{name: "empty valid values", elem: valid(model.Number(3)), want: true},
		{name: "valid list", elem: valid(model.List(model.Number(1)), model.List(model.Number(1))), want: true},
		{name: "unbounded", elem: model.MeasurementElement{Value: model.Null()}, want: true},
		{name: "nan in range", elem: numRange(math.NaN(), 0, 10), wantSymptom: SymptomOutOfRange},
		{name: "nan in open range", elem: model.MeasurementElement{Value: model.Number(math.NaN()), Range: &model.Range{}}, wantSymptom: SymptomOutOfRange},
		{name: "nan bound", elem: numRange(5, math.NaN(), 10), wantSymptom: SymptomOutOfRange},
		{name: "nan valid values", elem: valid(model.Number(math.NaN()), model.Number(1)), wantSymptom: SymptomInvalidValue},
		{name: "nan listed as valid", elem: valid(model.Number(math.NaN()), model.Number(math.NaN())), wantSymptom: SymptomInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, violation := CheckLimits("m", tt.elem)
			if tt.wantSymptom == "" {
				require.True(t, ok)
				require.Nil(t, violation)
				return
			}
			require.False(t, ok)
			require.NotNil(t, violation)
			require.Equal(t, tt.wantSymptom, violation.Symptom)
			require.Contains(t, violation.Message, `"m"`)
		})
	}
}

func TestRunRegistry(t *testing.T) {
	r := &RunRegistry{}
	require.NoError(t, r.Acquire("first"))

	err := r.Acquire("second")
	require.ErrorIs(t, err, ErrRunAlreadyActive)
	name, held := r.Active()
	require.True(t, held)
	require.Equal(t, "first", name)

	r.Release()
	r.Release()
	_, held = r.Active()
	require.False(t, held)
	require.NoError(t, r.Acquire("second"))
}
