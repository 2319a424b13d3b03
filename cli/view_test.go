package cli

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ocpdiag/ocpdiag/history"
	"github.com/ocpdiag/ocpdiag/model"
)

func TestRemoveFirstDashDash(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "empty", in: []string{}, want: []string{}},
		{name: "leading --", in: []string{"--", "-top"}, want: []string{"-top"}},
		{name: "only --", in: []string{"--"}, want: []string{}},
		{name: "-- in middle", in: []string{"-top", "--", "-cum"}, want: []string{"-top", "--", "-cum"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := removeFirstDashDash(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("removeFirstDashDash() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseViewArgs(t *testing.T) {
	tests := []struct {
		name          string
		in            []string
		wantID        string
		wantPprofArgs []string
	}{
		{name: "no args", in: nil, wantID: "0"},
		{name: "negative index", in: []string{"-1"}, wantID: "-1", wantPprofArgs: []string{}},
		{name: "results file", in: []string{"out/results.rio"}, wantID: "out/results.rio", wantPprofArgs: []string{}},
		{name: "only pprof args", in: []string{"-top"}, wantID: "0", wantPprofArgs: []string{"-top"}},
		{name: "leading --", in: []string{"--", "-top"}, wantID: "0", wantPprofArgs: []string{"-top"}},
		{name: "id with separator", in: []string{"abc123", "--", "-http=:8080", "-top"}, wantID: "abc123", wantPprofArgs: []string{"-http=:8080", "-top"}},
		{name: "index without separator", in: []string{"-2", "-list=main"}, wantID: "-2", wantPprofArgs: []string{"-list=main"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotPprofArgs := parseViewArgs(tt.in)
			if gotID != tt.wantID {
				t.Errorf("parseViewArgs() gotID = %v, want %v", gotID, tt.wantID)
			}
			if !reflect.DeepEqual(gotPprofArgs, tt.wantPprofArgs) {
				t.Errorf("parseViewArgs() gotPprofArgs = %v, want %v", gotPprofArgs, tt.wantPprofArgs)
			}
		})
	}
}

func TestSelectEntry(t *testing.T) {
	now := time.Now()
	entries := []history.Entry{
		{History: model.History{ID: "c0ffee00-1", Timestamp: now}},
		{History: model.History{ID: "beef0000-2", Timestamp: now.Add(-time.Minute)}},
		{History: model.History{ID: "bead0000-3", Timestamp: now.Add(-time.Hour)}},
	}

	tests := []struct {
		arg     string
		wantID  string
		wantErr string
	}{
		{arg: "0", wantID: "c0ffee00-1"},
		{arg: "-2", wantID: "bead0000-3"},
		{arg: "-3", wantErr: "out of range"},
		{arg: "1", wantErr: "invalid index"},
		{arg: "BEEF", wantID: "beef0000-2"},
		{arg: "be", wantErr: "ambiguous"},
		{arg: "dead", wantErr: "no history entry"},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			e, err := selectEntry(entries, tt.arg)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, e.History.ID)
		})
	}

	_, err := selectEntry(nil, "0")
	require.ErrorContains(t, err, "no history entries")
}

func TestArtifactFilter(t *testing.T) {
	runTag := &model.Artifact{TestRunArtifact: &model.TestRunArtifact{Tag: &model.Tag{Tag: "t"}}}
	stepLog := &model.Artifact{TestStepArtifact: &model.TestStepArtifact{TestStepID: "1", Log: &model.Log{}}}
	otherLog := &model.Artifact{TestStepArtifact: &model.TestStepArtifact{TestStepID: "2", Log: &model.Log{}}}

	all, err := newArtifactFilter(nil, "")
	require.NoError(t, err)
	require.True(t, all.match(runTag))
	require.True(t, all.match(stepLog))

	logs, err := newArtifactFilter([]string{"step_log"}, "")
	require.NoError(t, err)
	require.False(t, logs.match(runTag))
	require.True(t, logs.match(otherLog))

	step, err := newArtifactFilter(nil, "1")
	require.NoError(t, err)
	require.False(t, step.match(runTag))
	require.True(t, step.match(stepLog))
	require.False(t, step.match(otherLog))

	_, err = newArtifactFilter([]string{"measurment"}, "")
	require.ErrorContains(t, err, "unknown artifact kind")
}
