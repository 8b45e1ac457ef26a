package maze

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Plan
		wantErr string
	}{
		{name: "empty plan", input: "", want: Plan{}},
		{name: "doors only", input: "012345", want: PlanOf(0, 1, 2, 3, 4, 5)},
		{name: "mark in the middle", input: "0[2]1", want: Plan{Move(0), MarkWith(2), Move(1)}},
		{name: "leading mark", input: "[3]5", want: Plan{MarkWith(3), Move(5)}},
		{name: "door out of range", input: "06", wantErr: "door 6 out of range"},
		{name: "label out of range", input: "[7]", wantErr: "mark label 7 out of range"},
		{name: "unterminated mark", input: "0[1", wantErr: "malformed mark"},
		{name: "multi digit mark", input: "[12]", wantErr: "malformed mark"},
		{name: "garbage", input: "0a", wantErr: "unexpected character"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlan(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestPlanHelpers(t *testing.T) {
	p := MustParsePlan("01[2]34")

	assert.Equal(t, 4, p.Moves())
	assert.True(t, p.HasMarks())
	assert.Equal(t, Path{0, 1}, p.Path())
	assert.Equal(t, "01[2]3", p.Truncate(3).String())
	assert.Equal(t, "01[2]34", p.Truncate(10).String())
	assert.Equal(t, "", p.Truncate(0).String())
	assert.Equal(t, "01[2]3455", p.Then(PlanOf(5, 5)).String())
	assert.Equal(t, "01[2]34", p.String(), "Then must not alias the receiver")
}

func TestPathHelpers(t *testing.T) {
	p := Path{0, 1, 2}

	assert.True(t, p.HasPrefix(Path{0, 1}))
	assert.True(t, p.HasPrefix(Path{}))
	assert.False(t, p.HasPrefix(Path{1}))
	assert.False(t, p.HasPrefix(Path{0, 1, 2, 3}))
	assert.Equal(t, 2, p.CommonPrefix(Path{0, 1, 5}))
	assert.Equal(t, "0123", p.Extend(3).String())
	assert.Equal(t, "012", p.String())
	assert.Equal(t, PlanOf(0, 1, 2), p.Plan())
}

func TestObservationJSON(t *testing.T) {
	obs := Observation{
		ID:     "obs-1",
		Seq:    3,
		Plan:   MustParsePlan("0[1]2"),
		Labels: []Label{0, 2, 1, 3},
	}

	data, err := json.Marshal(obs)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"plan":"0[1]2"`)

	var decoded Observation
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, obs, decoded)
}
