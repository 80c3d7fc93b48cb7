package sync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelth-com/reg44go/internal/models"
)

func TestVectorClockCompare(t *testing.T) {
	cases := []struct {
		name string
		a, b VectorClock
		want ClockRelation
	}{
		{"both empty", VectorClock{}, VectorClock{}, ClockEqual},
		{"equal", VectorClock{"a": 2, "b": 1}, VectorClock{"a": 2, "b": 1}, ClockEqual},
		{"before", VectorClock{"a": 1}, VectorClock{"a": 2}, ClockBefore},
		{"before with new device", VectorClock{"a": 1}, VectorClock{"a": 1, "b": 1}, ClockBefore},
		{"after", VectorClock{"a": 3, "b": 1}, VectorClock{"a": 2}, ClockAfter},
		{"after empty", VectorClock{"a": 1}, VectorClock{}, ClockAfter},
		{"concurrent", VectorClock{"a": 2}, VectorClock{"b": 1}, ClockConcurrent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Compare(tc.b))
		})
	}
}

func TestVectorClockMergeAndCopy(t *testing.T) {
	a := VectorClock{"a": 2, "b": 1}
	b := VectorClock{"b": 3, "c": 1}

	c := a.Copy()
	c.Merge(b)
	assert.Equal(t, VectorClock{"a": 2, "b": 3, "c": 1}, c)
	assert.Equal(t, VectorClock{"a": 2, "b": 1}, a, "merge must not touch the source")

	c.Increment("a")
	assert.EqualValues(t, 3, c.Get("a"))
	assert.Equal(t, ClockAfter, c.Compare(a))
}

func TestVectorClockJSONBRoundTrip(t *testing.T) {
	vc := VectorClock{"device-1": 4, "device-2": 1}

	// Simulate a trip through the database column
	raw, err := json.Marshal(vc.ToJSONB())
	require.NoError(t, err)
	var stored models.JSONB
	require.NoError(t, stored.Scan(raw))

	assert.Equal(t, vc, ClockFromJSONB(stored))
	assert.Empty(t, ClockFromJSONB(nil))
}

func TestVectorClockValidate(t *testing.T) {
	assert.NoError(t, VectorClock{"a": 1}.Validate())
	assert.Error(t, VectorClock{"": 1}.Validate())
	assert.Error(t, VectorClock{"a": -1}.Validate())
}
