package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b Schedule
		want int
	}{
		{name: "empty", a: Schedule{}, b: Schedule{Monday: {"07:30-09:00"}}, want: 0},
		{name: "nil", a: nil, b: nil, want: 0},
		{name: "same day same slot", a: Schedule{Monday: {"07:30-09:00"}}, b: Schedule{Monday: {"07:30-09:00"}}, want: 1},
		{name: "same slot different day", a: Schedule{Monday: {"07:30-09:00"}}, b: Schedule{Tuesday: {"07:30-09:00"}}, want: 0},
		{
			name: "across days",
			a:    Schedule{Monday: {"07:30-09:00", "09:00-10:30"}, Friday: {"16:30-18:00"}, Saturday: {"12:00-13:30"}},
			b:    Schedule{Monday: {"09:00-10:30"}, Friday: {"16:30-18:00", "15:00-16:30"}, Saturday: {"12:00-13:30"}},
			want: 3,
		},
		{name: "duplicates count once", a: Schedule{Wednesday: {"10:30-12:00", "10:30-12:00"}}, b: Schedule{Wednesday: {"10:30-12:00"}}, want: 1},
		{name: "unknown labels ignored", a: Schedule{"X": {"07:30-09:00"}, Monday: {"noon"}}, b: Schedule{"X": {"07:30-09:00"}, Monday: {"noon"}}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlap(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlap(tt.a))
		})
	}
}

func TestScheduleValidate(t *testing.T) {
	require.NoError(t, Schedule{Thursday: {"13:30-15:00"}}.Validate())
	require.NoError(t, Schedule(nil).Validate())
	assert.Error(t, Schedule{"U": {"13:30-15:00"}}.Validate())
	assert.Error(t, Schedule{Monday: {"13:00-14:00"}}.Validate())
}

func TestScheduleNormalize(t *testing.T) {
	in := Schedule{
		Monday:  {"16:30-18:00", "07:30-09:00", "16:30-18:00"},
		Tuesday: {},
	}
	out := in.Normalize()
	assert.Equal(t, Schedule{Monday: {"07:30-09:00", "16:30-18:00"}}, out)
	assert.Len(t, in[Monday], 3)
	assert.Equal(t, 2, out.Size())
}

func TestVocabulary(t *testing.T) {
	assert.Len(t, Days, 6)
	assert.Len(t, Timeslots, 7)
	assert.True(t, IsDay(Thursday))
	assert.False(t, IsDay("U"))
	assert.True(t, IsTimeslot("12:00-13:30"))
}
