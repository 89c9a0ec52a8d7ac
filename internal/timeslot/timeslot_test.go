package timeslot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlapsSymmetry(t *testing.T) {
	points := []TimeOfDay{0, 30, 60, 90, 120, 150, 180}
	for _, as := range points {
		for _, ae := range points {
			if ae <= as {
				continue
			}
			for _, bs := range points {
				for _, be := range points {
					if be <= bs {
						continue
					}
					assert.Equal(t, Overlaps(as, ae, bs, be), Overlaps(bs, be, as, ae),
						"[%s,%s) vs [%s,%s)", as, ae, bs, be)
				}
			}
		}
	}
}

func TestOverlaps(t *testing.T) {
	ten := MustParse("10:00")
	eleven := MustParse("11:00")

	tests := []struct {
		name       string
		a, b       Interval
		wantResult bool
	}{
		{"Adjacent after", Interval{ten, eleven}, Interval{eleven, MustParse("12:00")}, false},
		{"Adjacent before", Interval{ten, eleven}, Interval{MustParse("09:00"), ten}, false},
		{"Partial", Interval{ten, eleven}, Interval{MustParse("10:30"), MustParse("12:00")}, true},
		{"Contained", Interval{ten, MustParse("12:00")}, Interval{MustParse("10:30"), eleven}, true},
		{"Identical", Interval{ten, eleven}, Interval{ten, eleven}, true},
		{"Disjoint", Interval{ten, eleven}, Interval{MustParse("18:00"), MustParse("19:00")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantResult, tt.a.Overlaps(tt.b))
		})
	}
}

func TestAddMinutes(t *testing.T) {
	got, err := AddMinutes(MustParse("10:00"), 90)
	require.NoError(t, err)
	assert.Equal(t, "11:30", got.String())

	got, err = AddMinutes(MustParse("10:00"), -30)
	require.NoError(t, err)
	assert.Equal(t, "09:30", got.String())

	_, err = AddMinutes(MustParse("23:30"), 30)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = AddMinutes(MustParse("00:15"), -30)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = AddMinutes(TimeOfDay(-5), 10)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"10:00", "10:00", false},
		{"08:30:00", "08:30", false},
		{"23:59", "23:59", false},
		{"24:00", "", true},
		{"10:60", "", true},
		{"10:00:30", "", true},
		{"1000", "", true},
		{"9:00", "", true},
		{"ab:cd", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNewInterval(t *testing.T) {
	iv, err := NewInterval(MustParse("10:30"), 90)
	require.NoError(t, err)
	assert.Equal(t, "10:30-12:00", iv.String())
	assert.Equal(t, 90, iv.Minutes())

	_, err = NewInterval(MustParse("23:00"), 90)
	assert.ErrorIs(t, err, ErrOutOfRange)

	late, err := NewInterval(MustParse("23:00"), 60)
	require.NoError(t, err)
	assert.Equal(t, "23:00-24:00", late.String())

	_, err = NewInterval(MustParse("10:00"), 0)
	assert.Error(t, err)
}

func TestWithin(t *testing.T) {
	hours := Interval{Hour(8), Hour(23)}
	assert.True(t, Interval{Hour(8), Hour(9)}.Within(hours))
	assert.True(t, Interval{Hour(22), Hour(23)}.Within(hours))
	assert.False(t, Interval{MustParse("07:30"), MustParse("08:30")}.Within(hours))
	assert.False(t, Interval{MustParse("22:30"), MustParse("23:30")}.Within(hours))
}

func TestDates(t *testing.T) {
	d, err := ParseDate("2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Saturday, d.Weekday())
	assert.Equal(t, "2024-06-01", FormatDate(d))

	loc := time.FixedZone("ART", -3*3600)
	at := At(d, MustParse("18:30"), loc)
	assert.Equal(t, 18, at.Hour())
	assert.Equal(t, "18:30", Of(at).String())

	late := time.Date(2024, 6, 1, 23, 45, 0, 0, loc)
	assert.Equal(t, d, DateOf(late))
}

func TestTimeOfDayJSON(t *testing.T) {
	data, err := json.Marshal(Interval{MustParse("18:00"), MustParse("19:30")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"18:00","end":"19:30"}`, string(data))

	var iv Interval
	require.NoError(t, json.Unmarshal(data, &iv))
	assert.Equal(t, 90, iv.Minutes())
}
