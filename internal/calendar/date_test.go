package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDisplayNormalisesToISO(t *testing.T) {
	d, err := ParseDisplay("05/03/2027")
	require.NoError(t, err)
	require.Equal(t, New(2027, time.March, 5), d)
	require.Equal(t, "2027-03-05", d.String())
	require.Equal(t, "05/03/2027", d.Display())
}

func TestParseRejectsImpossibleDay(t *testing.T) {
	_, err := ParseDisplay("31/02/2027")
	require.Error(t, err)
	_, err = ParseISO("2027-13-01")
	require.Error(t, err)
}

func TestDaysSinceAcrossDST(t *testing.T) {
	today := New(2026, time.October, 19)
	require.Equal(t, 0, today.DaysSince(today))
	require.Equal(t, 31, today.AddDays(31).DaysSince(today))
	require.Equal(t, -1, today.AddDays(-1).DaysSince(today))
	require.Equal(t, 365, New(2027, time.March, 28).DaysSince(New(2026, time.March, 28)))
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		Expiry *Date `json:"expiry"`
	}
	raw, err := json.Marshal(wrapper{Expiry: Ptr(New(2027, time.January, 2))})
	require.NoError(t, err)
	require.JSONEq(t, `{"expiry":"2027-01-02"}`, string(raw))

	var out wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"expiry":"02/01/2027"}`), &out))
	require.Equal(t, New(2027, time.January, 2), *out.Expiry)
}

func TestDaysSinceBeyondDurationRange(t *testing.T) {
	today := New(2026, time.October, 19)
	require.Equal(t, 355454, New(2999, time.December, 31).DaysSince(today))
	require.Equal(t, -355454, today.DaysSince(New(2999, time.December, 31)))
}
