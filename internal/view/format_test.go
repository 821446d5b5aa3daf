package view

import (
	"testing"
	"time"

	"wisefido-vitalsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }
func flag(v bool) *bool       { return &v }

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, Unknown, FormatNumber(nil, UnitBPM))
	assert.Equal(t, "0 bpm", FormatNumber(f64(0), UnitBPM))
	assert.Equal(t, "36.6 °C", FormatNumber(f64(36.6), UnitCelsius))
	assert.Equal(t, "98 %", FormatNumber(f64(98), UnitPercent))
}

func TestFormatFlag(t *testing.T) {
	assert.Equal(t, "Fall: —", FormatFlag("Fall", nil))
	assert.Equal(t, "Fall: YES", FormatFlag("Fall", flag(true)))
	assert.Equal(t, "Fall: NO", FormatFlag("Fall", flag(false)))
}

func TestFormatLabeled(t *testing.T) {
	assert.Equal(t, "RSSI: —", FormatLabeledNumber("RSSI", nil))
	assert.Equal(t, "RSSI: -67", FormatLabeledNumber("RSSI", f64(-67)))

	assert.Equal(t, "ECG: —", FormatLabeledScalar("ECG", nil))
	q := models.NewScalar("good")
	assert.Equal(t, "ECG: good", FormatLabeledScalar("ECG", q))
	blank := models.NewScalar("")
	assert.Equal(t, "ECG: —", FormatLabeledScalar("ECG", blank))
}

func TestFormatReceived(t *testing.T) {
	assert.Equal(t, Unknown, FormatReceived(nil))
	assert.Equal(t, Unknown, FormatReceived(str("")))
	assert.Equal(t, "received: 2024-05-01T10:00:00Z", FormatReceived(str("2024-05-01T10:00:00Z")))
}

func TestFormatReceivedAgo(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 30, 0, time.UTC)
	assert.Equal(t, Unknown, FormatReceivedAgo(nil, now))
	assert.Equal(t, Unknown, FormatReceivedAgo(str("yesterday"), now))
	assert.Equal(t, "30 seconds ago", FormatReceivedAgo(str("2024-05-01T10:00:00Z"), now))
}

func TestParseReceivedAt(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-01T10:00:00Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T12:00:00+02:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:00:00.123456", time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)},
		{"2024-05-01 10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseReceivedAt(tc.in)
			require.True(t, ok)
			assert.True(t, tc.want.Equal(got), "got %s", got)
		})
	}

	_, ok := ParseReceivedAt("not a time")
	assert.False(t, ok)
}
