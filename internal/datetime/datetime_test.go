package datetime

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{name: "iso with micros", in: "2024-01-15T14:30:00.123456", want: "2024-01-15 14:30:00", wantOK: true},
		{name: "iso plain", in: "2024-01-15T14:30:00", want: "2024-01-15 14:30:00", wantOK: true},
		{name: "iso utc marker", in: "2024-01-15T14:30:00Z", want: "2024-01-15 14:30:00", wantOK: true},
		{name: "iso fraction and utc marker", in: "2024-01-15T14:30:00.5Z", want: "2024-01-15 14:30:00", wantOK: true},
		{name: "iso offset keeps wall clock", in: "2024-01-15T14:30:00+02:00", want: "2024-01-15 14:30:00", wantOK: true},
		{name: "iso without seconds", in: "2024-01-15T14:30", want: "2024-01-15 14:30:00", wantOK: true},
		{name: "canonical", in: "2024-01-15 14:30:00", want: "2024-01-15 14:30:00", wantOK: true},
		{name: "canonical with fraction", in: "2024-01-15 14:30:00.999", want: "2024-01-15 14:30:00", wantOK: true},
		{name: "bare date", in: "2024-01-15", want: "2024-01-15 00:00:00", wantOK: true},
		{name: "day month year", in: "15/01/2024 14:30:00", want: "2024-01-15 14:30:00", wantOK: true},
		{name: "surrounding space", in: " 2024-01-15 14:30:00 ", want: "2024-01-15 14:30:00", wantOK: true},
		{name: "garbage", in: "not-a-date", want: "", wantOK: false},
		{name: "month first is rejected", in: "01/15/2024 14:30:00", want: "", wantOK: false},
		{name: "empty", in: "", want: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToISO(t *testing.T) {
	assert.Equal(t, "2024-01-15T14:30:00", ToISO("2024-01-15 14:30:00"))
	assert.Equal(t, "2024-01-15T14:30:00", ToISO("2024-01-15T14:30:00.123456"))
	assert.Equal(t, "2024-01-15T00:00:00", ToISO("2024-01-15"))
	assert.Equal(t, "yesterday", ToISO("yesterday"))
	assert.Equal(t, "", ToISO(""))
}

// captureLogs routes the default slog logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestNormalizeWarnsOnUnparseable(t *testing.T) {
	logs := captureLogs(t)

	_, ok := Normalize("not-a-date")
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "could not parse datetime")
	assert.Contains(t, logs.String(), "value=not-a-date")
}

func TestNormalizeEmptyIsSilent(t *testing.T) {
	logs := captureLogs(t)

	_, ok := Normalize("   ")
	assert.False(t, ok)
	assert.Empty(t, logs.String())

	_, ok = Normalize("2024-01-15 14:30:00")
	assert.True(t, ok)
	assert.Empty(t, logs.String())
}

func TestFormatRoundTrip(t *testing.T) {
	in := time.Date(2025, 3, 9, 7, 5, 1, 0, time.UTC)
	out, err := ParseCanonical(Format(in))
	assert.NoError(t, err)
	assert.True(t, in.Equal(out))
}
