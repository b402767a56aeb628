package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDayPeriodAt(t *testing.T) {
	cases := map[int]DayPeriod{
		0: PeriodNight, 3: PeriodNight,
		4: PeriodMorning, 9: PeriodMorning,
		10: PeriodMidday, 14: PeriodMidday,
		15: PeriodAfternoon, 17: PeriodAfternoon,
		18: PeriodNight, 23: PeriodNight,
	}
	for hour, want := range cases {
		require.Equal(t, want, DayPeriodAt(hour), "hour %d", hour)
	}
	require.Equal(t, "Malam 🌙", PeriodNight.Label())
	require.Equal(t, "afternoon", PeriodAfternoon.String())
}

func TestFormatIndonesian(t *testing.T) {
	ts := time.Date(2026, 10, 19, 7, 5, 0, 0, time.UTC)
	require.Equal(t, "Senin, 19 Oktober 2026 pukul 07.05", FormatIndonesian(ts))
}

func TestLoadZoneFallsBackToFixedOffset(t *testing.T) {
	zone := LoadZone("Not/AZone", 7)
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, zone).Zone()
	require.Equal(t, 7*3600, offset)

	jakarta := LoadZone("Asia/Jakarta", 0)
	_, offset = time.Date(2026, 1, 1, 0, 0, 0, 0, jakarta).Zone()
	require.Equal(t, 7*3600, offset)
}

func TestComposeIsDeterministic(t *testing.T) {
	in := PromptInput{
		Context:  jeparaContext(),
		History:  "[21:00] 27°C, 80%, Cerah",
		Advisory: ResolveAdvice("Cerah"),
		Now:      time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC),
	}
	first := Compose(in)
	require.Equal(t, first, Compose(in))

	require.Contains(t, first, "Location: Jepara")
	require.Contains(t, first, "Temp 27°C")
	require.Contains(t, first, "Humidity 80%")
	require.Contains(t, first, "HISTORY_LOGS: [21:00] 27°C, 80%, Cerah")
	require.Contains(t, first, PrivacyRefusal)
	require.Contains(t, first, MedicalDisclaimer)
	require.Contains(t, first, "Forecast: []")
	// 14:00 UTC is 21:00 in Jakarta.
	require.Contains(t, first, "TIME_STATUS: Malam 🌙")
	require.Contains(t, first, "SERVER_TIME (WIB): Senin, 19 Oktober 2026 pukul 21.00 (UTC+7)")
	require.Contains(t, first, "SERVER_TIME (LONDON):")
}

func TestComposeDefaultsMissingFields(t *testing.T) {
	out := Compose(PromptInput{Now: time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)})

	require.Contains(t, out, "Location: Unknown")
	require.Contains(t, out, "Condition: Unknown")
	require.Contains(t, out, "Local time: Unknown (Unknown)")
	require.Contains(t, out, "HISTORY_LOGS: "+NoHistory)
	require.Contains(t, out, "HEALTH_DB: "+AdviceFallback)
	require.Contains(t, out, "TIME_STATUS: Siang ☀️")
	require.False(t, strings.Contains(out, "%!"), "format verbs must all be satisfied")
}
