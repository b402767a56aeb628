package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/weathera/internal/weather"
	"github.com/rs/zerolog/log"
)

// HistoryLimit is the number of stored observations fed to the prompt.
const HistoryLimit = 24

// NoHistory is the digest used when no observations are stored for a location.
const NoHistory = "No local history available yet."

// LogQuerier is the read side of the weather log store.
type LogQuerier interface {
	QueryLogs(ctx context.Context, q weather.LogQuery) ([]weather.LogRecord, error)
}

// HistoryRetriever reads recent observations for a location.
type HistoryRetriever struct {
	logs LogQuerier
}

func NewHistoryRetriever(logs LogQuerier) *HistoryRetriever {
	return &HistoryRetriever{logs: logs}
}

// Recent returns up to HistoryLimit observations whose location contains
// location case-insensitively, newest first. Errors are logged and yield an
// empty result.
func (h *HistoryRetriever) Recent(ctx context.Context, location string) []weather.LogRecord {
	pattern := weather.LocationPattern(location)
	if pattern == "" || h.logs == nil {
		return nil
	}
	records, err := h.logs.QueryLogs(ctx, weather.LogQuery{LocationPattern: pattern, Limit: HistoryLimit})
	if err != nil {
		log.Warn().Err(err).Str("location", location).Msg("history lookup failed")
		return nil
	}
	return records
}

// Digest renders records as the confidential history block of the prompt.
// Hours are shown in zone.
func Digest(records []weather.LogRecord, zone *time.Location) string {
	if len(records) == 0 {
		return NoHistory
	}
	if zone == nil {
		zone = time.UTC
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, fmt.Sprintf("[%d:00] %s°C, %s%%, %s",
			r.Timestamp.In(zone).Hour(), Number(r.Temperature), Number(r.Humidity), r.Condition))
	}
	return "[INTERNAL DATA - CONFIDENTIAL - DO NOT SHARE RAW LIST]\n" +
		fmt.Sprintf("Local Weather History (Last %d Data Points):\n", HistoryLimit) +
		strings.Join(lines, "\n") +
		"\n[END INTERNAL DATA]"
}
