package querylog

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ai-assistant/internal/domain/assistant"
	"github.com/yanqian/ai-assistant/internal/domain/calendarquery"
)

func TestMemoryLogRecentNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := NewMemoryLog(3)
	for i := 0; i < 5; i++ {
		chat := "a"
		if i%2 == 1 {
			chat = "b"
		}
		require.NoError(t, log.Record(ctx, assistant.QueryLogEntry{ChatID: chat, Text: fmt.Sprint(i)}))
	}

	all, err := log.Recent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []string{"4", "3", "2"}, texts(all))
	require.Equal(t, int64(5), all[0].ID)

	onlyA, err := log.Recent(ctx, "a", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"4", "2"}, texts(onlyA))

	limited, err := log.Recent(ctx, "", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"4"}, texts(limited))
}

func TestMemoryLogPartiallyFilled(t *testing.T) {
	t.Parallel()

	log := NewMemoryLog(0)
	entries, err := log.Recent(context.Background(), "", 5)
	require.NoError(t, err)
	require.Empty(t, entries)

	require.NoError(t, log.Record(context.Background(), assistant.QueryLogEntry{ChatID: "x", Text: "only"}))
	entries, err = log.Recent(context.Background(), "x", 5)
	require.NoError(t, err)
	require.Equal(t, []string{"only"}, texts(entries))
}

func TestScanEntry(t *testing.T) {
	t.Parallel()

	lisbon, err := time.LoadLocation("Europe/Lisbon")
	require.NoError(t, err)
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, lisbon)
	row := fakeRow{values: []any{
		int64(7), "chat", "próximos 5 eventos", "next_events", start, start.AddDate(0, 0, 90),
		sql.NullInt32{Int32: 5, Valid: true}, "pt", false, 5, start,
	}}

	entry, err := scanEntry(row)
	require.NoError(t, err)
	require.Equal(t, calendarquery.QueryNextEvents, entry.QueryType)
	require.Equal(t, 5, *entry.EventLimit)
	require.Equal(t, time.UTC, entry.Start.Location())
	require.True(t, entry.Start.Equal(start))
}

func texts(entries []assistant.QueryLogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

type fakeRow struct {
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: want %d destinations, got %d", len(r.values), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *string:
			*p = r.values[i].(string)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case *sql.NullInt32:
			*p = r.values[i].(sql.NullInt32)
		case *bool:
			*p = r.values[i].(bool)
		case *int:
			*p = r.values[i].(int)
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}
	return nil
}
