package querylog

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-assistant/internal/domain/assistant"
	"github.com/yanqian/ai-assistant/internal/domain/calendarquery"
)

const schema = `
CREATE TABLE IF NOT EXISTS calendar_queries (
	id          BIGSERIAL PRIMARY KEY,
	chat_id     TEXT        NOT NULL,
	query_text  TEXT        NOT NULL,
	query_type  TEXT        NOT NULL,
	start_at    TIMESTAMPTZ NOT NULL,
	end_at      TIMESTAMPTZ NOT NULL,
	event_limit INTEGER,
	language    TEXT        NOT NULL,
	fallback    BOOLEAN     NOT NULL DEFAULT FALSE,
	event_count INTEGER     NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS calendar_queries_chat_created_idx ON calendar_queries (chat_id, created_at DESC);
`

// PostgresLog persists analyzed queries in the calendar_queries table.
type PostgresLog struct {
	pool *pgxpool.Pool
}

// NewPostgresLog creates a new log.
func NewPostgresLog(pool *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{pool: pool}
}

// EnsureSchema creates the table when it is missing.
func (l *PostgresLog) EnsureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, schema)
	return err
}

// Record inserts entry.
func (l *PostgresLog) Record(ctx context.Context, entry assistant.QueryLogEntry) error {
	var limit sql.NullInt32
	if entry.EventLimit != nil {
		limit = sql.NullInt32{Int32: int32(*entry.EventLimit), Valid: true}
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := l.pool.Exec(ctx, `
		INSERT INTO calendar_queries (chat_id, query_text, query_type, start_at, end_at, event_limit, language, fallback, event_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ChatID, entry.Text, string(entry.QueryType), entry.Start, entry.End, limit, entry.Language, entry.Fallback, entry.EventCount, created)
	return err
}

// Recent lists entries newest first. An empty chatID matches every chat.
func (l *PostgresLog) Recent(ctx context.Context, chatID string, limit int) ([]assistant.QueryLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, chat_id, query_text, query_type, start_at, end_at, event_limit, language, fallback, event_count, created_at
		FROM calendar_queries
		WHERE ($1 = '' OR chat_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []assistant.QueryLogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (assistant.QueryLogEntry, error) {
	var (
		entry     assistant.QueryLogEntry
		queryType string
		limit     sql.NullInt32
	)
	if err := row.Scan(&entry.ID, &entry.ChatID, &entry.Text, &queryType, &entry.Start, &entry.End,
		&limit, &entry.Language, &entry.Fallback, &entry.EventCount, &entry.CreatedAt); err != nil {
		return assistant.QueryLogEntry{}, err
	}
	entry.QueryType = calendarquery.ParseQueryType(queryType)
	if limit.Valid {
		n := int(limit.Int32)
		entry.EventLimit = &n
	}
	entry.Start = entry.Start.UTC()
	entry.End = entry.End.UTC()
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, nil
}

var _ assistant.QueryLog = (*PostgresLog)(nil)
