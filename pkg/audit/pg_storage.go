package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStorage stores events in the audit_events table. The request id and
// client ip travel inside the JSONB payload.
type PgStorage struct {
	pool *pgxpool.Pool
}

// NewPgStorage creates a Postgres-backed storage.
func NewPgStorage(pool *pgxpool.Pool) *PgStorage {
	return &PgStorage{pool: pool}
}

const (
	payloadRequestID = "request_id"
	payloadIP        = "ip"
)

func (s *PgStorage) Store(ctx context.Context, event Event) error {
	payload := make(map[string]any, len(event.Details)+2)
	for k, v := range event.Details {
		payload[k] = v
	}
	if event.RequestID != "" {
		payload[payloadRequestID] = event.RequestID
	}
	if event.IP != "" {
		payload[payloadIP] = event.IP
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("audit: encode payload: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, ts, actor, type, ok, payload) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)`,
		event.ID, event.CreatedAt, event.Actor, event.Action, event.OK, raw,
	)
	if err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

func (s *PgStorage) Query(ctx context.Context, criteria Criteria) ([]Event, error) {
	criteria = criteria.Normalize()

	var (
		where []string
		args  []any
	)
	if criteria.ActionPrefix != "" {
		args = append(args, escapeLike(criteria.ActionPrefix)+"%")
		where = append(where, fmt.Sprintf("type LIKE $%d", len(args)))
	}
	if criteria.Actor != "" {
		args = append(args, criteria.Actor)
		where = append(where, fmt.Sprintf("actor = $%d", len(args)))
	}
	args = append(args, criteria.Limit)

	query := "SELECT id, ts, COALESCE(actor, ''), type, ok, payload FROM audit_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Join(ErrStorageNotAvailable, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e   Event
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Actor, &e.Action, &e.OK, &raw); err != nil {
			return nil, errors.Join(ErrStorageNotAvailable, err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Details); err != nil {
				return nil, fmt.Errorf("audit: decode payload: %w", err)
			}
		}
		if v, ok := e.Details[payloadRequestID].(string); ok {
			e.RequestID = v
			delete(e.Details, payloadRequestID)
		}
		if v, ok := e.Details[payloadIP].(string); ok {
			e.IP = v
			delete(e.Details, payloadIP)
		}
		if len(e.Details) == 0 {
			e.Details = nil
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStorageNotAvailable, err)
	}
	return events, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
