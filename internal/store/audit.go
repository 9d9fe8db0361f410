// ABOUTME: Auth event entity and store methods for the sign-in audit trail
// ABOUTME: Records registrations, logins, and denied attempts for debugging and forensics

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuthEventType represents a recordable authentication event.
type AuthEventType string

const (
	EventRegister    AuthEventType = "register"
	EventLogin       AuthEventType = "login"
	EventLoginDenied AuthEventType = "login_denied"
)

// AuthEvent is a single entry in the authentication audit trail. UserID is
// nil when the attempt never resolved to an account. Rows are kept after
// user deletion, so there is no foreign key back to users.
type AuthEvent struct {
	ID        string         // UUID v4
	UserID    *string        // account involved, if known
	Username  string         // username as presented in the ceremony
	Event     AuthEventType  // what happened
	Detail    map[string]any // additional context (credential ID, denial reason)
	CreatedAt time.Time      // when it happened
}

// AuthEventFilter specifies filtering options for listing auth events.
type AuthEventFilter struct {
	Since    *time.Time     // events after this time
	Until    *time.Time     // events before this time
	Username *string        // filter by username
	Event    *AuthEventType // filter by event type
	Limit    int            // max results (default 100, max 1000)
}

// RecordAuthEvent appends a new entry to the auth trail.
// Generates ID and CreatedAt if not set.
func (s *SQLiteStore) RecordAuthEvent(ctx context.Context, e *AuthEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var detailJSON *string
	if e.Detail != nil {
		data, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshaling event detail: %w", err)
		}
		str := string(data)
		detailJSON = &str
	}

	query := `
		INSERT INTO auth_events (event_id, user_id, username, event, detail_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.UserID,
		e.Username,
		e.Event,
		detailJSON,
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting auth event: %w", err)
	}

	s.logger.Debug("recorded auth event",
		"id", e.ID,
		"event", e.Event,
		"username", e.Username,
	)
	return nil
}

// normalizeEventLimit applies default (100) and cap (1000) to event limit.
func normalizeEventLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// scanAuthEvent scans a row into an AuthEvent.
func scanAuthEvent(scanner interface{ Scan(dest ...any) error }) (AuthEvent, error) {
	var e AuthEvent
	var eventStr, createdStr string
	var detailJSON *string

	if err := scanner.Scan(
		&e.ID,
		&e.UserID,
		&e.Username,
		&eventStr,
		&detailJSON,
		&createdStr,
	); err != nil {
		return e, fmt.Errorf("scanning auth event: %w", err)
	}

	e.Event = AuthEventType(eventStr)
	var err error
	e.CreatedAt, err = time.Parse(time.RFC3339, createdStr)
	if err != nil {
		return e, fmt.Errorf("parsing created_at: %w", err)
	}

	if detailJSON != nil {
		if err := json.Unmarshal([]byte(*detailJSON), &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshaling detail: %w", err)
		}
	}
	return e, nil
}

const authEventsQuery = `
	SELECT event_id, user_id, username, event, detail_json, created_at
	FROM auth_events
	WHERE (? IS NULL OR created_at >= ?)
	  AND (? IS NULL OR created_at <= ?)
	  AND (? IS NULL OR username = ?)
	  AND (? IS NULL OR event = ?)
	ORDER BY created_at DESC, event_id
	LIMIT ?
`

// ListAuthEvents returns auth events matching the filter criteria.
// Results are returned newest first (DESC by creation time).
func (s *SQLiteStore) ListAuthEvents(ctx context.Context, f AuthEventFilter) ([]AuthEvent, error) {
	limit := normalizeEventLimit(f.Limit)

	var sinceStr, untilStr, eventStr *string
	if f.Since != nil {
		str := f.Since.UTC().Format(time.RFC3339)
		sinceStr = &str
	}
	if f.Until != nil {
		str := f.Until.UTC().Format(time.RFC3339)
		untilStr = &str
	}
	if f.Event != nil {
		str := string(*f.Event)
		eventStr = &str
	}

	rows, err := s.db.QueryContext(ctx, authEventsQuery,
		sinceStr, sinceStr,
		untilStr, untilStr,
		f.Username, f.Username,
		eventStr, eventStr,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying auth events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []AuthEvent
	for rows.Next() {
		e, err := scanAuthEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating auth events: %w", err)
	}

	if events == nil {
		events = []AuthEvent{}
	}
	return events, nil
}
