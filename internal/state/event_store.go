// ./internal/state/event_store.go
package state

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/minimum-finance/strategy-engine/internal/types"
)

// EventStore persists strategy events through the global pool. The zero
// value is ready to use once InitDB has run.
type EventStore struct{}

// SaveEvent writes one strategy event to the database.
func (EventStore) SaveEvent(event types.Event) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	attrsJSON, err := json.Marshal(event.Attrs)
	if err != nil {
		return fmt.Errorf("failed to marshal event attrs: %w", err)
	}

	query := `
		INSERT INTO strategy_events (event_id, event_type, chain_height, event_timestamp, attrs)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING;
	`
	if _, err := DB.Exec(query, event.ID, string(event.Type), event.Height, event.Time, attrsJSON); err != nil {
		return fmt.Errorf("failed to save strategy event: %w", err)
	}
	return nil
}

// RecentEvents loads the newest events from the database, newest first.
func RecentEvents(limit int) ([]types.Event, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT event_id, event_type, chain_height, event_timestamp, attrs
		FROM strategy_events
		ORDER BY event_timestamp DESC
		LIMIT $1;
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy events: %w", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		var event types.Event
		var eventType string
		var attrsJSON []byte
		if err := rows.Scan(&event.ID, &eventType, &event.Height, &event.Time, &attrsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan strategy event: %w", err)
		}
		event.Type = types.EventType(eventType)
		if len(attrsJSON) > 0 {
			if err := json.Unmarshal(attrsJSON, &event.Attrs); err != nil {
				log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to unmarshal event attrs")
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
