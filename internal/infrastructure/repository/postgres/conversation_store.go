package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

const (
	// Turns older than this stop feeding coreference resolution.
	defaultMemoryWindow = 24 * time.Hour

	appendStripes = 32
)

// ConversationStore keeps the conversation log in Postgres. Appends for
// one conversation are serialized through a striped mutex so user and
// assistant turns land in write order.
type ConversationStore struct {
	db     *sql.DB
	window time.Duration
	locks  [appendStripes]sync.Mutex
}

func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db, window: defaultMemoryWindow}
}

func (s *ConversationStore) Recent(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	cutoff := time.Now().UTC().Add(-s.window)

	rows, err := s.db.QueryContext(ctx, `
SELECT id, conversation_id, role, content, created_at
FROM conversation_turns
WHERE conversation_id = $1 AND created_at >= $2
ORDER BY created_at DESC
LIMIT $3
`, conversationID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ConversationTurn, 0, limit)
	for rows.Next() {
		var turn domain.ConversationTurn
		if err := rows.Scan(
			&turn.ID,
			&turn.ConversationID,
			&turn.Role,
			&turn.Text,
			&turn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *ConversationStore) Append(ctx context.Context, turn domain.ConversationTurn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	lock := &s.locks[stripeFor(turn.ConversationID)]
	lock.Lock()
	defer lock.Unlock()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO conversation_turns (id, conversation_id, role, content, created_at)
VALUES ($1,$2,$3,$4,$5)
`, turn.ID, turn.ConversationID, turn.Role, turn.Text, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func stripeFor(conversationID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(conversationID))
	return int(h.Sum32() % appendStripes)
}
