package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// EnqueueMessage appends a drafted message to its conversation's queue.
// Position stays NULL so fresh entries sort after any reordered ones.
func (s *Store) EnqueueMessage(m *QueuedMessage) error {
	images := m.Images
	if images == nil {
		images = []Attachment{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("enqueue message: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO message_queue (id, conversation_type, conversation_id, text, images)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationType, m.ConversationID, m.Text, string(imagesJSON))
	if err != nil {
		return fmt.Errorf("enqueue message: %w", err)
	}
	return nil
}

// rowid breaks created_at ties in insertion order; ids are UUIDs and do
// not sort chronologically.
const queueOrder = ` ORDER BY CASE WHEN position IS NULL THEN 1 ELSE 0 END, position ASC, created_at ASC, rowid ASC`

func scanQueued(row interface{ Scan(...any) error }) (*QueuedMessage, error) {
	var m QueuedMessage
	var imagesJSON string
	var position *int
	if err := row.Scan(&m.ID, &m.ConversationType, &m.ConversationID, &m.Text, &imagesJSON, &m.CreatedAt, &position); err != nil {
		return nil, err
	}
	m.Position = position
	if err := json.Unmarshal([]byte(imagesJSON), &m.Images); err != nil {
		m.Images = nil
	}
	return &m, nil
}

// ListQueue returns a conversation's queued messages in send order:
// explicit positions first, then insertion order.
func (s *Store) ListQueue(ctype, cid string) ([]QueuedMessage, error) {
	rows, err := s.db.Query(`SELECT id, conversation_type, conversation_id, text, images, created_at, position
		FROM message_queue WHERE conversation_type = ? AND conversation_id = ?`+queueOrder, ctype, cid)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var out []QueuedMessage
	for rows.Next() {
		m, err := scanQueued(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// GetQueued returns one queued message by id, or nil if not found.
func (s *Store) GetQueued(id string) (*QueuedMessage, error) {
	m, err := scanQueued(s.db.QueryRow(`SELECT id, conversation_type, conversation_id, text, images, created_at, position
		FROM message_queue WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queued: %w", err)
	}
	return m, nil
}

// RemoveQueued deletes a queue entry by id and reports whether a row existed.
func (s *Store) RemoveQueued(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM message_queue WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove queued: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetQueuePositions rewrites positions so the given ids sort in the given
// order. Runs in one transaction.
func (s *Store) SetQueuePositions(ids []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("set queue positions: %w", err)
	}
	defer tx.Rollback()

	for i, id := range ids {
		if _, err := tx.Exec(`UPDATE message_queue SET position = ? WHERE id = ?`, i, id); err != nil {
			return fmt.Errorf("set queue positions: %w", err)
		}
	}
	return tx.Commit()
}
