// Package queue manages per-conversation drafts of outgoing messages.
// Messages wait here until the operator recalls them into the composer or
// a consumer drains them for delivery.
package queue

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/cuedeck/cuedeck/internal/store"
)

var (
	ErrEmptyMessage    = errors.New("message has no text and no images")
	ErrNotFound        = errors.New("queued message not found")
	ErrIndexOutOfRange = errors.New("queue index out of range")
)

type Manager struct {
	store *store.Store
}

func NewManager(s *store.Store) *Manager {
	return &Manager{store: s}
}

// Enqueue appends a message to a conversation's queue and returns the
// stored entry. A message must carry text or at least one image.
func (m *Manager) Enqueue(ctype, cid, text string, images []store.Attachment) (*store.QueuedMessage, error) {
	if strings.TrimSpace(text) == "" && len(images) == 0 {
		return nil, ErrEmptyMessage
	}
	msg := &store.QueuedMessage{
		ID:               uuid.NewString(),
		ConversationType: ctype,
		ConversationID:   cid,
		Text:             text,
		Images:           images,
	}
	if err := m.store.EnqueueMessage(msg); err != nil {
		return nil, err
	}
	return m.store.GetQueued(msg.ID)
}

// List returns a conversation's queue in send order.
func (m *Manager) List(ctype, cid string) ([]store.QueuedMessage, error) {
	return m.store.ListQueue(ctype, cid)
}

// Remove deletes a queued message. Removing an id that is already gone
// succeeds; the end state is the same.
func (m *Manager) Remove(id string) error {
	_, err := m.store.RemoveQueued(id)
	return err
}

// Recall removes a queued message and hands it back so the operator can
// edit it in the composer. Unlike Remove, recalling a missing id is an
// error: there is nothing to hand back.
func (m *Manager) Recall(id string) (*store.QueuedMessage, error) {
	msg, err := m.store.GetQueued(id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrNotFound
	}
	if _, err := m.store.RemoveQueued(id); err != nil {
		return nil, err
	}
	return msg, nil
}

// Reorder moves the message at index from to index to within a
// conversation's queue and persists the resulting order for every entry.
func (m *Manager) Reorder(ctype, cid string, from, to int) error {
	msgs, err := m.store.ListQueue(ctype, cid)
	if err != nil {
		return err
	}
	if from < 0 || from >= len(msgs) || to < 0 || to >= len(msgs) {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}

	moved := msgs[from]
	msgs = append(msgs[:from], msgs[from+1:]...)
	rest := append([]store.QueuedMessage{}, msgs[to:]...)
	msgs = append(append(msgs[:to], moved), rest...)

	ids := make([]string, len(msgs))
	for i, msg := range msgs {
		ids[i] = msg.ID
	}
	return m.store.SetQueuePositions(ids)
}

// Consume removes the listed messages and returns the ids that actually
// existed. Callers deliver the returned set; ids consumed by a concurrent
// caller are simply absent from the result.
func (m *Manager) Consume(ids []string) ([]string, error) {
	var consumed []string
	for _, id := range ids {
		ok, err := m.store.RemoveQueued(id)
		if err != nil {
			return consumed, err
		}
		if ok {
			consumed = append(consumed, id)
		}
	}
	return consumed, nil
}
