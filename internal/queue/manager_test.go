package queue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuedeck/cuedeck/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "cuedeck.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return NewManager(s)
}

func ids(msgs []store.QueuedMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestEnqueueRejectsEmptyMessage(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Enqueue("agent", "fox-1", "", nil); err != ErrEmptyMessage {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := m.Enqueue("agent", "fox-1", "   ", nil); err != ErrEmptyMessage {
		t.Fatalf("whitespace-only text should be rejected, got %v", err)
	}
	// An image-only message is fine.
	msg, err := m.Enqueue("agent", "fox-1", "", []store.Attachment{{Data: "aGk="}})
	if err != nil {
		t.Fatalf("image-only enqueue: %v", err)
	}
	if msg.ID == "" || msg.CreatedAt == "" {
		t.Fatalf("stored entry incomplete: %+v", msg)
	}
}

func TestReorderTwoElements(t *testing.T) {
	m := newTestManager(t)
	a, err := m.Enqueue("agent", "fox-1", "A", nil)
	if err != nil {
		t.Fatalf("enqueue A: %v", err)
	}
	b, err := m.Enqueue("agent", "fox-1", "B", nil)
	if err != nil {
		t.Fatalf("enqueue B: %v", err)
	}

	// Moving the head behind the second entry yields [B A].
	if err := m.Reorder("agent", "fox-1", 0, 1); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	msgs, err := m.List("agent", "fox-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := ids(msgs)
	if len(got) != 2 || got[0] != b.ID || got[1] != a.ID {
		t.Fatalf("expected [B A], got %v", got)
	}
}

func TestReorderBounds(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Enqueue("agent", "fox-1", "only", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	for _, c := range [][2]int{{-1, 0}, {0, 1}, {5, 0}, {0, -2}} {
		if err := m.Reorder("agent", "fox-1", c[0], c[1]); err != ErrIndexOutOfRange {
			t.Fatalf("from=%d to=%d: expected ErrIndexOutOfRange, got %v", c[0], c[1], err)
		}
	}
	// Same-index move is a no-op.
	if err := m.Reorder("agent", "fox-1", 0, 0); err != nil {
		t.Fatalf("no-op reorder errored: %v", err)
	}
}

func TestReorderMiddleOfFive(t *testing.T) {
	m := newTestManager(t)
	var queued []string
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		msg, err := m.Enqueue("agent", "fox-1", text, nil)
		if err != nil {
			t.Fatalf("enqueue %s: %v", text, err)
		}
		queued = append(queued, msg.ID)
	}

	// Move "e" (index 4) to index 1: a e b c d.
	if err := m.Reorder("agent", "fox-1", 4, 1); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	msgs, _ := m.List("agent", "fox-1")
	want := []string{queued[0], queued[4], queued[1], queued[2], queued[3]}
	got := ids(msgs)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order diverges at %d: got %v want %v", i, got, want)
		}
	}
}

func TestRecallHandsBackTheMessage(t *testing.T) {
	m := newTestManager(t)
	msg, err := m.Enqueue("agent", "fox-1", "draft text", []store.Attachment{{Name: "x.png", Data: "aGk="}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := m.Recall(msg.ID)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if got.Text != "draft text" || len(got.Images) != 1 {
		t.Fatalf("recalled content wrong: %+v", got)
	}

	msgs, _ := m.List("agent", "fox-1")
	if len(msgs) != 0 {
		t.Fatalf("recalled entry still queued: %+v", msgs)
	}

	if _, err := m.Recall(msg.ID); err != ErrNotFound {
		t.Fatalf("recalling a gone id: expected ErrNotFound, got %v", err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	msg, err := m.Enqueue("agent", "fox-1", "bye", nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := m.Remove(msg.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := m.Remove(msg.ID); err != nil {
		t.Fatalf("second remove should succeed: %v", err)
	}
}

func TestConsumeReportsWhatExisted(t *testing.T) {
	m := newTestManager(t)
	a, _ := m.Enqueue("agent", "fox-1", "a", nil)
	b, _ := m.Enqueue("agent", "fox-1", "b", nil)

	consumed, err := m.Consume([]string{a.ID, "ghost", b.ID})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(consumed) != 2 || consumed[0] != a.ID || consumed[1] != b.ID {
		t.Fatalf("unexpected consumed set %v", consumed)
	}

	msgs, _ := m.List("agent", "fox-1")
	if len(msgs) != 0 {
		t.Fatalf("queue not drained: %+v", msgs)
	}
}
