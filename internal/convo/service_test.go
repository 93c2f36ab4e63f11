package convo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuedeck/cuedeck/internal/cue"
	"github.com/cuedeck/cuedeck/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
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
	return NewService(s), s
}

func seed(t *testing.T, s *store.Store, requestID, agentID, prompt string) {
	t.Helper()
	if err := s.CreateRequest(&store.CueRequest{RequestID: requestID, AgentID: agentID, Prompt: prompt}); err != nil {
		t.Fatalf("seed %s: %v", requestID, err)
	}
}

func find(cs []Conversation, ctype, id string) *Conversation {
	for i := range cs {
		if cs[i].Type == ctype && cs[i].ID == id {
			return &cs[i]
		}
	}
	return nil
}

func TestListShowsAgentsWithPendingCounts(t *testing.T) {
	svc, s := newTestService(t)
	seed(t, s, "r1", "fox-1", "Proceed?")
	seed(t, s, "r2", "fox-1", "And this?")
	seed(t, s, "r3", "owl-2", "Review?")

	convs, err := svc.List("")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	fox := find(convs, store.ConversationAgent, "fox-1")
	if fox == nil {
		t.Fatal("fox-1 missing from list")
	}
	if fox.PendingCount != 2 {
		t.Fatalf("fox-1 pending = %d, want 2", fox.PendingCount)
	}
	if fox.LastMessage == "" || fox.LastTime == "" {
		t.Fatalf("fox-1 preview missing: %+v", fox)
	}
}

func TestPreviewUsesDisplayNameAndYouPrefix(t *testing.T) {
	svc, s := newTestService(t)
	seed(t, s, "r1", "fox-1", "Proceed?")
	if err := svc.SetDisplayName("fox-1", "Fox"); err != nil {
		t.Fatalf("set display name: %v", err)
	}

	convs, _ := svc.List("")
	fox := find(convs, store.ConversationAgent, "fox-1")
	if fox.DisplayName != "Fox" {
		t.Fatalf("display name not applied: %q", fox.DisplayName)
	}
	if fox.LastMessage != "Fox: Proceed?" {
		t.Fatalf("unexpected preview %q", fox.LastMessage)
	}

	e := cue.NewEngine(s)
	if err := e.SubmitResponse("r1", "Yes", nil, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	convs, _ = svc.List("")
	fox = find(convs, store.ConversationAgent, "fox-1")
	if fox.LastMessage != "You: Yes" {
		t.Fatalf("response preview wrong: %q", fox.LastMessage)
	}
	if fox.PendingCount != 0 {
		t.Fatalf("pending should be 0 after answer, got %d", fox.PendingCount)
	}
}

func TestPreviewTruncation(t *testing.T) {
	svc, s := newTestService(t)
	long := strings.Repeat("x", 80)
	seed(t, s, "r1", "fox-1", long)

	convs, _ := svc.List("")
	fox := find(convs, store.ConversationAgent, "fox-1")
	runes := []rune(fox.LastMessage)
	if len(runes) != 51 || runes[50] != '…' {
		t.Fatalf("truncation wrong: len=%d msg=%q", len(runes), fox.LastMessage)
	}
}

func TestSortPendingFirstThenRecency(t *testing.T) {
	svc, s := newTestService(t)
	seed(t, s, "r1", "idle-agent", "old question")
	seed(t, s, "r2", "busy-agent", "new question")

	// idle-agent answered long ago; busy-agent still pending but older.
	e := cue.NewEngine(s)
	if err := e.SubmitResponse("r1", "done", nil, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.DB().Exec(`UPDATE cue_requests SET created_at = '2026-01-01 08:00:00' WHERE request_id = 'r2'`); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	convs, _ := svc.List("")
	if len(convs) < 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	if convs[0].ID != "busy-agent" {
		t.Fatalf("pending conversation should sort first, got %q", convs[0].ID)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	svc, s := newTestService(t)
	seed(t, s, "r1", "fox-1", "Proceed?")

	if err := svc.Archive([]string{"agent:fox-1"}); err != nil {
		t.Fatalf("archive: %v", err)
	}
	active, _ := svc.List("")
	if find(active, store.ConversationAgent, "fox-1") != nil {
		t.Fatal("archived conversation still in active view")
	}
	archived, _ := svc.List("archived")
	fox := find(archived, store.ConversationAgent, "fox-1")
	if fox == nil {
		t.Fatal("conversation missing from archived view")
	}
	if fox.PendingCount != 1 {
		t.Fatalf("archive dropped pending count: %d", fox.PendingCount)
	}

	if err := svc.Unarchive([]string{"agent:fox-1"}); err != nil {
		t.Fatalf("unarchive: %v", err)
	}
	active, _ = svc.List("")
	fox = find(active, store.ConversationAgent, "fox-1")
	if fox == nil {
		t.Fatal("conversation did not return to active view")
	}
	if fox.PendingCount != 1 {
		t.Fatalf("unarchive dropped pending count: %d", fox.PendingCount)
	}
}

func TestDeleteHidesEverywhere(t *testing.T) {
	svc, s := newTestService(t)
	seed(t, s, "r1", "fox-1", "Proceed?")

	if err := svc.Delete([]string{"agent:fox-1"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, view := range []string{"", "archived", "all"} {
		convs, _ := svc.List(view)
		if find(convs, store.ConversationAgent, "fox-1") != nil {
			t.Fatalf("deleted conversation visible in view %q", view)
		}
	}
}

func TestBadConversationKeyRejected(t *testing.T) {
	svc, _ := newTestService(t)
	for _, key := range []string{"fox-1", "agent:", "robot:fox-1", ""} {
		if err := svc.Archive([]string{key}); err == nil {
			t.Fatalf("key %q should be rejected", key)
		}
	}
}

func TestGroupAggregation(t *testing.T) {
	svc, s := newTestService(t)
	seed(t, s, "r1", "fox-1", "one")
	seed(t, s, "r2", "owl-2", "two")
	seed(t, s, "r3", "owl-2", "three")

	id, err := svc.CreateGroup("pack", []string{"fox-1", "owl-2"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	convs, _ := svc.List("")
	grp := find(convs, store.ConversationGroup, id)
	if grp == nil {
		t.Fatal("group missing from list")
	}
	if grp.PendingCount != 3 {
		t.Fatalf("group pending = %d, want 3", grp.PendingCount)
	}
	if grp.Name != "pack" {
		t.Fatalf("group name %q", grp.Name)
	}

	if err := svc.RenameGroup(id, "wolfpack"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	convs, _ = svc.List("")
	if grp = find(convs, store.ConversationGroup, id); grp.Name != "wolfpack" {
		t.Fatalf("rename not applied: %q", grp.Name)
	}

	// Shrinking membership shrinks the aggregate.
	if err := svc.SetMembers(id, []string{"fox-1"}); err != nil {
		t.Fatalf("set members: %v", err)
	}
	convs, _ = svc.List("")
	if grp = find(convs, store.ConversationGroup, id); grp.PendingCount != 1 {
		t.Fatalf("group pending after member change = %d, want 1", grp.PendingCount)
	}

	// Deleting the group removes it entirely.
	if err := svc.Delete([]string{"group:" + id}); err != nil {
		t.Fatalf("delete group: %v", err)
	}
	convs, _ = svc.List("all")
	if find(convs, store.ConversationGroup, id) != nil {
		t.Fatal("deleted group still listed")
	}
	g, _ := s.GetGroup(id)
	if g != nil {
		t.Fatal("group row survived delete")
	}
}

func TestScope(t *testing.T) {
	svc, _ := newTestService(t)
	ids, err := svc.Scope(store.ConversationAgent, "fox-1")
	if err != nil || len(ids) != 1 || ids[0] != "fox-1" {
		t.Fatalf("agent scope: ids=%v err=%v", ids, err)
	}

	gid, err := svc.CreateGroup("pack", []string{"fox-1", "owl-2"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	ids, err = svc.Scope(store.ConversationGroup, gid)
	if err != nil || len(ids) != 2 {
		t.Fatalf("group scope: ids=%v err=%v", ids, err)
	}

	if _, err := svc.Scope("robot", "x"); err == nil {
		t.Fatal("unknown scope type should error")
	}
}
