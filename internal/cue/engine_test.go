package cue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuedeck/cuedeck/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
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
	return NewEngine(s), s
}

func seed(t *testing.T, s *store.Store, requestID, agentID, prompt string) {
	t.Helper()
	if err := s.CreateRequest(&store.CueRequest{RequestID: requestID, AgentID: agentID, Prompt: prompt}); err != nil {
		t.Fatalf("seed %s: %v", requestID, err)
	}
}

func TestSubmitResponseCompletesRequest(t *testing.T) {
	e, s := newTestEngine(t)
	seed(t, s, "r1", "fox-1", "Proceed?")

	if err := e.SubmitResponse("r1", "Yes", nil, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	r, err := s.GetRequest("r1")
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if r.Status != store.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", r.Status)
	}

	resp, err := s.GetResponse("r1")
	if err != nil {
		t.Fatalf("get response: %v", err)
	}
	p := DecodeResponse(resp.ResponseJSON)
	if p.Text != "Yes" {
		t.Fatalf("unexpected answer %q", p.Text)
	}
	if resp.Cancelled {
		t.Fatal("submit marked as cancelled")
	}
}

func TestResubmitIsSilentAndKeepsFirstAnswer(t *testing.T) {
	e, s := newTestEngine(t)
	seed(t, s, "r1", "fox-1", "Proceed?")

	if err := e.SubmitResponse("r1", "Yes", nil, nil); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	// A second submit to a terminal request reports success and changes nothing.
	if err := e.SubmitResponse("r1", "Actually no", nil, nil); err != nil {
		t.Fatalf("resubmit errored: %v", err)
	}

	resp, _ := s.GetResponse("r1")
	if p := DecodeResponse(resp.ResponseJSON); p.Text != "Yes" {
		t.Fatalf("first answer lost: %q", p.Text)
	}
	r, _ := s.GetRequest("r1")
	if r.Status != store.StatusCompleted {
		t.Fatalf("status moved: %s", r.Status)
	}
}

func TestCancelRequest(t *testing.T) {
	e, s := newTestEngine(t)
	seed(t, s, "r1", "fox-1", "Proceed?")

	if err := e.CancelRequest("r1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	r, _ := s.GetRequest("r1")
	if r.Status != store.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", r.Status)
	}
	resp, _ := s.GetResponse("r1")
	if !resp.Cancelled {
		t.Fatal("response row not marked cancelled")
	}

	// Cancelling after an answer landed does not erase the answer.
	seed(t, s, "r2", "fox-1", "Another?")
	if err := e.SubmitResponse("r2", "Yes", nil, nil); err != nil {
		t.Fatalf("submit r2: %v", err)
	}
	if err := e.CancelRequest("r2"); err != nil {
		t.Fatalf("late cancel errored: %v", err)
	}
	resp, _ = s.GetResponse("r2")
	if resp.Cancelled {
		t.Fatal("late cancel overwrote the stored answer")
	}
}

func TestBatchRespond(t *testing.T) {
	e, s := newTestEngine(t)
	seed(t, s, "r1", "fox-1", "one")
	seed(t, s, "r2", "fox-1", "two")
	seed(t, s, "r3", "owl-2", "three")

	if err := e.BatchRespond([]string{"r1", "r2", "r3"}, "approved", nil, nil); err != nil {
		t.Fatalf("batch respond: %v", err)
	}
	for _, id := range []string{"r1", "r2", "r3"} {
		r, _ := s.GetRequest(id)
		if r.Status != store.StatusCompleted {
			t.Fatalf("%s not completed", id)
		}
		resp, _ := s.GetResponse(id)
		if p := DecodeResponse(resp.ResponseJSON); p.Text != "approved" {
			t.Fatalf("%s missing batch answer", id)
		}
	}

	// Empty batch is a no-op.
	if err := e.BatchRespond(nil, "x", nil, nil); err != nil {
		t.Fatalf("empty batch errored: %v", err)
	}
}

func TestSubmitWithImagesAndMentions(t *testing.T) {
	e, s := newTestEngine(t)
	seed(t, s, "r1", "fox-1", "Which screenshot?")

	images := []store.Attachment{{Name: "a.png", MediaType: "image/png", Data: "aGk="}}
	if err := e.SubmitResponse("r1", "this one", images, []string{"owl-2"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	resp, _ := s.GetResponse("r1")
	p := DecodeResponse(resp.ResponseJSON)
	if len(p.Images) != 1 || p.Images[0].Name != "a.png" {
		t.Fatalf("images lost: %+v", p.Images)
	}
	if len(p.Mentions) != 1 || p.Mentions[0] != "owl-2" {
		t.Fatalf("mentions lost: %+v", p.Mentions)
	}
}

func TestPendingFilter(t *testing.T) {
	e, s := newTestEngine(t)
	seed(t, s, "r1", "fox-1", "one")
	seed(t, s, "r2", "owl-2", "two")
	if err := e.SubmitResponse("r2", "done", nil, nil); err != nil {
		t.Fatalf("submit r2: %v", err)
	}

	all, err := e.Pending("")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(all) != 1 || all[0].RequestID != "r1" {
		t.Fatalf("unexpected pending set %+v", all)
	}
	scoped, err := e.Pending("owl-2")
	if err != nil {
		t.Fatalf("pending scoped: %v", err)
	}
	if len(scoped) != 0 {
		t.Fatalf("owl-2 should have nothing pending: %+v", scoped)
	}
}

func TestDecodeResponseTolerantOfGarbage(t *testing.T) {
	p := DecodeResponse("not json at all")
	if p.Text != "not json at all" {
		t.Fatalf("raw text not preserved: %q", p.Text)
	}
}
