package domain_test

import (
	"testing"
	"time"

	"kindred/internal/domain"
)

func msg(id string, at time.Time) domain.Message {
	return domain.Message{ID: id, MatchID: "m", CreatedAt: at}
}

func TestConversation_DedupAndOrder(t *testing.T) {
	base := time.Now()
	c := domain.NewConversation("m")

	if !c.Add(msg("b", base.Add(2*time.Second))) {
		t.Fatal("first add rejected")
	}
	if !c.Add(msg("a", base.Add(1*time.Second))) {
		t.Fatal("second add rejected")
	}
	if c.Add(msg("a", base.Add(5*time.Second))) {
		t.Fatal("duplicate id accepted")
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}

	got := c.Messages()
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("order = [%s %s], want [a b]", got[0].ID, got[1].ID)
	}
}

func TestConversation_Remove(t *testing.T) {
	c := domain.NewConversation("m")
	c.Add(msg("a", time.Now()))
	c.Remove("a")
	c.Remove("a") // second remove is a no-op
	if c.Len() != 0 {
		t.Fatalf("len = %d, want 0", c.Len())
	}

	// The id can be re-added after removal (e.g. undo of a local delete).
	if !c.Add(msg("a", time.Now())) {
		t.Fatal("re-add after remove rejected")
	}
}

func TestConversation_SnapshotIsCopy(t *testing.T) {
	c := domain.NewConversation("m")
	c.Add(msg("a", time.Now()))

	snap := c.Messages()
	snap[0].ID = "mutated"

	if c.Messages()[0].ID != "a" {
		t.Fatal("snapshot mutation leaked into conversation state")
	}
}
