package conversation

import (
	"testing"

	"github.com/chatclient/internal/model"
)

func TestKeyGroup(t *testing.T) {
	conv := model.GroupConversation("17", "devs")
	if got := Key(conv); got != "group-17" {
		t.Fatalf("expected group-17, got %q", got)
	}
}

func TestKeyDirect(t *testing.T) {
	conv := model.DirectConversation("bob-id", "bob")
	if got := Key(conv); got != "user-bob-id" {
		t.Fatalf("expected user-bob-id, got %q", got)
	}
}

// Both parties of a direct chat must derive the same key for the same
// message, despite seeing it from opposite sender/recipient perspectives.
func TestKeyForMessageDirectSymmetry(t *testing.T) {
	msg := &model.Message{ID: "1", SenderID: "alice", RecipientID: "bob"}

	aliceView := KeyForMessage("alice", msg)
	bobView := KeyForMessage("bob", msg)

	if aliceView != "user-bob" {
		t.Fatalf("sender perspective: expected user-bob, got %q", aliceView)
	}
	if bobView != "user-alice" {
		t.Fatalf("recipient perspective: expected user-alice, got %q", bobView)
	}

	// The reply keys back to the same conversation on both sides.
	reply := &model.Message{ID: "2", SenderID: "bob", RecipientID: "alice"}
	if KeyForMessage("alice", reply) != aliceView {
		t.Fatal("alice sees reply in a different conversation")
	}
	if KeyForMessage("bob", reply) != bobView {
		t.Fatal("bob sees reply in a different conversation")
	}
}

func TestKeyForMessageGroupIgnoresPerspective(t *testing.T) {
	msg := &model.Message{ID: "1", SenderID: "alice", GroupID: "17"}
	if KeyForMessage("alice", msg) != "group-17" {
		t.Fatal("group key must come from the group id")
	}
	if KeyForMessage("bob", msg) != "group-17" {
		t.Fatal("group key must not depend on the viewer")
	}
}

func TestKeyTotalOnEmptyDescriptor(t *testing.T) {
	// Degenerate input still yields a deterministic key, never a panic.
	if got := Key(model.Conversation{}); got != "user-" {
		t.Fatalf("expected user-, got %q", got)
	}
	if got := KeyForMessage("", &model.Message{}); got != "user-" {
		t.Fatalf("expected user-, got %q", got)
	}
}
