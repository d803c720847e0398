package store

import (
	"math/rand"
	"testing"
	"time"

	"github.com/chatclient/internal/model"
)

const self = model.FlexID("self")

func at(sec int) model.Timestamp {
	return model.NewTimestamp(time.Date(2024, 5, 17, 9, 0, sec, 0, time.UTC))
}

func direct(id string, sec int) model.Message {
	return model.Message{
		ID:          model.FlexID(id),
		Type:        model.MessageTypeText,
		SenderID:    "peer",
		RecipientID: self,
		Content:     "m" + id,
		Timestamp:   at(sec),
	}
}

func TestAppendDedupByID(t *testing.T) {
	s := New(self)
	msg := direct("1", 1)

	key, added := s.Append(msg)
	if !added || key != "user-peer" {
		t.Fatalf("first append: added=%v key=%q", added, key)
	}
	if _, added := s.Append(msg); added {
		t.Fatal("duplicate id must be a no-op")
	}
	// Same id with different content still dedups.
	dup := msg
	dup.Content = "changed"
	if _, added := s.Append(dup); added {
		t.Fatal("duplicate id with different content must be a no-op")
	}
	if got := len(s.Messages("user-peer")); got != 1 {
		t.Fatalf("expected 1 message, got %d", got)
	}
}

func TestAppendOrderingUnderAnyPermutation(t *testing.T) {
	msgs := []model.Message{
		direct("a", 5), direct("b", 1), direct("c", 3),
		direct("d", 4), direct("e", 2),
	}
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		s := New(self)
		perm := rng.Perm(len(msgs))
		for _, i := range perm {
			s.Append(msgs[i])
		}
		got := s.Messages("user-peer")
		if len(got) != len(msgs) {
			t.Fatalf("trial %d: expected %d messages, got %d", trial, len(msgs), len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].Timestamp.Less(got[i-1].Timestamp) {
				t.Fatalf("trial %d: out of order at %d: %v after %v",
					trial, i, got[i].Timestamp, got[i-1].Timestamp)
			}
		}
	}
}

func TestAppendEqualTimestampsKeepInsertionOrder(t *testing.T) {
	s := New(self)
	s.Append(direct("first", 1))
	s.Append(direct("second", 1))
	s.Append(direct("third", 1))

	got := s.Messages("user-peer")
	want := []string{"first", "second", "third"}
	for i, id := range want {
		if got[i].ID != model.FlexID(id) {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestAppendUnknownTimestampSortsLast(t *testing.T) {
	s := New(self)
	broken := direct("broken", 0)
	broken.Timestamp = model.Timestamp{}
	s.Append(broken)
	s.Append(direct("ok", 1))

	got := s.Messages("user-peer")
	if got[0].ID != "ok" || got[1].ID != "broken" {
		t.Fatalf("unknown timestamp must sort last, got %s, %s", got[0].ID, got[1].ID)
	}
}

// Optimistic send race: the provisional entry and the confirmed push must
// reconcile to exactly one canonical entry, never both, never neither.
func TestAppendCorrelationReconciliation(t *testing.T) {
	s := New(self)
	optimistic := model.Message{
		ID:            "tmp-1",
		CorrelationID: "corr-1",
		SenderID:      self,
		RecipientID:   "peer",
		Content:       "hi",
		Timestamp:     at(1),
	}
	s.Append(optimistic)

	confirmed := optimistic
	confirmed.ID = "42"
	if _, added := s.Append(confirmed); !added {
		t.Fatal("confirmed copy must replace the provisional entry")
	}

	got := s.Messages("user-peer")
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 entry, got %d", len(got))
	}
	if got[0].ID != "42" {
		t.Fatalf("expected canonical id 42, got %s", got[0].ID)
	}

	// The provisional copy arriving late (a retry) must now be dropped.
	if _, added := s.Append(optimistic); added {
		t.Fatal("late provisional with confirmed correlation must be dropped")
	}
	if got := len(s.Messages("user-peer")); got != 1 {
		t.Fatalf("expected 1 entry after late provisional, got %d", got)
	}
}

func TestConfirmReplacesProvisional(t *testing.T) {
	s := New(self)
	optimistic := model.Message{
		ID: "tmp-1", SenderID: self, RecipientID: "peer", Content: "hi", Timestamp: at(1),
	}
	s.Append(optimistic)

	confirmed := optimistic
	confirmed.ID = "42"
	s.Confirm("tmp-1", confirmed)

	got := s.Messages("user-peer")
	if len(got) != 1 || got[0].ID != "42" {
		t.Fatalf("expected single entry id 42, got %+v", got)
	}
}

func TestConfirmWhenPushWonTheRace(t *testing.T) {
	s := New(self)
	optimistic := model.Message{
		ID: "tmp-1", SenderID: self, RecipientID: "peer", Content: "hi", Timestamp: at(1),
	}
	s.Append(optimistic)

	// Push-delivered copy lands before the send response.
	confirmed := optimistic
	confirmed.ID = "42"
	confirmed.CorrelationID = ""
	s.Append(confirmed)

	s.Confirm("tmp-1", confirmed)

	got := s.Messages("user-peer")
	if len(got) != 1 || got[0].ID != "42" {
		t.Fatalf("expected single entry id 42, got %+v", got)
	}
}

func TestLoadPageSortsAndDedups(t *testing.T) {
	s := New(self)
	s.LoadPage("user-peer", []model.Message{
		direct("b", 2), direct("a", 1), direct("b", 2), direct("c", 3),
	})

	got := s.Messages("user-peer")
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if got[i].ID != model.FlexID(id) {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestLoadPageKeepsUnconfirmedProvisionals(t *testing.T) {
	s := New(self)
	pending := model.Message{
		ID: "tmp-1", CorrelationID: "corr-1",
		SenderID: self, RecipientID: "peer", Content: "hi", Timestamp: at(9),
	}
	s.Append(pending)

	s.LoadPage("user-peer", []model.Message{direct("1", 1), direct("2", 2)})
	got := s.Messages("user-peer")
	if len(got) != 3 {
		t.Fatalf("in-flight optimistic entry lost by page load: %d entries", len(got))
	}
	if got[2].ID != "tmp-1" {
		t.Fatalf("expected tmp-1 last, got %s", got[2].ID)
	}

	// Once the page carries the confirmed copy, the provisional goes away.
	confirmed := pending
	confirmed.ID = "42"
	s.LoadPage("user-peer", []model.Message{direct("1", 1), confirmed})
	got = s.Messages("user-peer")
	if len(got) != 2 {
		t.Fatalf("expected 2 entries after confirmation, got %d", len(got))
	}
	for _, m := range got {
		if m.ID == "tmp-1" {
			t.Fatal("confirmed provisional still present")
		}
	}
}

func TestRemoveMessageScansAllTimelines(t *testing.T) {
	s := New(self)
	s.Append(direct("1", 1))
	group := model.Message{ID: "2", SenderID: "peer", GroupID: "g1", Timestamp: at(2)}
	s.Append(group)

	s.RemoveMessage("2")
	if len(s.Messages("group-g1")) != 0 {
		t.Fatal("message not removed from group timeline")
	}
	if len(s.Messages("user-peer")) != 1 {
		t.Fatal("unrelated timeline modified")
	}
	// Unknown id is a no-op.
	s.RemoveMessage("nope")
}

func TestClearPurgesConversation(t *testing.T) {
	s := New(self)
	s.Append(direct("1", 1))
	s.IncrementUnread("user-peer")
	s.SetTyping("user-peer", []string{"peer"})
	key := s.SetActive(model.DirectConversation("peer", "peer"))

	s.Clear(key)

	if len(s.Messages(key)) != 0 {
		t.Fatal("timeline not purged")
	}
	if s.Unread(key) != 0 {
		t.Fatal("unread not purged")
	}
	if s.TypingUsers(key) != nil {
		t.Fatal("typing snapshot not purged")
	}
	if _, ok := s.Active(); ok {
		t.Fatal("active pointer not cleared")
	}
}

func TestClearOtherConversationKeepsActive(t *testing.T) {
	s := New(self)
	s.SetActive(model.DirectConversation("peer", "peer"))
	s.Clear("user-other")
	if _, ok := s.Active(); !ok {
		t.Fatal("active pointer dropped for unrelated clear")
	}
}

func TestUnreadCounters(t *testing.T) {
	s := New(self)
	if s.Unread("user-peer") != 0 {
		t.Fatal("unknown key must read as zero")
	}
	s.IncrementUnread("user-peer")
	s.IncrementUnread("user-peer")
	if s.Unread("user-peer") != 2 {
		t.Fatalf("expected 2, got %d", s.Unread("user-peer"))
	}
	s.ClearUnread("user-peer")
	if s.Unread("user-peer") != 0 {
		t.Fatal("clear did not reset counter")
	}
}

func TestTypingSnapshot(t *testing.T) {
	s := New(self)
	s.SetTyping("user-peer", []string{"peer"})
	if got := s.TypingUsers("user-peer"); len(got) != 1 || got[0] != "peer" {
		t.Fatalf("unexpected typing set: %v", got)
	}
	s.SetTyping("user-peer", nil)
	if s.TypingUsers("user-peer") != nil {
		t.Fatal("empty set must clear the snapshot")
	}
}

func TestClearAll(t *testing.T) {
	s := New(self)
	s.Append(direct("1", 1))
	s.IncrementUnread("user-peer")
	s.SetTyping("user-peer", []string{"peer"})
	s.SetActive(model.DirectConversation("peer", "peer"))

	s.ClearAll()

	if len(s.Messages("user-peer")) != 0 || s.Unread("user-peer") != 0 {
		t.Fatal("state survived ClearAll")
	}
	if _, ok := s.Active(); ok {
		t.Fatal("active pointer survived ClearAll")
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := New(self)
	s.Append(direct("1", 1))
	snapshot := s.Messages("user-peer")
	snapshot[0].Content = "mutated"
	if s.Messages("user-peer")[0].Content == "mutated" {
		t.Fatal("snapshot aliases store memory")
	}
}
