// Package store holds the per-conversation message timelines plus the
// typing and unread state derived from them.
//
// The store is the single owner of message state: timelines are ordered by
// logical timestamp (unknown timestamps last, ties keep insertion order)
// and deduplicated by message id. Duplicate and out-of-order delivery from
// the network is absorbed here, never treated as an error. All operations
// are total: unknown conversation keys behave as an empty timeline.
package store

import (
	"sort"
	"sync"

	"github.com/chatclient/internal/conversation"
	"github.com/chatclient/internal/model"
)

type Store struct {
	mu     sync.RWMutex
	selfID model.FlexID

	messages map[string][]model.Message
	typing   map[string][]string
	unread   map[string]int

	active    model.Conversation
	activeKey string
}

// New creates an empty store for the given local actor. The actor id is
// needed to derive direct-conversation keys from message perspective.
func New(selfID model.FlexID) *Store {
	return &Store{
		selfID:   selfID,
		messages: make(map[string][]model.Message),
		typing:   make(map[string][]string),
		unread:   make(map[string]int),
	}
}

// SelfID returns the local actor id the store was built for.
func (s *Store) SelfID() model.FlexID { return s.selfID }

// Append inserts a message into its conversation timeline, resolved via
// conversation keying. Returns the key and whether the timeline changed.
//
// Dedup rules, in order:
//   - a message with the same id already present: no-op;
//   - a confirmed message whose correlation token matches a provisional
//     entry: the provisional entry is replaced in place;
//   - a provisional message whose token matches an already-confirmed
//     entry: dropped (the confirmation won the race).
func (s *Store) Append(msg model.Message) (string, bool) {
	key := conversation.KeyForMessage(s.selfID, &msg)
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.messages[key]
	for i := range list {
		if list[i].ID == msg.ID {
			return key, false
		}
	}
	if msg.CorrelationID != "" {
		for i := range list {
			if list[i].CorrelationID != msg.CorrelationID {
				continue
			}
			if list[i].Provisional() && !msg.Provisional() {
				list[i] = msg
				s.messages[key] = resort(list)
				return key, true
			}
			if !list[i].Provisional() && msg.Provisional() {
				return key, false
			}
		}
	}

	s.messages[key] = resort(append(list, msg))
	return key, true
}

// Confirm replaces the provisional entry tempID with the server-confirmed
// message. If the confirmed id is already present (the push beat the send
// response), the provisional entry is simply dropped.
func (s *Store) Confirm(tempID model.FlexID, confirmed model.Message) {
	key := conversation.KeyForMessage(s.selfID, &confirmed)
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.messages[key]
	confirmedPresent := false
	for i := range list {
		if list[i].ID == confirmed.ID {
			confirmedPresent = true
			break
		}
	}
	kept := list[:0]
	for i := range list {
		if list[i].ID == tempID {
			continue
		}
		kept = append(kept, list[i])
	}
	if !confirmedPresent {
		kept = append(kept, confirmed)
	}
	s.messages[key] = resort(kept)
}

// LoadPage replaces a conversation's timeline with a fetched history page,
// applying the same sort/dedup rules. Provisional entries not yet covered
// by the page are carried over so an in-flight optimistic send is never
// lost to a concurrent history load.
func (s *Store) LoadPage(key string, msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[model.FlexID]struct{}, len(msgs))
	tokens := make(map[string]struct{}, len(msgs))
	fresh := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		if m.CorrelationID != "" {
			tokens[m.CorrelationID] = struct{}{}
		}
		fresh = append(fresh, m)
	}
	for _, m := range s.messages[key] {
		if !m.Provisional() {
			continue
		}
		if m.CorrelationID != "" {
			if _, confirmed := tokens[m.CorrelationID]; confirmed {
				continue
			}
		}
		fresh = append(fresh, m)
	}
	s.messages[key] = resort(fresh)
}

// Messages returns a snapshot of a conversation's timeline.
func (s *Store) Messages(key string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.messages[key]
	out := make([]model.Message, len(list))
	copy(out, list)
	return out
}

// ContainsMessage reports whether the timeline already holds the id.
func (s *Store) ContainsMessage(key string, id model.FlexID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages[key] {
		if m.ID == id {
			return true
		}
	}
	return false
}

// RemoveMessage removes the message from whichever timeline holds it.
// Membership is not indexed separately, so this scans all timelines;
// deletions are rare compared to appends.
func (s *Store) RemoveMessage(id model.FlexID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, list := range s.messages {
		kept := list[:0]
		for i := range list {
			if list[i].ID == id {
				continue
			}
			kept = append(kept, list[i])
		}
		s.messages[key] = kept
	}
}

// Clear purges a conversation: timeline, unread counter, typing snapshot,
// and the active pointer if it referenced this key.
func (s *Store) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, key)
	delete(s.unread, key)
	delete(s.typing, key)
	if s.activeKey == key {
		s.active = model.Conversation{}
		s.activeKey = ""
	}
}

// ClearAll wipes every timeline, counter and pointer. Used on logout and
// on the moderation interrupt.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make(map[string][]model.Message)
	s.typing = make(map[string][]string)
	s.unread = make(map[string]int)
	s.active = model.Conversation{}
	s.activeKey = ""
}

// SetTyping stores the latest typing-user snapshot for a conversation.
// The store holds snapshots only; expiry timers belong to the typing
// aggregator.
func (s *Store) SetTyping(key string, users []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(users) == 0 {
		delete(s.typing, key)
		return
	}
	cp := make([]string, len(users))
	copy(cp, users)
	s.typing[key] = cp
}

// TypingUsers returns the current typing set for a conversation.
func (s *Store) TypingUsers(key string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.typing[key]
	if len(list) == 0 {
		return nil
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// IncrementUnread bumps the unread counter for a conversation.
func (s *Store) IncrementUnread(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread[key]++
}

// ClearUnread resets the unread counter for a conversation.
func (s *Store) ClearUnread(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unread, key)
}

// Unread returns the unread counter for a conversation.
func (s *Store) Unread(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread[key]
}

// SetActive marks a conversation as the active one and returns its key.
func (s *Store) SetActive(conv model.Conversation) string {
	key := conversation.Key(conv)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = conv
	s.activeKey = key
	return key
}

// ClearActive drops the active-conversation pointer.
func (s *Store) ClearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = model.Conversation{}
	s.activeKey = ""
}

// Active returns the active conversation, if any.
func (s *Store) Active() (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.activeKey != ""
}

// ActiveKey returns the canonical key of the active conversation ("" if none).
func (s *Store) ActiveKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeKey
}

// resort orders a timeline ascending by logical timestamp. The sort is
// stable so equal (and unknown) timestamps keep their insertion order.
func resort(list []model.Message) []model.Message {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.Less(list[j].Timestamp)
	})
	return list
}
