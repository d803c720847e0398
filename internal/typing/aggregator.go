// Package typing manages "is typing" announcements in both directions.
//
// Outbound announcements are debounced: the first keystroke emits a
// typing-start, further keystrokes keep resetting a trailing idle timer,
// and only silence (or an actual message send) emits the typing-stop.
// Inbound announcements are applied to the store as-is; expiry of remote
// entries is driven by the remote party's own stop event.
package typing

import (
	"sync"
	"time"

	"github.com/chatclient/internal/conversation"
	"github.com/chatclient/internal/logger"
	"github.com/chatclient/internal/model"
	"github.com/chatclient/internal/store"
	"github.com/chatclient/internal/transport"
)

// Sender is the transport slice the aggregator needs.
type Sender interface {
	Send(destination string, payload any) bool
}

type state struct {
	conv  model.Conversation
	timer *time.Timer
	gen   uint64
}

// Aggregator owns the per-conversation typing state machines. Timers carry
// the conversation key and a generation counter so a late-firing timer for
// a superseded state is a no-op.
type Aggregator struct {
	store *store.Store
	send  Sender
	idle  time.Duration

	mu     sync.Mutex
	states map[string]*state
}

func New(st *store.Store, send Sender, idle time.Duration) *Aggregator {
	if idle <= 0 {
		idle = 3 * time.Second
	}
	return &Aggregator{
		store:  st,
		send:   send,
		idle:   idle,
		states: make(map[string]*state),
	}
}

// Activity reports local input activity in a conversation. The first call
// enters typing state and emits typing-start; every call resets the
// trailing idle timer.
func (a *Aggregator) Activity(conv model.Conversation) {
	key := conversation.Key(conv)

	a.mu.Lock()
	st, typing := a.states[key]
	if !typing {
		st = &state{conv: conv}
		a.states[key] = st
	} else {
		st.timer.Stop()
	}
	st.gen++
	gen := st.gen
	st.timer = time.AfterFunc(a.idle, func() { a.idleFired(key, gen) })
	a.mu.Unlock()

	if !typing {
		a.emit(conv, true)
	}
}

// idleFired is the trailing timer callback. It re-validates relevance: a
// newer keystroke or a MessageSent has bumped the generation, making this
// firing stale.
func (a *Aggregator) idleFired(key string, gen uint64) {
	a.mu.Lock()
	st, ok := a.states[key]
	if !ok || st.gen != gen {
		a.mu.Unlock()
		return
	}
	delete(a.states, key)
	conv := st.conv
	a.mu.Unlock()

	a.emit(conv, false)
}

// MessageSent emits an immediate typing-stop once content is actually
// sent, without waiting for the idle timeout. No-op if not typing.
func (a *Aggregator) MessageSent(conv model.Conversation) {
	key := conversation.Key(conv)

	a.mu.Lock()
	st, ok := a.states[key]
	if ok {
		st.timer.Stop()
		st.gen++
		delete(a.states, key)
	}
	a.mu.Unlock()

	if ok {
		a.emit(conv, false)
	}
}

// ApplyRemote applies an inbound typing announcement to the store
// snapshot for the relevant conversation.
func (a *Aggregator) ApplyRemote(ev model.TypingEvent) {
	var key string
	if ev.GroupID != "" {
		key = conversation.GroupKey(ev.GroupID)
	} else {
		key = conversation.DirectKey(ev.SenderID)
	}
	a.store.SetTyping(key, ev.TypingUsers)
}

// Reset cancels all outbound typing state without emitting stop events.
// Used on disconnect and session teardown.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, st := range a.states {
		st.timer.Stop()
		st.gen++
		delete(a.states, key)
	}
}

func (a *Aggregator) emit(conv model.Conversation, isTyping bool) {
	var ok bool
	if conv.Kind == model.ConversationGroup {
		ok = a.send.Send(transport.DestGroupTyping, model.GroupTypingIndicator{
			GroupID:  conv.GroupID,
			IsTyping: isTyping,
		})
	} else {
		ok = a.send.Send(transport.DestTyping, model.TypingIndicator{
			RecipientUsername: conv.Username,
			IsTyping:          isTyping,
		})
	}
	if !ok {
		logger.Debugf("typing indicator dropped (not connected), conv=%s typing=%v",
			conversation.Key(conv), isTyping)
	}
}
