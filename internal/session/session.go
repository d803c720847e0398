// Package session is the process-root container of the client: it owns the
// store, the transport connection, the backend API client, the sync
// reconciler and the typing aggregator, and wires inbound pushes and
// outbound actions between them.
//
// Nothing here is a global: every Session is a self-contained state
// container, constructed explicitly and passed by reference.
package session

import (
	"errors"
	"sync"

	"github.com/chatclient/internal/api"
	"github.com/chatclient/internal/config"
	"github.com/chatclient/internal/conversation"
	"github.com/chatclient/internal/logger"
	"github.com/chatclient/internal/model"
	"github.com/chatclient/internal/reconcile"
	"github.com/chatclient/internal/store"
	"github.com/chatclient/internal/transport"
	"github.com/chatclient/internal/typing"
)

// Hooks are the presentation-layer callbacks. All optional; the session
// treats them as black boxes and never blocks on them.
type Hooks struct {
	// Notify surfaces a user-facing notification (kind: message, system,
	// broadcast, group).
	Notify func(kind, title, message string)
	// OnStatusChange fires on presence updates for other users.
	OnStatusChange func(userID model.FlexID, status string)
	// OnGroupsChanged fires when group membership changed server-side and
	// the group list should be refetched.
	OnGroupsChanged func()
	// OnAuthLapse fires once per session when the backend reports the
	// session expired (redirect/sign-out side effect).
	OnAuthLapse func()
	// OnForcedLogout fires when a moderation interrupt tears the session
	// down. All local state is already purged when it runs.
	OnForcedLogout func(reason string)
}

// Session binds one authenticated user to one transport connection and one
// set of local stores.
type Session struct {
	cfg   *config.Config
	user  model.User
	hooks Hooks

	store     *store.Store
	api       *api.Client
	transport *transport.Client
	rec       *reconcile.Reconciler
	typing    *typing.Aggregator

	mu         sync.Mutex
	authLapsed bool
	tornDown   bool
}

func New(cfg *config.Config, user model.User, hooks Hooks) *Session {
	s := &Session{
		cfg:   cfg,
		user:  user,
		hooks: hooks,
		store: store.New(user.ID),
		api:   api.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout),
	}
	s.transport = transport.NewClient(transport.Options{
		URL:            cfg.WSURL,
		WriteTimeout:   cfg.WSWriteTimeout,
		PongTimeout:    cfg.WSPongTimeout,
		MaxMessageSize: cfg.WSMaxMessageSize,
		SendBufferSize: cfg.WSSendBufferSize,
		OnClose: func() {
			// No automatic reconnect: the caller owns retry policy.
			logger.Error("session: realtime channel lost")
		},
	})
	s.rec = reconcile.New(s.store, s.api, cfg.SyncInterval, cfg.SyncPageSize)
	s.rec.OnError = s.classifyError
	s.typing = typing.New(s.store, s.transport, cfg.TypingIdleTimeout)
	return s
}

// Store exposes the timeline store for read access by the presentation
// layer.
func (s *Session) Store() *store.Store { return s.store }

// User returns the local actor.
func (s *Session) User() model.User { return s.user }

// Connected reports whether the realtime channel is up.
func (s *Session) Connected() bool { return s.transport.IsConnected() }

// Connect brings the realtime channel up and installs the session-wide
// subscriptions. Idempotent while connecting/connected; errors surface
// through onError only.
func (s *Session) Connect(onReady func(), onError func(error)) {
	s.transport.Connect(func() {
		s.transport.Subscribe(transport.DestPrivateMessages, s.handlePrivateMessage)
		s.transport.Subscribe(transport.DestStatusUpdates, s.handleStatusUpdate)
		s.transport.Subscribe(transport.DestSystemMessages, s.handleSystemMessage)
		s.transport.Subscribe(transport.DestBroadcasts, s.handleBroadcast)
		s.transport.Subscribe(transport.DestGroupNotifications, s.handleGroupNotification)
		if onReady != nil {
			onReady()
		}
	}, onError)
}

// Disconnect takes the session offline without purging local state.
func (s *Session) Disconnect() {
	s.rec.Stop()
	s.typing.Reset()
	s.transport.Disconnect()
}

// Activate opens a conversation: resets its unread counter, loads the
// initial history page, subscribes its realtime topics and starts the
// sync loop. Any previously active conversation is deactivated first.
func (s *Session) Activate(conv model.Conversation) {
	s.Deactivate()

	key := s.store.SetActive(conv)
	s.store.ClearUnread(key)
	s.loadHistory(conv, key)

	if conv.Kind == model.ConversationGroup {
		s.transport.Subscribe(transport.GroupTopic(conv.GroupID.String()), s.handleGroupMessage)
	}
	s.transport.Subscribe(transport.TypingTopic(key), s.handleTypingEvent)

	s.rec.Start(conv)
}

// Deactivate closes the active conversation: stops the sync loop and tears
// down its topic subscriptions. No-op when nothing is active.
func (s *Session) Deactivate() {
	conv, ok := s.store.Active()
	if !ok {
		return
	}
	key := conversation.Key(conv)
	s.rec.Stop()
	if conv.Kind == model.ConversationGroup {
		s.transport.Unsubscribe(transport.GroupTopic(conv.GroupID.String()))
	}
	s.transport.Unsubscribe(transport.TypingTopic(key))
	s.store.ClearActive()
}

// loadHistory fetches the opening page for a conversation. The key is
// re-validated after the fetch: a stale page for a conversation the user
// already left is dropped.
func (s *Session) loadHistory(conv model.Conversation, key string) {
	ctx, cancel := s.fetchContext()
	defer cancel()

	var (
		msgs []model.Message
		err  error
	)
	if conv.Kind == model.ConversationGroup {
		msgs, err = s.api.GetGroupMessages(ctx, conv.GroupID, 0, s.cfg.LoadPageSize)
	} else {
		msgs, err = s.api.GetPrivateMessages(ctx, conv.UserID, 0, s.cfg.LoadPageSize)
	}
	if err != nil {
		logger.Errorf("session load history %s: %v", key, err)
		s.classifyError(err)
		return
	}
	if s.store.ActiveKey() != key {
		return
	}
	s.store.LoadPage(key, msgs)
}

// Activity reports local input activity in the active conversation,
// driving the outbound typing debounce.
func (s *Session) Activity() {
	if conv, ok := s.store.Active(); ok {
		s.typing.Activity(conv)
	}
}

// UpdateStatus persists and broadcasts the local actor's presence status.
func (s *Session) UpdateStatus(status string) error {
	ctx, cancel := s.fetchContext()
	defer cancel()
	if err := s.api.UpdateStatus(ctx, status); err != nil {
		s.classifyError(err)
		return err
	}
	s.user.Status = status
	s.transport.Send(transport.DestUpdateStatus, model.StatusUpdate{Status: status})
	return nil
}

// DeleteChat clears a conversation for the current user: backend first,
// then the local timeline, counters and (if it was active) the pointer.
func (s *Session) DeleteChat(conv model.Conversation) error {
	id := conv.UserID
	if conv.Kind == model.ConversationGroup {
		id = conv.GroupID
	}
	ctx, cancel := s.fetchContext()
	defer cancel()
	if err := s.api.DeleteChat(ctx, id, conv.Kind); err != nil {
		s.classifyError(err)
		return err
	}

	key := conversation.Key(conv)
	if s.store.ActiveKey() == key {
		s.Deactivate()
	}
	s.store.Clear(key)
	return nil
}

// DeleteMessage removes a message on the backend and locally.
func (s *Session) DeleteMessage(id model.FlexID) error {
	ctx, cancel := s.fetchContext()
	defer cancel()
	if err := s.api.DeleteMessage(ctx, id); err != nil {
		s.classifyError(err)
		return err
	}
	s.store.RemoveMessage(id)
	return nil
}

// Close tears the session down on normal logout.
func (s *Session) Close() {
	s.teardown()
}

// forceLogout handles the moderation interrupt. Always dispatched on a
// fresh goroutine because it may be triggered from transport or reconciler
// callbacks whose goroutines the teardown has to join.
func (s *Session) forceLogout(reason string) {
	go func() {
		if !s.teardown() {
			return
		}
		logger.Errorf("session: forced logout: %s", reason)
		if s.hooks.OnForcedLogout != nil {
			s.hooks.OnForcedLogout(reason)
		}
	}()
}

// teardown disconnects the transport and purges every local store. Returns
// false if the session was already torn down.
func (s *Session) teardown() bool {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return false
	}
	s.tornDown = true
	s.mu.Unlock()

	s.rec.Stop()
	s.typing.Reset()
	s.transport.Disconnect()
	s.store.ClearAll()
	return true
}

// classifyError routes authorization and moderation failures; everything
// else is transient and already logged by the caller.
func (s *Session) classifyError(err error) {
	switch {
	case errors.Is(err, api.ErrBanned):
		s.forceLogout(err.Error())
	case errors.Is(err, api.ErrUnauthorized):
		s.mu.Lock()
		lapsed := s.authLapsed
		s.authLapsed = true
		s.mu.Unlock()
		if !lapsed && s.hooks.OnAuthLapse != nil {
			s.hooks.OnAuthLapse()
		}
	}
}
