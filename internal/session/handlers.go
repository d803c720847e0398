package session

import (
	"encoding/json"

	"github.com/chatclient/internal/logger"
	"github.com/chatclient/internal/model"
)

// Inbound push handlers. Each runs on the transport read goroutine; a
// payload that fails to decode into its typed shape is dropped, matching
// the malformed-frame policy at the transport boundary.

func (s *Session) handlePrivateMessage(payload []byte) {
	var msg model.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		logger.Debugf("session drop private message: %v", err)
		return
	}
	// Back-fill the recipient for pushes that omit it: a direct message
	// not sent by us was sent to us. Required for conversation keying.
	if msg.RecipientID == "" && !msg.IsGroup() && msg.SenderID != s.user.ID {
		msg.RecipientID = s.user.ID
	}
	if msg.Timestamp.Unknown() {
		msg.Timestamp = model.Now()
	}
	s.acceptMessage(msg)
}

func (s *Session) handleGroupMessage(payload []byte) {
	var msg model.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		logger.Debugf("session drop group message: %v", err)
		return
	}
	if msg.Timestamp.Unknown() {
		msg.Timestamp = model.Now()
	}
	s.acceptMessage(msg)
}

// acceptMessage funnels a push-delivered message into the store and the
// derived counters/notifications.
func (s *Session) acceptMessage(msg model.Message) {
	key, added := s.store.Append(msg)
	if !added {
		return
	}
	if msg.SenderID == s.user.ID {
		return
	}
	if key != s.store.ActiveKey() {
		s.store.IncrementUnread(key)
	}
	if s.hooks.Notify != nil {
		title := msg.SenderFullName
		if title == "" {
			title = msg.SenderUsername
		}
		if msg.IsGroup() && msg.GroupName != "" {
			title += " in " + msg.GroupName
		}
		body := msg.Content
		if body == "" && msg.FileName != "" {
			body = msg.FileName + " (" + model.FormatFileSize(msg.FileSize) + ")"
		}
		s.hooks.Notify("message", title, body)
	}
}

func (s *Session) handleTypingEvent(payload []byte) {
	var ev model.TypingEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Debugf("session drop typing event: %v", err)
		return
	}
	s.typing.ApplyRemote(ev)
}

func (s *Session) handleStatusUpdate(payload []byte) {
	var ev model.StatusEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Debugf("session drop status update: %v", err)
		return
	}
	if s.hooks.OnStatusChange != nil {
		s.hooks.OnStatusChange(ev.UserID, ev.Status)
	}
}

func (s *Session) handleSystemMessage(payload []byte) {
	var ev model.SystemMessage
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Debugf("session drop system message: %v", err)
		return
	}
	if s.hooks.Notify != nil {
		s.hooks.Notify("system", "System Message", ev.Content)
	}
}

// handleBroadcast processes admin broadcasts. A USER_BANNED frame naming
// the current actor is the moderation interrupt: it overrides everything
// in progress and tears the session down.
func (s *Session) handleBroadcast(payload []byte) {
	var ev model.Broadcast
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Debugf("session drop broadcast: %v", err)
		return
	}
	if ev.Type == model.BroadcastUserBanned && ev.UserID == s.user.ID {
		reason := ev.Reason
		if reason == "" {
			reason = "account banned"
		}
		s.forceLogout(reason)
		return
	}
	if s.hooks.Notify != nil {
		s.hooks.Notify("broadcast", "Admin Broadcast", ev.Content)
	}
}

func (s *Session) handleGroupNotification(payload []byte) {
	var ev model.GroupNotification
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Debugf("session drop group notification: %v", err)
		return
	}
	switch ev.Type {
	case model.GroupMembershipAdded, model.GroupMembershipRemoved, model.GroupUpdated:
		if s.hooks.Notify != nil {
			s.hooks.Notify("group", "Group Update", ev.Message)
		}
		if s.hooks.OnGroupsChanged != nil {
			s.hooks.OnGroupsChanged()
		}
	default:
		logger.Debugf("session ignore notification type %q", ev.Type)
	}
}
