package model

// Inbound push payloads from the real-time channel, one type per topic.
// Unknown fields are ignored; a frame that fails to decode is dropped at
// the transport boundary and never reaches these types.

// TypingEvent announces the current set of typing users in a conversation.
type TypingEvent struct {
	SenderID    FlexID   `json:"senderId"`
	GroupID     FlexID   `json:"groupId,omitempty"`
	TypingUsers []string `json:"typingUsers"`
}

// StatusEvent is a presence/online-status change broadcast.
type StatusEvent struct {
	UserID FlexID `json:"userId"`
	Status string `json:"status"`
}

// SystemMessage is a server-originated informational message.
type SystemMessage struct {
	Content string `json:"content"`
}

const BroadcastUserBanned = "USER_BANNED"

// Broadcast is an admin broadcast frame. Type USER_BANNED targeting the
// current actor is the moderation interrupt: it forces session teardown.
type Broadcast struct {
	Type    string `json:"type"`
	UserID  FlexID `json:"userId,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Content string `json:"content"`
}

const (
	GroupMembershipAdded   = "GROUP_MEMBERSHIP_ADDED"
	GroupMembershipRemoved = "GROUP_MEMBERSHIP_REMOVED"
	GroupUpdated           = "GROUP_UPDATED"
)

// GroupNotification arrives on the per-user notification queue when group
// membership changes.
type GroupNotification struct {
	Type    string `json:"type"`
	GroupID FlexID `json:"groupId,omitempty"`
	Message string `json:"message"`
}

// Outbound payloads.

// TypingIndicator is the outbound typing start/stop for direct chats.
type TypingIndicator struct {
	RecipientUsername string `json:"recipientUsername"`
	IsTyping          bool   `json:"isTyping"`
}

// GroupTypingIndicator is the outbound typing start/stop for group chats.
type GroupTypingIndicator struct {
	GroupID  FlexID `json:"groupId"`
	IsTyping bool   `json:"isTyping"`
}

// StatusUpdate is the outbound presence change.
type StatusUpdate struct {
	Status string `json:"status"`
}
