package transport

// Destinations of the real-time channel. Subscribe destinations are topics
// and per-user queues; send destinations are application endpoints.
const (
	// Subscriptions.
	DestPrivateMessages    = "/user/queue/messages"
	DestStatusUpdates      = "/topic/status"
	DestSystemMessages     = "/topic/system"
	DestBroadcasts         = "/topic/broadcast"
	DestGroupNotifications = "/user/queue/notifications"

	// Sends. Message content goes over the REST API; the channel carries
	// only presence and typing.
	DestUpdateStatus = "/app/chat.updateStatus"
	DestTyping       = "/app/chat.typing"
	DestGroupTyping  = "/app/chat.groupTyping"
)

// GroupTopic is the broadcast topic of a group conversation.
func GroupTopic(groupID string) string {
	return "/topic/group/" + groupID
}

// TypingTopic is the typing-indicator topic of a conversation, keyed by
// the canonical conversation key.
func TypingTopic(conversationKey string) string {
	return "/topic/typing/" + conversationKey
}
