// Package conversation derives canonical conversation keys.
//
// Both parties of a direct chat must converge on the same key even though
// each sees the same message from the opposite senderId/recipientId
// perspective, so the direct key is always built from the *other*
// participant's id relative to the current actor.
package conversation

import "github.com/chatclient/internal/model"

const (
	groupPrefix = "group-"
	userPrefix  = "user-"
)

// Key returns the canonical key for a conversation descriptor.
func Key(conv model.Conversation) string {
	if conv.Kind == model.ConversationGroup {
		return groupPrefix + conv.GroupID.String()
	}
	return userPrefix + conv.UserID.String()
}

// KeyForMessage resolves the conversation a message belongs to, from the
// point of view of selfID. Total and deterministic: any message maps to
// exactly one key.
func KeyForMessage(selfID model.FlexID, msg *model.Message) string {
	if msg.IsGroup() {
		return groupPrefix + msg.GroupID.String()
	}
	if msg.SenderID == selfID {
		return userPrefix + msg.RecipientID.String()
	}
	return userPrefix + msg.SenderID.String()
}

// DirectKey returns the key of a direct conversation with the given user.
func DirectKey(userID model.FlexID) string {
	return userPrefix + userID.String()
}

// GroupKey returns the key of a group conversation.
func GroupKey(groupID model.FlexID) string {
	return groupPrefix + groupID.String()
}
