package model

type ConversationKind string

const (
	ConversationDirect ConversationKind = "private"
	ConversationGroup  ConversationKind = "group"
)

// Conversation describes an open chat target. It is an addressable view
// over the timeline store, not a stored entity: the canonical key is
// derived from it (see the conversation package).
type Conversation struct {
	Kind ConversationKind `json:"kind"`

	// Direct conversations.
	UserID   FlexID `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`

	// Group conversations.
	GroupID   FlexID `json:"groupId,omitempty"`
	GroupName string `json:"groupName,omitempty"`
}

// DirectConversation builds a direct-chat descriptor.
func DirectConversation(userID FlexID, username string) Conversation {
	return Conversation{Kind: ConversationDirect, UserID: userID, Username: username}
}

// GroupConversation builds a group-chat descriptor.
func GroupConversation(groupID FlexID, name string) Conversation {
	return Conversation{Kind: ConversationGroup, GroupID: groupID, GroupName: name}
}
