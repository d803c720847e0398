package model

import (
	"encoding/json"
	"strconv"
)

type MessageType string

const (
	MessageTypeText   MessageType = "TEXT"
	MessageTypeImage  MessageType = "IMAGE"
	MessageTypeFile   MessageType = "FILE"
	MessageTypeSystem MessageType = "SYSTEM"
)

// FlexID is an opaque message/user identifier. The backend is inconsistent
// about the JSON encoding (numeric ids in some responses, strings in
// others), so decoding accepts both and normalizes to a string.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexID(n.String())
	return nil
}

func (id FlexID) String() string { return string(id) }

// Message is a single chat message. Once confirmed by the server ID is
// unique per message; before confirmation it holds the client-local
// placeholder ("tmp-" prefix) and CorrelationID links the optimistic entry
// to the eventual server copy.
type Message struct {
	ID            FlexID      `json:"id"`
	CorrelationID string      `json:"correlationId,omitempty"`
	Type          MessageType `json:"type"`
	Content       string      `json:"content"`

	SenderID       FlexID `json:"senderId"`
	SenderUsername string `json:"senderUsername,omitempty"`
	SenderFullName string `json:"senderFullName,omitempty"`

	// Direct messages carry the recipient, group messages the group.
	RecipientID       FlexID `json:"recipientId,omitempty"`
	RecipientUsername string `json:"recipientUsername,omitempty"`
	GroupID           FlexID `json:"groupId,omitempty"`
	GroupName         string `json:"groupName,omitempty"`

	// Attachment metadata for IMAGE/FILE messages.
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`

	Timestamp Timestamp  `json:"timestamp"`
	EditedAt  *Timestamp `json:"editedAt,omitempty"`
	IsDeleted bool       `json:"isDeleted,omitempty"`
}

// IsGroup reports whether the message belongs to a group conversation.
func (m *Message) IsGroup() bool {
	return m.GroupID != ""
}

// Provisional reports whether the message still carries a client-local id.
func (m *Message) Provisional() bool {
	return len(m.ID) >= 4 && m.ID[:4] == "tmp-"
}

// User is the local actor's identity, as established by the auth layer.
type User struct {
	ID       FlexID `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName,omitempty"`
	Status   string `json:"status,omitempty"`
}

// FormatFileSize renders an attachment size for notifications.
func FormatFileSize(size int64) string {
	switch {
	case size >= 1<<20:
		return strconv.FormatInt(size>>20, 10) + " MB"
	case size >= 1<<10:
		return strconv.FormatInt(size>>10, 10) + " KB"
	default:
		return strconv.FormatInt(size, 10) + " B"
	}
}
