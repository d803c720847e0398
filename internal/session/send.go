package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatclient/internal/api"
	"github.com/chatclient/internal/logger"
	"github.com/chatclient/internal/model"
)

var ErrNoActiveConversation = errors.New("session: no active conversation")

// SendText sends a text message into the active conversation.
//
// The optimistic-send flow: a provisional message with a client-local id
// and a fresh correlation token goes into the timeline immediately; the
// backend call then either returns a full message or a bare id (from which
// a confirmed copy is synthesized using local context), and the
// provisional entry is reconciled to exactly one canonical entry. On
// failure the provisional entry is rolled back.
func (s *Session) SendText(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	conv, ok := s.store.Active()
	if !ok {
		return ErrNoActiveConversation
	}

	provisional := s.newProvisional(conv, model.MessageTypeText, content)
	s.store.Append(provisional)
	s.typing.MessageSent(conv)

	ctx, cancel := s.fetchContext()
	defer cancel()

	payload := api.SendPayload{
		Content:       content,
		Type:          model.MessageTypeText,
		CorrelationID: provisional.CorrelationID,
	}
	var (
		result api.SendResult
		err    error
	)
	if conv.Kind == model.ConversationGroup {
		result, err = s.api.SendGroupMessage(ctx, conv.GroupID, payload)
	} else {
		payload.RecipientUsername = conv.Username
		result, err = s.api.SendPrivateMessage(ctx, payload)
	}
	if err != nil {
		s.store.RemoveMessage(provisional.ID)
		s.classifyError(err)
		return err
	}

	s.confirmSend(conv, provisional, result)
	return nil
}

// SendFile sends a file or image attachment into the active conversation.
// The message type is derived from the MIME type.
func (s *Session) SendFile(fileName, mimeType string, fileSize int64, content io.Reader) error {
	conv, ok := s.store.Active()
	if !ok {
		return ErrNoActiveConversation
	}

	msgType := model.MessageTypeFile
	if strings.HasPrefix(mimeType, "image/") {
		msgType = model.MessageTypeImage
	}
	provisional := s.newProvisional(conv, msgType, "")
	provisional.FileName = fileName
	provisional.FileSize = fileSize
	provisional.MimeType = mimeType
	s.store.Append(provisional)
	s.typing.MessageSent(conv)

	ctx, cancel := s.fetchContext()
	defer cancel()

	payload := api.FilePayload{
		Type:          msgType,
		FileName:      fileName,
		MimeType:      mimeType,
		Content:       content,
		CorrelationID: provisional.CorrelationID,
	}
	var (
		result api.SendResult
		err    error
	)
	if conv.Kind == model.ConversationGroup {
		result, err = s.api.SendGroupFile(ctx, conv.GroupID, payload)
	} else {
		payload.RecipientUsername = conv.Username
		result, err = s.api.SendPrivateFile(ctx, payload)
	}
	if err != nil {
		s.store.RemoveMessage(provisional.ID)
		s.classifyError(err)
		return err
	}

	s.confirmSend(conv, provisional, result)
	return nil
}

// newProvisional builds the optimistic message for a send, tagged with a
// temporary id and a correlation token.
func (s *Session) newProvisional(conv model.Conversation, msgType model.MessageType, content string) model.Message {
	msg := model.Message{
		ID:             model.FlexID("tmp-" + uuid.NewString()),
		CorrelationID:  uuid.NewString(),
		Type:           msgType,
		Content:        content,
		SenderID:       s.user.ID,
		SenderUsername: s.user.Username,
		SenderFullName: s.user.FullName,
		Timestamp:      model.Now(),
	}
	if conv.Kind == model.ConversationGroup {
		msg.GroupID = conv.GroupID
		msg.GroupName = conv.GroupName
	} else {
		msg.RecipientID = conv.UserID
		msg.RecipientUsername = conv.Username
	}
	return msg
}

// confirmSend reconciles the provisional entry with the backend's tagged
// send result.
func (s *Session) confirmSend(conv model.Conversation, provisional model.Message, result api.SendResult) {
	var confirmed model.Message
	if result.Message != nil {
		confirmed = *result.Message
		// Direct-message responses sometimes omit the recipient; without
		// it the confirmed copy would key to the wrong conversation.
		if conv.Kind == model.ConversationDirect && confirmed.RecipientID == "" {
			confirmed.RecipientID = conv.UserID
		}
		if confirmed.CorrelationID == "" {
			confirmed.CorrelationID = provisional.CorrelationID
		}
		if confirmed.Timestamp.Unknown() {
			confirmed.Timestamp = provisional.Timestamp
		}
	} else {
		// Bare id: synthesize the confirmed copy from local context.
		confirmed = provisional
		confirmed.ID = result.ID
	}
	s.store.Confirm(provisional.ID, confirmed)
	logger.Debugf("session send confirmed id=%s", confirmed.ID)
}

func (s *Session) fetchContext() (context.Context, context.CancelFunc) {
	timeout := s.cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
