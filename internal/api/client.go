// Package api is the HTTP client for the externally-owned chat backend:
// message history pages, send endpoints and per-user chat deletion.
//
// Transient failures come back as plain errors for the caller to log and
// retry on its next natural cycle. Two conditions are special-cased:
// ErrUnauthorized (session lapse, surfaced once by the session layer) and
// ErrBanned (moderation interrupt, forces teardown).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/chatclient/internal/model"
)

var (
	ErrUnauthorized = errors.New("api: session expired")
	ErrBanned       = errors.New("api: account banned")
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// envelope is the backend's uniform response shape.
type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Banned    bool            `json:"banned"`
	IsBanned  bool            `json:"isBanned"`
	BanReason string          `json:"banReason"`
}

// messagesPage is the data payload of a history fetch.
type messagesPage struct {
	Messages []model.Message `json:"messages"`
}

// SendResult is the explicit tagged outcome of a send call: the backend
// returns either a bare identifier or a full message object. Exactly one
// field is set.
type SendResult struct {
	ID      model.FlexID
	Message *model.Message
}

// SendPayload is the body of a text-message send.
type SendPayload struct {
	Content           string            `json:"content"`
	Type              model.MessageType `json:"type"`
	RecipientUsername string            `json:"recipientUsername,omitempty"`
	CorrelationID     string            `json:"correlationId,omitempty"`
}

// FilePayload is a file/image send. The multipart body carries the raw
// content; the rest travels as form fields.
type FilePayload struct {
	Type              model.MessageType
	FileName          string
	MimeType          string
	Content           io.Reader
	RecipientUsername string
	CorrelationID     string
}

// GetPrivateMessages fetches a page of direct-chat history with userID.
// Order is unspecified; callers re-sort.
func (c *Client) GetPrivateMessages(ctx context.Context, userID model.FlexID, page, size int) ([]model.Message, error) {
	path := fmt.Sprintf("/api/messages/private/%s?page=%d&size=%d", userID, page, size)
	return c.getMessages(ctx, path)
}

// GetGroupMessages fetches a page of group-chat history.
func (c *Client) GetGroupMessages(ctx context.Context, groupID model.FlexID, page, size int) ([]model.Message, error) {
	path := fmt.Sprintf("/api/groups/%s/messages?page=%d&size=%d", groupID, page, size)
	return c.getMessages(ctx, path)
}

func (c *Client) getMessages(ctx context.Context, path string) ([]model.Message, error) {
	data, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	var pageData messagesPage
	if err := json.Unmarshal(data, &pageData); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return pageData.Messages, nil
}

// SendPrivateMessage posts a direct text message.
func (c *Client) SendPrivateMessage(ctx context.Context, payload SendPayload) (SendResult, error) {
	return c.send(ctx, "/api/messages/private", payload)
}

// SendGroupMessage posts a group text message.
func (c *Client) SendGroupMessage(ctx context.Context, groupID model.FlexID, payload SendPayload) (SendResult, error) {
	return c.send(ctx, "/api/groups/"+groupID.String()+"/messages", payload)
}

func (c *Client) send(ctx context.Context, path string, payload SendPayload) (SendResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{}, err
	}
	data, err := c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(body))
	if err != nil {
		return SendResult{}, err
	}
	return decodeSendResult(data)
}

// SendPrivateFile posts a direct file/image message as multipart.
func (c *Client) SendPrivateFile(ctx context.Context, payload FilePayload) (SendResult, error) {
	return c.sendFile(ctx, "/api/messages/private/file", payload, true)
}

// SendGroupFile posts a group file/image message as multipart.
func (c *Client) SendGroupFile(ctx context.Context, groupID model.FlexID, payload FilePayload) (SendResult, error) {
	return c.sendFile(ctx, "/api/groups/"+groupID.String()+"/messages/file", payload, false)
}

func (c *Client) sendFile(ctx context.Context, path string, payload FilePayload, direct bool) (SendResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", payload.FileName)
	if err != nil {
		return SendResult{}, err
	}
	if _, err := io.Copy(part, payload.Content); err != nil {
		return SendResult{}, err
	}
	mw.WriteField("type", string(payload.Type))
	if direct {
		mw.WriteField("recipientUsername", payload.RecipientUsername)
	}
	if payload.CorrelationID != "" {
		mw.WriteField("correlationId", payload.CorrelationID)
	}
	if err := mw.Close(); err != nil {
		return SendResult{}, err
	}

	data, err := c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), &body)
	if err != nil {
		return SendResult{}, err
	}
	return decodeSendResult(data)
}

// DeleteMessage removes a single message.
func (c *Client) DeleteMessage(ctx context.Context, id model.FlexID) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/messages/"+id.String(), "", nil)
	return err
}

// DeleteChat clears a conversation for the current user only.
// conversationType is "private" or "group".
func (c *Client) DeleteChat(ctx context.Context, conversationID model.FlexID, conversationType model.ConversationKind) error {
	body, _ := json.Marshal(map[string]string{
		"conversationId":   conversationID.String(),
		"conversationType": string(conversationType),
	})
	_, err := c.do(ctx, http.MethodDelete, "/api/chat/delete", "application/json", bytes.NewReader(body))
	return err
}

// UpdateStatus persists the local actor's presence status.
func (c *Client) UpdateStatus(ctx context.Context, status string) error {
	body, _ := json.Marshal(map[string]string{"status": status})
	_, err := c.do(ctx, http.MethodPut, "/api/users/status", "application/json", bytes.NewReader(body))
	return err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	var env envelope
	// The body may not be an envelope at all on proxy errors; classify by
	// status first, then by envelope content.
	decodeErr := json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden && (env.Banned || env.IsBanned):
		reason := env.BanReason
		if reason == "" {
			reason = "account banned"
		}
		return nil, fmt.Errorf("%w: %s", ErrBanned, reason)
	case resp.StatusCode >= 400:
		msg := env.Message
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("%s %s: %s", method, path, msg)
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("%s %s: decode: %w", method, path, decodeErr)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "request failed"
		}
		return nil, fmt.Errorf("%s %s: %s", method, path, msg)
	}
	return env.Data, nil
}

// decodeSendResult branches on the explicit shape of the send response:
// a JSON object is a full message, a bare string/number is an identifier.
func decodeSendResult(data json.RawMessage) (SendResult, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return SendResult{}, errors.New("send: empty response data")
	}
	if trimmed[0] == '{' {
		var msg model.Message
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return SendResult{}, fmt.Errorf("send: decode message: %w", err)
		}
		return SendResult{Message: &msg}, nil
	}
	var id model.FlexID
	if err := json.Unmarshal(trimmed, &id); err != nil {
		return SendResult{}, fmt.Errorf("send: decode id: %w", err)
	}
	if id == "" {
		return SendResult{}, errors.New("send: empty id")
	}
	return SendResult{ID: id}, nil
}
