package transport

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// STOMP 1.2 frame commands used by the client and expected from the broker.
const (
	cmdConnect     = "CONNECT"
	cmdConnected   = "CONNECTED"
	cmdSubscribe   = "SUBSCRIBE"
	cmdUnsubscribe = "UNSUBSCRIBE"
	cmdSend        = "SEND"
	cmdMessage     = "MESSAGE"
	cmdError       = "ERROR"
	cmdDisconnect  = "DISCONNECT"
)

const (
	hdrDestination   = "destination"
	hdrSubscription  = "id"
	hdrContentType   = "content-type"
	hdrAcceptVersion = "accept-version"
	hdrHeartBeat     = "heart-beat"
	hdrMessage       = "message"
)

// Frame is a single STOMP frame: command line, header lines, blank line,
// body, NUL terminator.
type Frame struct {
	Command string
	Headers map[string]string
	Body    []byte
}

func newFrame(command string, headers map[string]string, body []byte) *Frame {
	if headers == nil {
		headers = make(map[string]string)
	}
	return &Frame{Command: command, Headers: headers, Body: body}
}

// Marshal encodes the frame for the wire.
func (f *Frame) Marshal() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')
	for k, v := range f.Headers {
		buf.WriteString(escapeHeader(k))
		buf.WriteByte(':')
		buf.WriteString(escapeHeader(v))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

var errMalformedFrame = errors.New("transport: malformed frame")

// parseFrame decodes a wire frame. A bare EOL (heart-beat) yields nil, nil.
func parseFrame(data []byte) (*Frame, error) {
	data = bytes.TrimSuffix(data, []byte{0})
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	head, body, found := bytes.Cut(data, []byte("\n\n"))
	if !found {
		return nil, errMalformedFrame
	}
	lines := strings.Split(strings.TrimSuffix(string(head), "\r"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, errMalformedFrame
	}

	f := newFrame(strings.TrimSuffix(lines[0], "\r"), nil, body)
	for _, line := range lines[1:] {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: header %q", errMalformedFrame, line)
		}
		k = unescapeHeader(k)
		// Repeated headers: first value wins, per the STOMP spec.
		if _, exists := f.Headers[k]; !exists {
			f.Headers[k] = unescapeHeader(v)
		}
	}
	return f, nil
}

var headerEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r", `\r`,
	"\n", `\n`,
	":", `\c`,
)

func escapeHeader(s string) string {
	return headerEscaper.Replace(s)
}

func unescapeHeader(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case 'c':
			b.WriteByte(':')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
