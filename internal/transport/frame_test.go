package transport

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	in := newFrame(cmdSend, map[string]string{
		hdrDestination: "/app/chat.sendMessage",
		hdrContentType: "application/json",
	}, []byte(`{"content":"hi"}`))

	out, err := parseFrame(in.Marshal())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.Command != cmdSend {
		t.Fatalf("command %q", out.Command)
	}
	if out.Headers[hdrDestination] != "/app/chat.sendMessage" {
		t.Fatalf("destination %q", out.Headers[hdrDestination])
	}
	if !bytes.Equal(out.Body, []byte(`{"content":"hi"}`)) {
		t.Fatalf("body %q", out.Body)
	}
}

func TestParseHeartBeat(t *testing.T) {
	for _, raw := range [][]byte{[]byte("\n"), []byte("\r\n"), {0}, []byte("\n\x00")} {
		f, err := parseFrame(raw)
		if err != nil || f != nil {
			t.Fatalf("heart-beat %q: frame=%v err=%v", raw, f, err)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	cases := [][]byte{
		[]byte("MESSAGE"),                        // no header terminator
		[]byte("MESSAGE\ndestination=/x\n\n\x00"), // colon-less header
	}
	for _, raw := range cases {
		if _, err := parseFrame(raw); !errors.Is(err, errMalformedFrame) {
			t.Fatalf("%q: expected malformed-frame error, got %v", raw, err)
		}
	}
}

func TestParseRepeatedHeaderFirstWins(t *testing.T) {
	raw := []byte("MESSAGE\ndestination:/a\ndestination:/b\n\nbody\x00")
	f, err := parseFrame(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Headers[hdrDestination] != "/a" {
		t.Fatalf("expected first value to win, got %q", f.Headers[hdrDestination])
	}
}

func TestParseCarriageReturns(t *testing.T) {
	raw := []byte("CONNECTED\r\nversion:1.2\r\n\r\n\x00")
	f, err := parseFrame(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Command != cmdConnected || f.Headers["version"] != "1.2" {
		t.Fatalf("frame %+v", f)
	}
}

func TestHeaderEscaping(t *testing.T) {
	in := newFrame(cmdMessage, map[string]string{
		"message": "colon: and\nnewline \\ backslash",
	}, nil)
	out, err := parseFrame(in.Marshal())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := out.Headers["message"]; got != "colon: and\nnewline \\ backslash" {
		t.Fatalf("escaping not symmetric: %q", got)
	}
}

func TestBodyMayContainBlankLines(t *testing.T) {
	body := []byte("line one\n\nline two")
	f, err := parseFrame(newFrame(cmdMessage, map[string]string{hdrDestination: "/x"}, body).Marshal())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !bytes.Equal(f.Body, body) {
		t.Fatalf("body truncated at first blank line: %q", f.Body)
	}
}
