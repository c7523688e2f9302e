package smtp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMessage_Headers(t *testing.T) {
	raw := string(renderMessage(Message{
		To:             "reader@example.com",
		FromName:       "Alice's Blog",
		ReplyTo:        "alice@example.com",
		Subject:        "A new post",
		Body:           "hello",
		UnsubscribeURL: "https://alice.plumehost.app/unsubscribe?token=abc",
	}, "noreply@plumehost.app"))

	header, body, found := strings.Cut(raw, "\r\n\r\n")
	require.True(t, found)
	assert.Equal(t, "hello", body)
	assert.Contains(t, header, "To: reader@example.com")
	assert.Contains(t, header, "<noreply@plumehost.app>")
	assert.Contains(t, header, "Reply-To: alice@example.com")
	assert.Contains(t, header, "List-Unsubscribe: <https://alice.plumehost.app/unsubscribe?token=abc>")
	assert.Contains(t, header, "List-Unsubscribe-Post: List-Unsubscribe=One-Click")
}

func TestRenderMessage_NoFromName_NoUnsubscribe(t *testing.T) {
	raw := string(renderMessage(Message{
		To:      "reader@example.com",
		Subject: "plain",
		Body:    "body",
	}, "noreply@plumehost.app"))

	assert.Contains(t, raw, "From: noreply@plumehost.app\r\n")
	assert.NotContains(t, raw, "List-Unsubscribe")
	assert.NotContains(t, raw, "Reply-To")
}

func TestRenderMessage_SubjectEncoded(t *testing.T) {
	raw := string(renderMessage(Message{
		To:      "reader@example.com",
		Subject: "héllo wörld",
		Body:    "body",
	}, "noreply@plumehost.app"))

	// Non-ASCII subjects must be Q-encoded per RFC 2047.
	assert.Contains(t, raw, "=?utf-8?q?")
}
