package gateway

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateChatKeepsRuneBoundaries(t *testing.T) {
	long := strings.Repeat("é", maxChatLength+20)
	got := truncateChat(long)
	require.True(t, utf8.ValidString(got), "truncation must never split a multi-byte character")
	assert.Equal(t, maxChatLength, utf8.RuneCountInString(got))

	emoji := strings.Repeat("🎉", maxChatLength+1)
	got = truncateChat(emoji)
	require.True(t, utf8.ValidString(got))
	assert.Equal(t, maxChatLength, utf8.RuneCountInString(got))
}

func TestTruncateChatLeavesShortTextAlone(t *testing.T) {
	short := "gg ✨"
	assert.Equal(t, short, truncateChat(short))
	assert.Equal(t, "", truncateChat(""))
}
