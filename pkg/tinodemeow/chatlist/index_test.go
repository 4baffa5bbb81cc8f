package chatlist_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/chatlist"
	"go.mau.fi/mautrix-tinode/pkg/tinodemeow/types"
)

func convs(topics ...string) []*types.Conversation {
	out := make([]*types.Conversation, len(topics))
	for i, topic := range topics {
		out[i] = &types.Conversation{Topic: topic}
	}
	return out
}

func TestIndex_RebuildPositions(t *testing.T) {
	idx := chatlist.NewIndex()
	list := convs("usrA", "grpB", "usrC", "grpD")
	assert.Empty(t, idx.Rebuild(list))
	assert.True(t, idx.Valid())
	for i, conv := range list {
		pos, ok := idx.PositionOf(conv.Topic)
		assert.True(t, ok)
		assert.Equal(t, i, pos)
	}
	_, ok := idx.PositionOf("usrZ")
	assert.False(t, ok)
}

func TestIndex_RemovedTopicNotFound(t *testing.T) {
	idx := chatlist.NewIndex()
	idx.Rebuild(convs("a", "b", "c"))
	idx.Rebuild(convs("c", "a"))

	_, ok := idx.PositionOf("b")
	assert.False(t, ok)
	pos, ok := idx.PositionOf("a")
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
	assert.Equal(t, 2, idx.Len())
}

func TestIndex_DuplicatesLastWins(t *testing.T) {
	idx := chatlist.NewIndex()
	dups := idx.Rebuild(convs("a", "b", "a", "c", "a"))
	assert.Equal(t, []string{"a", "a"}, dups)
	pos, ok := idx.PositionOf("a")
	assert.True(t, ok)
	assert.Equal(t, 4, pos)
}

func TestIndex_StaleStates(t *testing.T) {
	var zero chatlist.Index
	_, ok := zero.PositionOf("a")
	assert.False(t, ok)

	idx := chatlist.NewIndex()
	assert.False(t, idx.Valid())
	_, ok = idx.PositionOf("a")
	assert.False(t, ok)

	idx.Rebuild(convs("a"))
	idx.Invalidate()
	assert.False(t, idx.Valid())
	_, ok = idx.PositionOf("a")
	assert.False(t, ok)

	idx.Rebuild(nil)
	assert.True(t, idx.Valid())
	assert.Equal(t, 0, idx.Len())
}

func TestUnreadBadge(t *testing.T) {
	assert.Equal(t, "", chatlist.UnreadBadge(0))
	assert.Equal(t, "", chatlist.UnreadBadge(-3))
	assert.Equal(t, "1", chatlist.UnreadBadge(1))
	assert.Equal(t, "9", chatlist.UnreadBadge(9))
	assert.Equal(t, "9+", chatlist.UnreadBadge(10))
	assert.Equal(t, "9+", chatlist.UnreadBadge(1500))
}
