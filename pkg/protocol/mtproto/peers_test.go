package mtproto

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerFallbackIsBasicChat(t *testing.T) {
	cache := newPeerCache()

	peer := cache.peer(99)
	chat, ok := peer.(*tg.InputPeerChat)
	require.True(t, ok)
	assert.Equal(t, int64(99), chat.ChatID)
}

func TestHarvestResolvesPrivateChat(t *testing.T) {
	cache := newPeerCache()

	cache.harvest([]tg.UserClass{
		&tg.User{ID: 501, AccessHash: 0xbeef},
	}, nil)

	peer := cache.peer(501)
	user, ok := peer.(*tg.InputPeerUser)
	require.True(t, ok, "a harvested user must not fall back to InputPeerChat")
	assert.Equal(t, int64(501), user.UserID)
	assert.Equal(t, int64(0xbeef), user.AccessHash)
}

func TestHarvestResolvesChatsAndChannels(t *testing.T) {
	cache := newPeerCache()

	cache.harvest(nil, []tg.ChatClass{
		&tg.Chat{ID: 200},
		&tg.Channel{ID: 300, AccessHash: 0xcafe},
	})

	_, ok := cache.peer(200).(*tg.InputPeerChat)
	assert.True(t, ok)

	peer, ok := cache.peer(300).(*tg.InputPeerChannel)
	require.True(t, ok)
	assert.Equal(t, int64(0xcafe), peer.AccessHash)

	channel, ok := cache.channel(300)
	require.True(t, ok, "harvested channels route fetches through the channel API")
	assert.Equal(t, int64(0xcafe), channel.AccessHash)
}

func TestObserveRecordsUpdateEntities(t *testing.T) {
	cache := newPeerCache()

	cache.observe(tg.Entities{
		Users: map[int64]*tg.User{
			501: {ID: 501, AccessHash: 0xbeef},
		},
		Chats: map[int64]*tg.Chat{
			200: {ID: 200},
		},
		Channels: map[int64]*tg.Channel{
			300: {ID: 300, AccessHash: 0xcafe},
		},
	})

	_, ok := cache.peer(501).(*tg.InputPeerUser)
	assert.True(t, ok)
	_, ok = cache.peer(200).(*tg.InputPeerChat)
	assert.True(t, ok)
	_, ok = cache.channel(300)
	assert.True(t, ok)
}
