package mtproto

import (
	"sync"

	"github.com/gotd/td/tg"
)

// peerCache tracks input peers observed on the update stream. MTProto send
// and channel-fetch calls need access hashes that only arrive attached to
// entities, so the cache records every user, chat and channel the session
// sees. A chat that has produced no update this session falls back to an
// access-hash-free peer, which the server accepts for basic chats only.
type peerCache struct {
	mu       sync.RWMutex
	peers    map[int64]tg.InputPeerClass
	channels map[int64]*tg.InputChannel
}

func newPeerCache() *peerCache {
	return &peerCache{
		peers:    make(map[int64]tg.InputPeerClass),
		channels: make(map[int64]*tg.InputChannel),
	}
}

// observe records the entities attached to an update batch
func (p *peerCache) observe(e tg.Entities) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, user := range e.Users {
		p.peers[id] = &tg.InputPeerUser{UserID: id, AccessHash: user.AccessHash}
	}
	for id := range e.Chats {
		p.peers[id] = &tg.InputPeerChat{ChatID: id}
	}
	for id, channel := range e.Channels {
		p.peers[id] = &tg.InputPeerChannel{ChannelID: id, AccessHash: channel.AccessHash}
		p.channels[id] = &tg.InputChannel{ChannelID: id, AccessHash: channel.AccessHash}
	}
}

// harvest records entities attached to a messages fetch result. Fetches by
// message ID succeed without a peer, so this is what lets a later send
// address a private chat the update stream has never observed.
func (p *peerCache) harvest(users []tg.UserClass, chats []tg.ChatClass) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, u := range users {
		user, ok := u.(*tg.User)
		if !ok {
			continue
		}
		p.peers[user.ID] = &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}
	}
	for _, ch := range chats {
		switch chat := ch.(type) {
		case *tg.Chat:
			p.peers[chat.ID] = &tg.InputPeerChat{ChatID: chat.ID}
		case *tg.Channel:
			p.peers[chat.ID] = &tg.InputPeerChannel{ChannelID: chat.ID, AccessHash: chat.AccessHash}
			p.channels[chat.ID] = &tg.InputChannel{ChannelID: chat.ID, AccessHash: chat.AccessHash}
		}
	}
}

// peer returns the best known input peer for a chat ID
func (p *peerCache) peer(chatID int64) tg.InputPeerClass {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if peer, ok := p.peers[chatID]; ok {
		return peer
	}
	return &tg.InputPeerChat{ChatID: chatID}
}

// channel returns the input channel for a chat ID when the chat is a channel
func (p *peerCache) channel(chatID int64) (*tg.InputChannel, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	channel, ok := p.channels[chatID]
	return channel, ok
}
