package mtproto

import (
	"fmt"
	"sync"

	"github.com/gotd/td/tg"
)

// Chat ids follow the convention users of such dashboards expect: users keep
// their id, basic groups are negated, and channels get the -100 prefix.
const channelIDOffset = 1000000000000

type peerKind int

const (
	peerUser peerKind = iota
	peerChat
	peerChannel
)

type peerInfo struct {
	kind       peerKind
	id         int64
	accessHash int64
	name       string
}

// peerCache remembers access hashes seen in updates and dialog listings so
// messages can be addressed by chat id later.
type peerCache struct {
	mu    sync.Mutex
	peers map[int64]peerInfo
}

func newPeerCache() *peerCache {
	return &peerCache{peers: make(map[int64]peerInfo)}
}

func (c *peerCache) putUser(u *tg.User) {
	if u == nil {
		return
	}
	c.mu.Lock()
	c.peers[u.ID] = peerInfo{kind: peerUser, id: u.ID, accessHash: u.AccessHash, name: displayName(u)}
	c.mu.Unlock()
}

func (c *peerCache) putChat(chat tg.ChatClass) {
	switch ch := chat.(type) {
	case *tg.Chat:
		c.mu.Lock()
		c.peers[-ch.ID] = peerInfo{kind: peerChat, id: ch.ID, name: ch.Title}
		c.mu.Unlock()
	case *tg.Channel:
		c.mu.Lock()
		c.peers[-channelIDOffset-ch.ID] = peerInfo{kind: peerChannel, id: ch.ID, accessHash: ch.AccessHash, name: ch.Title}
		c.mu.Unlock()
	}
}

func (c *peerCache) get(chatID int64) (peerInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.peers[chatID]
	return info, ok
}

// inputPeer resolves a chat id into the wire addressing form, falling back to
// a zero access hash when the peer was never observed. Sends to unseen peers
// may be rejected by the provider.
func (c *peerCache) inputPeer(chatID int64) (tg.InputPeerClass, error) {
	if info, ok := c.get(chatID); ok {
		switch info.kind {
		case peerUser:
			return &tg.InputPeerUser{UserID: info.id, AccessHash: info.accessHash}, nil
		case peerChat:
			return &tg.InputPeerChat{ChatID: info.id}, nil
		case peerChannel:
			return &tg.InputPeerChannel{ChannelID: info.id, AccessHash: info.accessHash}, nil
		}
	}
	switch {
	case chatID > 0:
		return &tg.InputPeerUser{UserID: chatID}, nil
	case chatID <= -channelIDOffset:
		return &tg.InputPeerChannel{ChannelID: -chatID - channelIDOffset}, nil
	case chatID < 0:
		return &tg.InputPeerChat{ChatID: -chatID}, nil
	}
	return nil, fmt.Errorf("cannot address chat id %d", chatID)
}

// chatID maps a wire peer back to the dashboard id convention.
func chatID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerChannel:
		return -channelIDOffset - p.ChannelID
	}
	return 0
}

func displayName(u *tg.User) string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}
