package entities

import (
	"strconv"
	"time"
)

// IncomingMessage is one inbound protocol event delivered to a tenant's
// message handler.
type IncomingMessage struct {
	ChatID     int64
	ChatName   string
	SenderName string
	Text       string
	Date       time.Time
}

// Peer addresses a message target: a numeric chat id or a username.
type Peer struct {
	ChatID   int64
	Username string
}

func (p Peer) String() string {
	if p.Username != "" {
		return "@" + p.Username
	}
	return strconv.FormatInt(p.ChatID, 10)
}

// Dialog is one entry in a tenant's chat listing.
type Dialog struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Date    string `json:"date"`
}

type MediaInfo struct {
	Type     string `json:"type"`
	MimeType string `json:"mime_type,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// ChatMessage is one entry in a chat's history listing.
type ChatMessage struct {
	ID         int        `json:"id"`
	SenderID   int64      `json:"sender_id"`
	SenderName string     `json:"sender_name"`
	Text       string     `json:"text"`
	Date       string     `json:"date"`
	Outgoing   bool       `json:"outgoing"`
	Media      *MediaInfo `json:"media,omitempty"`
}

// ChatEvent is the JSON payload pushed over the event channel.
type ChatEvent struct {
	Type     string `json:"type"`
	ChatID   int64  `json:"chat_id"`
	ChatName string `json:"chat_name,omitempty"`
	Text     string `json:"text"`
	Date     string `json:"date"`
	Outgoing bool   `json:"outgoing"`
}
