package entities

const (
	DefaultAutoReplyText = "I am currently unavailable. I will reply to you shortly."
	DefaultWaitTime      = 10 // seconds
)

// Settings controls a tenant's reactive-reply behavior.
type Settings struct {
	OwnerID       string `json:"owner_id"`
	Active        bool   `json:"active"`
	AutoReplyText string `json:"auto_reply_text"`
	WaitTime      int    `json:"wait_time"` // cooldown between auto-replies per chat, in seconds
}

// DefaultSettings returns the settings used for a tenant that never saved any.
func DefaultSettings(ownerID string) Settings {
	return Settings{
		OwnerID:       ownerID,
		Active:        true,
		AutoReplyText: DefaultAutoReplyText,
		WaitTime:      DefaultWaitTime,
	}
}

// Keyword maps a lower-cased keyword (unique per tenant) to a canned reply.
type Keyword struct {
	OwnerID string `json:"owner_id"`
	Keyword string `json:"keyword"`
	Reply   string `json:"reply"`
}

// ScheduledMessage is a broadcast dispatched at most once per calendar date
// at the given local time of day.
type ScheduledMessage struct {
	ID           string   `json:"id"`
	OwnerID      string   `json:"owner_id"`
	Message      string   `json:"message"`
	Time         string   `json:"time"` // "HH:MM", local time
	ChatIDs      []int64  `json:"chat_ids"`
	Usernames    []string `json:"usernames"`
	Active       bool     `json:"active"`
	LastSentDate string   `json:"last_sent_date"` // "YYYY-MM-DD", empty = never sent
}
