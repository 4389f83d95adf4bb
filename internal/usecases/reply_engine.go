package usecases

import (
	"context"
	"log"
	"strings"
	"time"

	"telereply/internal/entities"
	"telereply/internal/infrastructure"
	"telereply/internal/interfaces"
)

// ReplyEngine reacts to incoming private messages for a tenant: it answers
// keyword matches first, falls back to a cooldown-limited auto reply, and
// mirrors every message to connected dashboard observers.
type ReplyEngine struct {
	registry    *infrastructure.SessionRegistry
	settings    interfaces.SettingsStore
	keywords    interfaces.KeywordStore
	broadcaster *infrastructure.EventBroadcaster

	// now is swappable in tests.
	now func() time.Time
}

func NewReplyEngine(
	registry *infrastructure.SessionRegistry,
	settings interfaces.SettingsStore,
	keywords interfaces.KeywordStore,
	broadcaster *infrastructure.EventBroadcaster,
) *ReplyEngine {
	return &ReplyEngine{
		registry:    registry,
		settings:    settings,
		keywords:    keywords,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// HandleIncoming processes one private message for a tenant. Reply failures
// are logged and swallowed; the dashboard broadcast happens regardless of
// whether a reply was attempted or succeeded.
func (e *ReplyEngine) HandleIncoming(ctx context.Context, tenantID string, msg entities.IncomingMessage) {
	settings, err := e.settings.GetSettings(ctx, tenantID)
	if err != nil {
		log.Printf("[REPLY] failed to load settings for %s, using defaults: %v", tenantID, err)
		settings = entities.DefaultSettings(tenantID)
	}

	if settings.Active {
		replied := e.tryKeywordReply(ctx, tenantID, msg)
		if !replied {
			e.tryAutoReply(ctx, tenantID, msg, settings)
		}
	}

	e.broadcaster.Broadcast(entities.ChatEvent{
		Type:     "new_message",
		ChatID:   msg.ChatID,
		ChatName: msg.ChatName,
		Text:     msg.Text,
		Date:     msg.Date.Format(time.RFC3339),
		Outgoing: false,
	})
}

// tryKeywordReply scans the tenant's keywords in insertion order and sends
// the reply of the first match found as a lower-cased substring of the
// message. A match whose reply text is empty does not count and scanning
// continues. Returns true when a keyword matched; a failed send still counts
// as a match and suppresses the auto reply.
func (e *ReplyEngine) tryKeywordReply(ctx context.Context, tenantID string, msg entities.IncomingMessage) bool {
	keywords, err := e.keywords.GetKeywords(ctx, tenantID)
	if err != nil {
		log.Printf("[REPLY] failed to load keywords for %s: %v", tenantID, err)
		return false
	}
	if len(keywords) == 0 {
		return false
	}

	text := strings.ToLower(msg.Text)
	for _, kw := range keywords {
		if kw.Keyword == "" || kw.Reply == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw.Keyword)) {
			if err := e.send(ctx, tenantID, msg.ChatID, kw.Reply); err != nil {
				log.Printf("[REPLY] keyword reply to %d failed for %s: %v", msg.ChatID, tenantID, err)
			} else {
				log.Printf("[REPLY] keyword %q matched for %s, replied to %d", kw.Keyword, tenantID, msg.ChatID)
			}
			return true
		}
	}
	return false
}

// tryAutoReply sends the generic auto-reply text unless the same chat was
// auto-replied to within the cooldown window. The cooldown stamp is recorded
// only after a successful send, so a failed attempt retries on the next
// message.
func (e *ReplyEngine) tryAutoReply(ctx context.Context, tenantID string, msg entities.IncomingMessage, settings entities.Settings) {
	if settings.AutoReplyText == "" {
		return
	}

	now := e.now()
	if last, ok := e.registry.LastAutoReply(tenantID, msg.ChatID); ok {
		if now.Sub(last) <= time.Duration(settings.WaitTime)*time.Second {
			return
		}
	}

	if err := e.send(ctx, tenantID, msg.ChatID, settings.AutoReplyText); err != nil {
		log.Printf("[REPLY] auto reply to %d failed for %s: %v", msg.ChatID, tenantID, err)
		return
	}
	e.registry.SetLastAutoReply(tenantID, msg.ChatID, now)
	log.Printf("[REPLY] auto replied to %d for %s", msg.ChatID, tenantID)
}

func (e *ReplyEngine) send(ctx context.Context, tenantID string, chatID int64, text string) error {
	client, ok := e.registry.LiveClient(tenantID)
	if !ok {
		return entities.ErrSessionNotAuthorized
	}
	if err := client.SendMessage(ctx, entities.Peer{ChatID: chatID}, text); err != nil {
		return &entities.SendError{Target: entities.Peer{ChatID: chatID}.String(), Err: err}
	}
	return nil
}
