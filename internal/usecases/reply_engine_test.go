package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"telereply/internal/entities"
	"telereply/internal/infrastructure"
)

type recordingObserver struct {
	events []entities.ChatEvent
}

func (o *recordingObserver) SendEvent(event entities.ChatEvent) error {
	o.events = append(o.events, event)
	return nil
}

type engineFixture struct {
	engine      *ReplyEngine
	client      *fakeClient
	settings    *fakeSettings
	keywords    *fakeKeywords
	observer    *recordingObserver
	registry    *infrastructure.SessionRegistry
	broadcaster *infrastructure.EventBroadcaster
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	client := &fakeClient{}
	registry := liveRegistry(t, "111", client)
	settings := &fakeSettings{settings: make(map[string]entities.Settings)}
	keywords := &fakeKeywords{}
	broadcaster := infrastructure.NewEventBroadcaster()
	observer := &recordingObserver{}
	broadcaster.Connect(observer)

	return &engineFixture{
		engine:      NewReplyEngine(registry, settings, keywords, broadcaster),
		client:      client,
		settings:    settings,
		keywords:    keywords,
		observer:    observer,
		registry:    registry,
		broadcaster: broadcaster,
	}
}

func incoming(text string) entities.IncomingMessage {
	return entities.IncomingMessage{ChatID: 42, ChatName: "Alice", Text: text, Date: at("12:00")}
}

func TestKeywordReplyFirstMatchWins(t *testing.T) {
	f := newEngineFixture(t)
	f.keywords.keywords = []entities.Keyword{
		{OwnerID: "111", Keyword: "price", Reply: "Our price list: ..."},
		{OwnerID: "111", Keyword: "hello", Reply: "Hey there!"},
	}

	f.engine.HandleIncoming(context.Background(), "111", incoming("Hello! What is the PRICE?"))

	sent := f.client.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].text != "Our price list: ..." {
		t.Errorf("reply = %q, want the first stored keyword's reply", sent[0].text)
	}
}

func TestKeywordEmptyReplyFallsThrough(t *testing.T) {
	f := newEngineFixture(t)
	f.keywords.keywords = []entities.Keyword{
		{OwnerID: "111", Keyword: "price", Reply: ""},
		{OwnerID: "111", Keyword: "hello", Reply: "Hey there!"},
	}

	f.engine.HandleIncoming(context.Background(), "111", incoming("hello, price please"))

	sent := f.client.sentMessages()
	if len(sent) != 1 || sent[0].text != "Hey there!" {
		t.Fatalf("sent = %+v, want only the non-empty keyword reply", sent)
	}
}

func TestAutoReplyCooldown(t *testing.T) {
	f := newEngineFixture(t)
	f.settings.settings["111"] = entities.Settings{
		OwnerID: "111", Active: true, AutoReplyText: "brb", WaitTime: 60,
	}

	now := at("12:00")
	f.engine.now = func() time.Time { return now }
	f.engine.HandleIncoming(context.Background(), "111", incoming("anyone there?"))

	now = at("12:00").Add(30 * time.Second)
	f.engine.HandleIncoming(context.Background(), "111", incoming("hello??"))

	now = at("12:00").Add(61 * time.Second)
	f.engine.HandleIncoming(context.Background(), "111", incoming("still there?"))

	sent := f.client.sentMessages()
	if len(sent) != 2 {
		t.Fatalf("sent %d auto replies across the timeline, want 2", len(sent))
	}
}

func TestAutoReplyCooldownIsPerChat(t *testing.T) {
	f := newEngineFixture(t)
	now := at("09:00")
	f.engine.now = func() time.Time { return now }

	f.engine.HandleIncoming(context.Background(), "111", entities.IncomingMessage{ChatID: 1, Text: "hi", Date: now})
	f.engine.HandleIncoming(context.Background(), "111", entities.IncomingMessage{ChatID: 2, Text: "hi", Date: now})

	if sent := f.client.sentMessages(); len(sent) != 2 {
		t.Fatalf("sent %d replies for two distinct chats, want 2", len(sent))
	}
}

func TestInactiveTenantBroadcastsOnly(t *testing.T) {
	f := newEngineFixture(t)
	f.settings.settings["111"] = entities.Settings{OwnerID: "111", Active: false, AutoReplyText: "brb", WaitTime: 10}
	f.keywords.keywords = []entities.Keyword{{OwnerID: "111", Keyword: "hi", Reply: "hey"}}

	f.engine.HandleIncoming(context.Background(), "111", incoming("hi"))

	if sent := f.client.sentMessages(); len(sent) != 0 {
		t.Fatalf("inactive tenant sent %d replies, want 0", len(sent))
	}
	if len(f.observer.events) != 1 {
		t.Fatalf("broadcast %d events, want 1", len(f.observer.events))
	}
	event := f.observer.events[0]
	if event.Type != "new_message" || event.ChatID != 42 || event.Outgoing {
		t.Errorf("event = %+v, want inbound new_message for chat 42", event)
	}
}

func TestEmptyAutoReplyTextSendsNothing(t *testing.T) {
	f := newEngineFixture(t)
	f.settings.settings["111"] = entities.Settings{OwnerID: "111", Active: true, AutoReplyText: "", WaitTime: 10}

	f.engine.HandleIncoming(context.Background(), "111", incoming("hello"))

	if sent := f.client.sentMessages(); len(sent) != 0 {
		t.Fatalf("sent %d replies with empty auto-reply text, want 0", len(sent))
	}
}

func TestFailedAutoReplyDoesNotStampCooldown(t *testing.T) {
	f := newEngineFixture(t)
	now := at("12:00")
	f.engine.now = func() time.Time { return now }

	f.client.sendErr = errors.New("network down")
	f.engine.HandleIncoming(context.Background(), "111", incoming("hello"))

	f.client.sendErr = nil
	f.engine.HandleIncoming(context.Background(), "111", incoming("hello again"))

	if sent := f.client.sentMessages(); len(sent) != 1 {
		t.Fatalf("sent %d replies, want 1: a failed send must not start the cooldown", len(sent))
	}
}

func TestBroadcastHappensEvenWhenReplyFails(t *testing.T) {
	f := newEngineFixture(t)
	f.client.sendErr = errors.New("network down")

	f.engine.HandleIncoming(context.Background(), "111", incoming("hello"))

	if len(f.observer.events) != 1 {
		t.Fatalf("broadcast %d events despite send failure, want 1", len(f.observer.events))
	}
}

func TestKeywordMatchSkipsAutoReply(t *testing.T) {
	f := newEngineFixture(t)
	f.keywords.keywords = []entities.Keyword{{OwnerID: "111", Keyword: "hours", Reply: "Open 9-5"}}

	f.engine.HandleIncoming(context.Background(), "111", incoming("what are your hours?"))

	sent := f.client.sentMessages()
	if len(sent) != 1 || sent[0].text != "Open 9-5" {
		t.Fatalf("sent = %+v, want exactly the keyword reply", sent)
	}
}
