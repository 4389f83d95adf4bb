package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"telereply/internal/entities"
	"telereply/internal/infrastructure"
	"telereply/internal/interfaces"
)

type fakeClient struct {
	mu        sync.Mutex
	connected bool
	sent      []sentMessage
	sendErr   error
}

type sentMessage struct {
	target string
	text   string
}

func (c *fakeClient) Connect(_ context.Context) error {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) Disconnect() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsAuthorized(_ context.Context) (bool, error) { return true, nil }

func (c *fakeClient) SendCodeRequest(_ context.Context, _ string) (string, error) {
	return "", nil
}

func (c *fakeClient) SignInCode(_ context.Context, _, _, _ string) error { return nil }
func (c *fakeClient) SignInPassword(_ context.Context, _ string) error   { return nil }
func (c *fakeClient) Me(_ context.Context) (entities.Profile, error) {
	return entities.Profile{}, nil
}
func (c *fakeClient) Dialogs(_ context.Context, _ int) ([]entities.Dialog, error) {
	return nil, nil
}
func (c *fakeClient) History(_ context.Context, _ int64, _ int) ([]entities.ChatMessage, error) {
	return nil, nil
}

func (c *fakeClient) SendMessage(_ context.Context, to entities.Peer, text string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	c.sent = append(c.sent, sentMessage{target: to.String(), text: text})
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) SessionMaterial() string                    { return "" }
func (c *fakeClient) Subscribe(_ func(entities.IncomingMessage)) {}

func (c *fakeClient) sentMessages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sentMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

type fakeAccounts struct{}

func (fakeAccounts) RegisterLogin(_ context.Context, _, _ string, _ entities.Profile, _ string) error {
	return nil
}
func (fakeAccounts) GetAccount(_ context.Context, _ string) (*entities.Account, error) {
	return nil, nil
}
func (fakeAccounts) GetAPIHash(_ context.Context, _ string) (string, error) { return "hash", nil }
func (fakeAccounts) AllSessions(_ context.Context) ([]entities.Account, error) {
	return nil, nil
}
func (fakeAccounts) AllAccounts(_ context.Context) ([]entities.Account, error) {
	return nil, nil
}

type fakeSettings struct {
	settings map[string]entities.Settings
}

func (f *fakeSettings) GetSettings(_ context.Context, ownerID string) (entities.Settings, error) {
	if s, ok := f.settings[ownerID]; ok {
		return s, nil
	}
	return entities.DefaultSettings(ownerID), nil
}

func (f *fakeSettings) UpdateSettings(_ context.Context, settings entities.Settings) error {
	f.settings[settings.OwnerID] = settings
	return nil
}

type fakeKeywords struct {
	keywords []entities.Keyword
}

func (f *fakeKeywords) GetKeywords(_ context.Context, ownerID string) ([]entities.Keyword, error) {
	var out []entities.Keyword
	for _, k := range f.keywords {
		if k.OwnerID == ownerID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeKeywords) AddKeyword(_ context.Context, keyword entities.Keyword) error {
	f.keywords = append(f.keywords, keyword)
	return nil
}

func (f *fakeKeywords) DeleteKeyword(_ context.Context, _, _ string) error { return nil }

type fakeSchedules struct {
	schedules []entities.ScheduledMessage
	marked    map[string]string
}

func (f *fakeSchedules) GetSchedules(_ context.Context, ownerID string) ([]entities.ScheduledMessage, error) {
	var out []entities.ScheduledMessage
	for _, s := range f.schedules {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSchedules) UpsertSchedule(_ context.Context, msg entities.ScheduledMessage) error {
	f.schedules = append(f.schedules, msg)
	return nil
}

func (f *fakeSchedules) DeleteSchedule(_ context.Context, _, _ string) error { return nil }

func (f *fakeSchedules) ActiveSchedules(_ context.Context) ([]entities.ScheduledMessage, error) {
	var out []entities.ScheduledMessage
	for _, s := range f.schedules {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSchedules) MarkScheduleSent(_ context.Context, id, date string) error {
	if f.marked == nil {
		f.marked = make(map[string]string)
	}
	f.marked[id] = date
	for i := range f.schedules {
		if f.schedules[i].ID == id {
			f.schedules[i].LastSentDate = date
		}
	}
	return nil
}

// liveRegistry builds a registry with the client already live for the tenant.
func liveRegistry(t *testing.T, tenantID string, client *fakeClient) *infrastructure.SessionRegistry {
	t.Helper()
	r := infrastructure.NewSessionRegistry(func(_, _, _ string) (interfaces.ProtocolClient, error) {
		return client, nil
	}, fakeAccounts{})
	if _, err := r.GetOrCreateClient(context.Background(), tenantID, "hash"); err != nil {
		t.Fatalf("failed to prime live client: %v", err)
	}
	return r
}

func at(hhmm string) time.Time {
	ts, _ := time.Parse("2006-01-02 15:04", "2026-08-28 "+hhmm)
	return ts
}
