package infrastructure

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"telereply/internal/entities"
	"telereply/internal/interfaces"
)

// fakeClient is a scriptable ProtocolClient for registry and auth flow tests.
type fakeClient struct {
	mu sync.Mutex

	connected  bool
	authorized bool

	connectErr  error
	sendCodeErr error
	signInErr   error
	passwordErr error

	codeHash string
	profile  entities.Profile
	meErr    error
	material string

	subscribeCount int
	disconnects    int
	sent           []string
	sendErr        error
}

func (c *fakeClient) Connect(_ context.Context) error {
	if c.connectErr != nil {
		return c.connectErr
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) Disconnect() {
	c.mu.Lock()
	c.connected = false
	c.disconnects++
	c.mu.Unlock()
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsAuthorized(_ context.Context) (bool, error) {
	return c.authorized, nil
}

func (c *fakeClient) SendCodeRequest(_ context.Context, _ string) (string, error) {
	if c.sendCodeErr != nil {
		return "", c.sendCodeErr
	}
	return c.codeHash, nil
}

func (c *fakeClient) SignInCode(_ context.Context, _, _, _ string) error {
	if c.signInErr != nil {
		return c.signInErr
	}
	c.authorized = true
	return nil
}

func (c *fakeClient) SignInPassword(_ context.Context, _ string) error {
	if c.passwordErr != nil {
		return c.passwordErr
	}
	c.authorized = true
	return nil
}

func (c *fakeClient) Me(_ context.Context) (entities.Profile, error) {
	if c.meErr != nil {
		return entities.Profile{}, c.meErr
	}
	return c.profile, nil
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
	c.sent = append(c.sent, to.String()+":"+text)
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) SessionMaterial() string { return c.material }

func (c *fakeClient) Subscribe(_ func(entities.IncomingMessage)) {
	c.mu.Lock()
	c.subscribeCount++
	c.mu.Unlock()
}

// fakeAccounts is an in-memory AccountStore.
type fakeAccounts struct {
	mu       sync.Mutex
	hashes   map[string]string
	accounts map[string]*entities.Account
	logins   int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		hashes:   make(map[string]string),
		accounts: make(map[string]*entities.Account),
	}
}

func (f *fakeAccounts) RegisterLogin(_ context.Context, apiID, apiHash string, profile entities.Profile, sessionMaterial string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	f.hashes[apiID] = apiHash
	f.accounts[apiID] = &entities.Account{
		APIID:         apiID,
		FirstName:     profile.FirstName,
		Username:      profile.Username,
		PhoneNumber:   profile.Phone,
		SessionString: sessionMaterial,
		LastLogin:     time.Now(),
	}
	return nil
}

func (f *fakeAccounts) GetAccount(_ context.Context, apiID string) (*entities.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[apiID], nil
}

func (f *fakeAccounts) GetAPIHash(_ context.Context, apiID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash, ok := f.hashes[apiID]
	if !ok {
		return "", entities.ErrCredentialMissing
	}
	return hash, nil
}

func (f *fakeAccounts) AllSessions(_ context.Context) ([]entities.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entities.Account
	for _, a := range f.accounts {
		if a.SessionString != "" {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAccounts) AllAccounts(_ context.Context) ([]entities.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entities.Account
	for _, a := range f.accounts {
		out = append(out, *a)
	}
	return out, nil
}

// factoryFor hands out the given clients in order and counts invocations.
func factoryFor(count *atomic.Int32, clients ...*fakeClient) interfaces.ClientFactory {
	var i atomic.Int32
	return func(_, _, _ string) (interfaces.ProtocolClient, error) {
		n := i.Add(1)
		if count != nil {
			count.Add(1)
		}
		c := clients[int(n-1)%len(clients)]
		return c, nil
	}
}

func TestGetOrCreateClientReusesLiveHandle(t *testing.T) {
	var created atomic.Int32
	client := &fakeClient{authorized: true}
	accounts := newFakeAccounts()
	accounts.hashes["111"] = "hash"
	r := NewSessionRegistry(factoryFor(&created, client), accounts)

	first, err := r.GetOrCreateClient(context.Background(), "111", "")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := r.GetOrCreateClient(context.Background(), "111", "")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first != second {
		t.Error("expected the same handle on both calls")
	}
	if created.Load() != 1 {
		t.Errorf("factory invoked %d times, want 1", created.Load())
	}
}

func TestGetOrCreateClientConcurrent(t *testing.T) {
	var created atomic.Int32
	client := &fakeClient{authorized: true}
	accounts := newFakeAccounts()
	accounts.hashes["111"] = "hash"
	r := NewSessionRegistry(factoryFor(&created, client), accounts)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.GetOrCreateClient(context.Background(), "111", ""); err != nil {
				t.Errorf("concurrent call: %v", err)
			}
		}()
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("factory invoked %d times under concurrency, want 1", created.Load())
	}
}

// Exercises concurrent reads of the live handle while another goroutine is
// still creating it; meaningful under the race detector.
func TestLiveClientConcurrentWithConnect(t *testing.T) {
	client := &fakeClient{authorized: true}
	accounts := newFakeAccounts()
	accounts.hashes["111"] = "hash"
	r := NewSessionRegistry(factoryFor(nil, client), accounts)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			r.LiveClient("111")
			r.ConnectedTenants()
		}
	}()

	for i := 0; i < 10; i++ {
		if _, err := r.GetOrCreateClient(context.Background(), "111", ""); err != nil {
			t.Errorf("GetOrCreateClient: %v", err)
		}
	}
	<-done

	if _, live := r.LiveClient("111"); !live {
		t.Error("tenant should be live after concurrent access")
	}
}

func TestGetOrCreateClientProfileFetchFailure(t *testing.T) {
	client := &fakeClient{authorized: true, meErr: errors.New("provider timeout")}
	accounts := newFakeAccounts()
	accounts.hashes["111"] = "hash"
	r := NewSessionRegistry(factoryFor(nil, client), accounts)

	if _, err := r.GetOrCreateClient(context.Background(), "111", ""); err == nil {
		t.Fatal("profile fetch failure must fail the connect")
	}
	if client.disconnects != 1 {
		t.Errorf("client disconnected %d times, want 1", client.disconnects)
	}
	if _, live := r.LiveClient("111"); live {
		t.Error("tenant must not be live after a failed finalize")
	}
	if accounts.logins != 0 {
		t.Errorf("RegisterLogin called %d times, want 0", accounts.logins)
	}
}

func TestGetOrCreateClientUnauthorized(t *testing.T) {
	client := &fakeClient{authorized: false}
	accounts := newFakeAccounts()
	accounts.hashes["111"] = "hash"
	r := NewSessionRegistry(factoryFor(nil, client), accounts)

	_, err := r.GetOrCreateClient(context.Background(), "111", "")
	if !errors.Is(err, entities.ErrSessionNotAuthorized) {
		t.Fatalf("got %v, want ErrSessionNotAuthorized", err)
	}
	if client.disconnects != 1 {
		t.Errorf("unauthorized client disconnected %d times, want 1", client.disconnects)
	}
	if _, live := r.LiveClient("111"); live {
		t.Error("unauthorized tenant must not be live")
	}
}

func TestGetOrCreateClientMissingCredential(t *testing.T) {
	r := NewSessionRegistry(factoryFor(nil, &fakeClient{}), newFakeAccounts())

	_, err := r.GetOrCreateClient(context.Background(), "404", "")
	if !errors.Is(err, entities.ErrCredentialMissing) {
		t.Fatalf("got %v, want ErrCredentialMissing", err)
	}
}

func TestHandlerAttachedOncePerTenant(t *testing.T) {
	first := &fakeClient{authorized: true}
	second := &fakeClient{authorized: true}
	accounts := newFakeAccounts()
	accounts.hashes["111"] = "hash"
	r := NewSessionRegistry(factoryFor(nil, first, second), accounts)
	r.HandlerFactory = func(string) func(entities.IncomingMessage) {
		return func(entities.IncomingMessage) {}
	}

	if _, err := r.GetOrCreateClient(context.Background(), "111", ""); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	if first.subscribeCount != 1 {
		t.Fatalf("first client subscribed %d times, want 1", first.subscribeCount)
	}

	// Drop the connection without removing the session record, then force a
	// reconnect with a fresh handle.
	first.mu.Lock()
	first.connected = false
	first.mu.Unlock()

	if _, err := r.GetOrCreateClient(context.Background(), "111", ""); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if second.subscribeCount != 0 {
		t.Errorf("reconnected client subscribed %d times, want 0", second.subscribeCount)
	}
}

func TestStopRemovesSession(t *testing.T) {
	client := &fakeClient{authorized: true}
	accounts := newFakeAccounts()
	accounts.hashes["111"] = "hash"
	r := NewSessionRegistry(factoryFor(nil, client), accounts)

	if _, err := r.GetOrCreateClient(context.Background(), "111", ""); err != nil {
		t.Fatalf("connect: %v", err)
	}
	r.Stop("111")

	if _, live := r.LiveClient("111"); live {
		t.Error("stopped tenant must not be live")
	}
	if client.disconnects != 1 {
		t.Errorf("stopped client disconnected %d times, want 1", client.disconnects)
	}
}

func TestStartupReplayContinuesPastFailures(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.hashes["111"] = "h1"
	accounts.hashes["222"] = "h2"
	accounts.accounts["111"] = &entities.Account{APIID: "111", SessionString: "m1"}
	accounts.accounts["222"] = &entities.Account{APIID: "222", SessionString: "m2"}

	good := &fakeClient{authorized: true}
	bad := &fakeClient{connectErr: errors.New("dc unreachable")}
	r := NewSessionRegistry(func(apiID, _, _ string) (interfaces.ProtocolClient, error) {
		if apiID == "111" {
			return bad, nil
		}
		return good, nil
	}, accounts)

	r.StartupReplay(context.Background())

	if _, live := r.LiveClient("222"); !live {
		t.Error("healthy tenant should be live after replay")
	}
	if _, live := r.LiveClient("111"); live {
		t.Error("failed tenant must not be live after replay")
	}
}

func TestRegisterLoginPersistedOnFinalize(t *testing.T) {
	client := &fakeClient{
		authorized: true,
		material:   "fresh-material",
		profile:    entities.Profile{ID: 7, FirstName: "Ada", Username: "ada", Phone: "+15550001"},
	}
	accounts := newFakeAccounts()
	accounts.hashes["111"] = "hash"
	r := NewSessionRegistry(factoryFor(nil, client), accounts)

	if _, err := r.GetOrCreateClient(context.Background(), "111", ""); err != nil {
		t.Fatalf("connect: %v", err)
	}

	acc, _ := accounts.GetAccount(context.Background(), "111")
	if acc == nil {
		t.Fatal("account not persisted")
	}
	if acc.SessionString != "fresh-material" {
		t.Errorf("session material = %q, want fresh-material", acc.SessionString)
	}
	if acc.FirstName != "Ada" {
		t.Errorf("first name = %q, want Ada", acc.FirstName)
	}
}
