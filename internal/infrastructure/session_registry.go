package infrastructure

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"telereply/internal/entities"
	"telereply/internal/interfaces"
)

// TenantSession is the registry's in-memory record for one tenant: the live
// client handle (if any), the attach-once handler flag and the per-chat
// auto-reply cooldown map. The flag lives here, not on the client handle, so
// re-creating a handle after a reconnect cannot re-attach duplicate handlers.
type TenantSession struct {
	TenantID        string
	Client          interfaces.ProtocolClient
	handlerAttached bool
	lastReplyTimes  map[int64]time.Time
}

// Pending-auth flow states.
const (
	AwaitingCode     = "awaiting_code"
	AwaitingPassword = "awaiting_password"
)

// PendingAuth is an in-progress login handshake: an ephemeral connected client
// waiting for a verification code or a password. It never expires on its own;
// only a fresh RequestCode for the same tenant replaces it.
type PendingAuth struct {
	TenantID string
	Client   interfaces.ProtocolClient
	APIHash  string
	Phone    string
	CodeHash string
	State    string
}

// SessionRegistry owns per-tenant locks, live client handles and pending-auth
// handles. It guarantees at most one live handle and at most one pending
// handle per tenant; distinct tenants never block each other.
type SessionRegistry struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	sessions map[string]*TenantSession
	pending  map[string]*PendingAuth

	factory  interfaces.ClientFactory
	accounts interfaces.AccountStore

	// HandlerFactory builds the inbound-message handler attached once per
	// tenant when its client first goes live.
	HandlerFactory func(tenantID string) func(entities.IncomingMessage)
}

func NewSessionRegistry(factory interfaces.ClientFactory, accounts interfaces.AccountStore) *SessionRegistry {
	return &SessionRegistry{
		locks:    make(map[string]*sync.Mutex),
		sessions: make(map[string]*TenantSession),
		pending:  make(map[string]*PendingAuth),
		factory:  factory,
		accounts: accounts,
	}
}

// tenantLock returns the tenant's mutex, creating it on first access. The
// registry mutex is held only for the insert step.
func (r *SessionRegistry) tenantLock(tenantID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[tenantID] = l
	}
	return l
}

// WithTenantLock runs fn while holding the tenant's lock. All session and
// pending-auth transitions for a tenant go through here.
func (r *SessionRegistry) WithTenantLock(tenantID string, fn func() error) error {
	l := r.tenantLock(tenantID)
	l.Lock()
	defer l.Unlock()
	return fn()
}

func (r *SessionRegistry) session(tenantID string) *TenantSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[tenantID]
}

func (r *SessionRegistry) ensureSession(tenantID string) *TenantSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[tenantID]
	if !ok {
		sess = &TenantSession{
			TenantID:       tenantID,
			lastReplyTimes: make(map[int64]time.Time),
		}
		r.sessions[tenantID] = sess
	}
	return sess
}

// clientOf copies the tenant's client handle out under the registry mutex.
// The Client field is written by finalizeLocked from another goroutine, so
// every read goes through here.
func (r *SessionRegistry) clientOf(tenantID string) interfaces.ProtocolClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess := r.sessions[tenantID]; sess != nil {
		return sess.Client
	}
	return nil
}

func (r *SessionRegistry) setClient(sess *TenantSession, client interfaces.ProtocolClient) {
	r.mu.Lock()
	sess.Client = client
	r.mu.Unlock()
}

// GetOrCreateClient returns the tenant's live connected handle, building one
// from persisted session material when necessary. Fails with
// entities.ErrSessionNotAuthorized when the provider reports the session
// unauthorized; the caller must drive the login handshake first. Concurrent
// callers for the same tenant serialize on the tenant lock and never create
// duplicate connections.
//
// apiHash may be empty, in which case the stored credential is decoded.
func (r *SessionRegistry) GetOrCreateClient(ctx context.Context, tenantID, apiHash string) (interfaces.ProtocolClient, error) {
	var client interfaces.ProtocolClient
	err := r.WithTenantLock(tenantID, func() error {
		c, err := r.getOrCreateLocked(ctx, tenantID, apiHash)
		client = c
		return err
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *SessionRegistry) getOrCreateLocked(ctx context.Context, tenantID, apiHash string) (interfaces.ProtocolClient, error) {
	if client := r.clientOf(tenantID); client != nil && client.IsConnected() {
		return client, nil
	}

	if apiHash == "" {
		hash, err := r.accounts.GetAPIHash(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		apiHash = hash
	}

	material := ""
	if acc, err := r.accounts.GetAccount(ctx, tenantID); err == nil && acc != nil {
		material = acc.SessionString
	} else if err != nil {
		log.Printf("[REGISTRY] account lookup for %s: %v", tenantID, err)
	}

	client, err := r.factory(tenantID, apiHash, material)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, &entities.ConnectionError{Err: err}
	}
	authorized, err := client.IsAuthorized(ctx)
	if err != nil {
		client.Disconnect()
		return nil, err
	}
	if !authorized {
		client.Disconnect()
		return nil, entities.ErrSessionNotAuthorized
	}

	if _, err := r.finalizeLocked(ctx, tenantID, apiHash, client); err != nil {
		client.Disconnect()
		return nil, err
	}
	log.Printf("[REGISTRY] client started for %s", tenantID)
	return client, nil
}

// finalizeLocked completes setup of an authorized, connected client: attaches
// the inbound handler once per tenant, stores the handle as live and persists
// refreshed session material plus profile fields. Caller holds the tenant
// lock. A profile-fetch failure is fatal and the caller must disconnect the
// handle; persistence failures are logged, not fatal: the session is live.
func (r *SessionRegistry) finalizeLocked(ctx context.Context, tenantID, apiHash string, client interfaces.ProtocolClient) (entities.Profile, error) {
	profile, err := client.Me(ctx)
	if err != nil {
		return entities.Profile{}, fmt.Errorf("profile fetch for %s: %w", tenantID, err)
	}

	sess := r.ensureSession(tenantID)
	if !sess.handlerAttached && r.HandlerFactory != nil {
		client.Subscribe(r.HandlerFactory(tenantID))
		sess.handlerAttached = true
	}
	r.setClient(sess, client)

	if err := r.accounts.RegisterLogin(ctx, tenantID, apiHash, profile, client.SessionMaterial()); err != nil {
		log.Printf("[REGISTRY] session persist for %s: %v", tenantID, err)
	}
	return profile, nil
}

// LiveClient returns the tenant's client handle only when it is live and
// connected.
func (r *SessionRegistry) LiveClient(tenantID string) (interfaces.ProtocolClient, bool) {
	client := r.clientOf(tenantID)
	if client == nil || !client.IsConnected() {
		return nil, false
	}
	return client, true
}

// LastAutoReply returns the last auto-reply timestamp recorded for the chat.
// The map is only mutated from the tenant's own in-order event path.
func (r *SessionRegistry) LastAutoReply(tenantID string, chatID int64) (time.Time, bool) {
	sess := r.session(tenantID)
	if sess == nil {
		return time.Time{}, false
	}
	t, ok := sess.lastReplyTimes[chatID]
	return t, ok
}

func (r *SessionRegistry) SetLastAutoReply(tenantID string, chatID int64, t time.Time) {
	sess := r.ensureSession(tenantID)
	sess.lastReplyTimes[chatID] = t
}

func (r *SessionRegistry) takePending(tenantID string) *PendingAuth {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.pending[tenantID]
	delete(r.pending, tenantID)
	return p
}

func (r *SessionRegistry) getPending(tenantID string) *PendingAuth {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending[tenantID]
}

func (r *SessionRegistry) setPending(p *PendingAuth) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[p.TenantID] = p
}

// Stop tears the tenant's session down: best-effort disconnect, record
// removed. A later GetOrCreateClient starts from persisted material again.
func (r *SessionRegistry) Stop(tenantID string) {
	_ = r.WithTenantLock(tenantID, func() error {
		r.mu.Lock()
		sess := r.sessions[tenantID]
		delete(r.sessions, tenantID)
		r.mu.Unlock()
		if sess != nil && sess.Client != nil {
			sess.Client.Disconnect()
		}
		return nil
	})
}

// ConnectedTenants lists tenants with a live connected handle.
func (r *SessionRegistry) ConnectedTenants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, sess := range r.sessions {
		if sess.Client != nil && sess.Client.IsConnected() {
			out = append(out, id)
		}
	}
	return out
}

// StartupReplay brings up every account with persisted session material.
// Tenants are processed independently: one connect failure never prevents the
// others from starting.
func (r *SessionRegistry) StartupReplay(ctx context.Context) {
	accounts, err := r.accounts.AllSessions(ctx)
	if err != nil {
		log.Printf("[REGISTRY] startup replay aborted: %v", err)
		return
	}
	log.Printf("[REGISTRY] replaying %d persisted sessions", len(accounts))
	for _, acc := range accounts {
		if _, err := r.GetOrCreateClient(ctx, acc.APIID, ""); err != nil {
			log.Printf("[REGISTRY] replay failed for %s: %v", acc.APIID, err)
			continue
		}
		log.Printf("[REGISTRY] replayed session for %s", acc.APIID)
	}
}

// Shutdown disconnects every live and pending handle best-effort. Errors are
// the provider's problem at this point; we only log.
func (r *SessionRegistry) Shutdown() {
	type liveHandle struct {
		tenantID string
		client   interfaces.ProtocolClient
	}

	r.mu.Lock()
	handles := make([]liveHandle, 0, len(r.sessions))
	for id, sess := range r.sessions {
		if sess.Client != nil {
			handles = append(handles, liveHandle{tenantID: id, client: sess.Client})
		}
	}
	pending := make([]*PendingAuth, 0, len(r.pending))
	for _, p := range r.pending {
		pending = append(pending, p)
	}
	r.sessions = make(map[string]*TenantSession)
	r.pending = make(map[string]*PendingAuth)
	r.mu.Unlock()

	for _, h := range handles {
		h.client.Disconnect()
		log.Printf("[REGISTRY] disconnected %s", h.tenantID)
	}
	for _, p := range pending {
		p.Client.Disconnect()
	}
}
