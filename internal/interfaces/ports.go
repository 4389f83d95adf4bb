package interfaces

import (
	"context"

	"telereply/internal/entities"
)

// ProtocolClient is one connection to a chat-protocol account. The wire
// protocol lives behind this surface; the engine never touches it directly.
type ProtocolClient interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
	IsAuthorized(ctx context.Context) (bool, error)

	// SendCodeRequest asks the provider to deliver a verification code to the
	// phone and returns the opaque code hash needed to redeem it.
	SendCodeRequest(ctx context.Context, phone string) (string, error)
	// SignInCode redeems a verification code. Returns
	// entities.ErrSecondFactorRequired when the account has a password set.
	SignInCode(ctx context.Context, phone, code, codeHash string) error
	SignInPassword(ctx context.Context, password string) error

	Me(ctx context.Context) (entities.Profile, error)
	Dialogs(ctx context.Context, limit int) ([]entities.Dialog, error)
	History(ctx context.Context, chatID int64, limit int) ([]entities.ChatMessage, error)
	SendMessage(ctx context.Context, to entities.Peer, text string) error

	// SessionMaterial returns the current opaque serialized auth state,
	// reusable across process restarts.
	SessionMaterial() string
	// Subscribe registers the handler invoked for every inbound message.
	Subscribe(handler func(entities.IncomingMessage))
}

// ClientFactory builds a ProtocolClient for a credential pair, primed with
// previously persisted session material (empty string = fresh session).
type ClientFactory func(apiID, apiHash, sessionMaterial string) (ProtocolClient, error)

// CredentialCodec round-trips a credential pair against a shared secret.
type CredentialCodec interface {
	EncodeCredential(apiID, apiHash string) (idToken, hashToken string, err error)
	DecodeCredential(idToken, hashToken string) (apiID, apiHash string, err error)
}

// AccountStore persists tenant records, credentials and session material.
type AccountStore interface {
	RegisterLogin(ctx context.Context, apiID, apiHash string, profile entities.Profile, sessionMaterial string) error
	GetAccount(ctx context.Context, apiID string) (*entities.Account, error)
	// GetAPIHash returns the decoded api hash for a tenant, or
	// entities.ErrCredentialMissing.
	GetAPIHash(ctx context.Context, apiID string) (string, error)
	// AllSessions returns every account with persisted session material.
	AllSessions(ctx context.Context) ([]entities.Account, error)
	AllAccounts(ctx context.Context) ([]entities.Account, error)
}

type SettingsStore interface {
	// GetSettings returns the tenant's settings, or defaults when absent.
	GetSettings(ctx context.Context, ownerID string) (entities.Settings, error)
	UpdateSettings(ctx context.Context, settings entities.Settings) error
}

type KeywordStore interface {
	// GetKeywords returns the tenant's keywords in stored order.
	GetKeywords(ctx context.Context, ownerID string) ([]entities.Keyword, error)
	AddKeyword(ctx context.Context, keyword entities.Keyword) error
	DeleteKeyword(ctx context.Context, ownerID, keyword string) error
}

type ScheduleStore interface {
	GetSchedules(ctx context.Context, ownerID string) ([]entities.ScheduledMessage, error)
	UpsertSchedule(ctx context.Context, msg entities.ScheduledMessage) error
	DeleteSchedule(ctx context.Context, ownerID, id string) error
	ActiveSchedules(ctx context.Context) ([]entities.ScheduledMessage, error)
	MarkScheduleSent(ctx context.Context, id, date string) error
}

// Observer receives broadcast chat events.
type Observer interface {
	SendEvent(event entities.ChatEvent) error
}
