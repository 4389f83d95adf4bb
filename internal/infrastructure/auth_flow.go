package infrastructure

import (
	"context"
	"errors"
	"log"

	"telereply/internal/entities"
)

// AuthFlow drives the interactive login handshake for a tenant:
// AwaitingCode -> AwaitingPassword (optional) -> Authorized. Every transition
// runs under the tenant's registry lock; AuthFlow is the only mutator of the
// registry's pending-auth state.
type AuthFlow struct {
	registry *SessionRegistry
}

func NewAuthFlow(registry *SessionRegistry) *AuthFlow {
	return &AuthFlow{registry: registry}
}

// AuthResult is what the facade translates into its status vocabulary.
type AuthResult struct {
	Status   string            `json:"status"` // authorized | code_sent | password_required | success
	CodeHash string            `json:"phone_code_hash,omitempty"`
	User     *entities.Profile `json:"user,omitempty"`
}

// RequestCode starts a fresh handshake. Any previous pending handle for the
// tenant is disconnected and discarded first. If the ephemeral client turns
// out to be already authorized, the session is finalized immediately. A
// provider flood condition surfaces as entities.RateLimitError and the
// ephemeral client is discarded.
func (f *AuthFlow) RequestCode(ctx context.Context, tenantID, apiHash, phone string) (*AuthResult, error) {
	var result *AuthResult
	err := f.registry.WithTenantLock(tenantID, func() error {
		if old := f.registry.takePending(tenantID); old != nil {
			log.Printf("[AUTH] discarding stale pending login for %s", tenantID)
			old.Client.Disconnect()
		}

		client, err := f.registry.factory(tenantID, apiHash, "")
		if err != nil {
			return err
		}
		if err := client.Connect(ctx); err != nil {
			return &entities.ConnectionError{Err: err}
		}

		authorized, err := client.IsAuthorized(ctx)
		if err != nil {
			client.Disconnect()
			return err
		}
		if authorized {
			if _, err := f.registry.finalizeLocked(ctx, tenantID, apiHash, client); err != nil {
				client.Disconnect()
				return err
			}
			result = &AuthResult{Status: "authorized"}
			return nil
		}

		codeHash, err := client.SendCodeRequest(ctx, phone)
		if err != nil {
			client.Disconnect()
			if entities.IsRateLimit(err) {
				log.Printf("[AUTH] flood wait for %s", tenantID)
			}
			return err
		}

		f.registry.setPending(&PendingAuth{
			TenantID: tenantID,
			Client:   client,
			APIHash:  apiHash,
			Phone:    phone,
			CodeHash: codeHash,
			State:    AwaitingCode,
		})
		log.Printf("[AUTH] code sent to %s for %s", phone, tenantID)
		result = &AuthResult{Status: "code_sent", CodeHash: codeHash}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// VerifyCode redeems the verification code against the pending handle. On
// success the session is finalized. A second-factor requirement keeps the
// pending handle and moves it to AwaitingPassword. A wrong code leaves the
// pending handle valid for another attempt; a provider rate limit discards it.
func (f *AuthFlow) VerifyCode(ctx context.Context, tenantID, phone, code, codeHash string) (*AuthResult, error) {
	var result *AuthResult
	err := f.registry.WithTenantLock(tenantID, func() error {
		p := f.registry.getPending(tenantID)
		if p == nil {
			return entities.ErrSessionExpired
		}

		err := p.Client.SignInCode(ctx, phone, code, codeHash)
		switch {
		case err == nil:
			f.registry.takePending(tenantID)
			profile, ferr := f.registry.finalizeLocked(ctx, tenantID, p.APIHash, p.Client)
			if ferr != nil {
				p.Client.Disconnect()
				return ferr
			}
			result = &AuthResult{Status: "success", User: &profile}
			return nil

		case errors.Is(err, entities.ErrSecondFactorRequired):
			p.State = AwaitingPassword
			log.Printf("[AUTH] two-step verification required for %s", tenantID)
			result = &AuthResult{Status: "password_required"}
			return nil

		case entities.IsRateLimit(err):
			f.registry.takePending(tenantID)
			p.Client.Disconnect()
			return err

		default:
			// Wrong or expired code: the pending handle stays valid so the
			// user can retry without requesting a new code.
			log.Printf("[AUTH] sign-in failed for %s: %v", tenantID, err)
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// VerifyPassword completes a two-step login. It requires a pending handle in
// AwaitingPassword, else entities.ErrSessionExpired. On failure the pending
// handle is retained, so retries are unbounded; no lockout policy exists here.
func (f *AuthFlow) VerifyPassword(ctx context.Context, tenantID, password string) (*AuthResult, error) {
	var result *AuthResult
	err := f.registry.WithTenantLock(tenantID, func() error {
		p := f.registry.getPending(tenantID)
		if p == nil || p.State != AwaitingPassword {
			return entities.ErrSessionExpired
		}

		if err := p.Client.SignInPassword(ctx, password); err != nil {
			log.Printf("[AUTH] password verify failed for %s: %v", tenantID, err)
			if entities.IsRateLimit(err) {
				return err
			}
			return entities.ErrIncorrectPassword
		}

		f.registry.takePending(tenantID)
		profile, err := f.registry.finalizeLocked(ctx, tenantID, p.APIHash, p.Client)
		if err != nil {
			p.Client.Disconnect()
			return err
		}
		result = &AuthResult{Status: "success", User: &profile}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
