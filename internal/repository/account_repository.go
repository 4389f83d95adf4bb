package repository

import (
	"context"
	"fmt"
	"time"

	"telereply/internal/entities"
	"telereply/internal/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepository persists tenant records. Credentials go through the codec
// on the way in and out; the plain api_id column exists only for lookups.
type AccountRepository struct {
	db    *pgxpool.Pool
	codec interfaces.CredentialCodec
}

func NewAccountRepository(db *pgxpool.Pool, codec interfaces.CredentialCodec) *AccountRepository {
	return &AccountRepository{db: db, codec: codec}
}

// RegisterLogin upserts the tenant record with encoded credentials, profile
// fields and refreshed session material. The phone number is only overwritten
// when the profile carries one.
func (r *AccountRepository) RegisterLogin(ctx context.Context, apiID, apiHash string, profile entities.Profile, sessionMaterial string) error {
	idJWT, hashJWT, err := r.codec.EncodeCredential(apiID, apiHash)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO accounts (api_id, api_id_jwt, api_hash_jwt, first_name, username, phone_number, session_string, last_login)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		ON CONFLICT (api_id) DO UPDATE SET
			api_id_jwt = EXCLUDED.api_id_jwt,
			api_hash_jwt = EXCLUDED.api_hash_jwt,
			first_name = EXCLUDED.first_name,
			username = EXCLUDED.username,
			phone_number = COALESCE(NULLIF($6, ''), accounts.phone_number),
			session_string = EXCLUDED.session_string,
			last_login = EXCLUDED.last_login`,
		apiID, idJWT, hashJWT, profile.FirstName, profile.Username, profile.Phone, sessionMaterial, time.Now().UTC())
	return err
}

func (r *AccountRepository) GetAccount(ctx context.Context, apiID string) (*entities.Account, error) {
	var (
		acc       entities.Account
		idJWT     *string
		hashJWT   *string
		firstName *string
		username  *string
		phone     *string
		session   *string
		lastLogin *time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT api_id, api_id_jwt, api_hash_jwt, first_name, username, phone_number, session_string, last_login
		FROM accounts WHERE api_id = $1`, apiID).
		Scan(&acc.APIID, &idJWT, &hashJWT, &firstName, &username, &phone, &session, &lastLogin)
	if err == pgx.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}
	acc.APIIDJWT = deref(idJWT)
	acc.APIHashJWT = deref(hashJWT)
	acc.FirstName = deref(firstName)
	acc.Username = deref(username)
	acc.PhoneNumber = deref(phone)
	acc.SessionString = deref(session)
	if lastLogin != nil {
		acc.LastLogin = *lastLogin
	}
	return &acc, nil
}

// GetAPIHash decodes the stored credential pair and returns the api hash.
// Missing account, missing tokens and undecodable tokens all collapse into
// entities.ErrCredentialMissing: the user has to log in again either way.
func (r *AccountRepository) GetAPIHash(ctx context.Context, apiID string) (string, error) {
	acc, err := r.GetAccount(ctx, apiID)
	if err != nil {
		return "", err
	}
	if acc == nil || acc.APIIDJWT == "" || acc.APIHashJWT == "" {
		return "", entities.ErrCredentialMissing
	}
	_, apiHash, err := r.codec.DecodeCredential(acc.APIIDJWT, acc.APIHashJWT)
	if err != nil {
		return "", entities.ErrCredentialMissing
	}
	return apiHash, nil
}

// AllSessions returns every account with persisted session material, for
// startup replay.
func (r *AccountRepository) AllSessions(ctx context.Context) ([]entities.Account, error) {
	return r.list(ctx, `
		SELECT api_id, first_name, username, phone_number, session_string, last_login
		FROM accounts
		WHERE session_string IS NOT NULL AND session_string <> ''
		ORDER BY api_id`)
}

func (r *AccountRepository) AllAccounts(ctx context.Context) ([]entities.Account, error) {
	return r.list(ctx, `
		SELECT api_id, first_name, username, phone_number, session_string, last_login
		FROM accounts
		ORDER BY api_id`)
}

func (r *AccountRepository) list(ctx context.Context, query string) ([]entities.Account, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.Account
	for rows.Next() {
		var (
			acc       entities.Account
			firstName *string
			username  *string
			phone     *string
			session   *string
			lastLogin *time.Time
		)
		if err := rows.Scan(&acc.APIID, &firstName, &username, &phone, &session, &lastLogin); err != nil {
			return nil, err
		}
		acc.FirstName = deref(firstName)
		acc.Username = deref(username)
		acc.PhoneNumber = deref(phone)
		acc.SessionString = deref(session)
		if lastLogin != nil {
			acc.LastLogin = *lastLogin
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
