package entities

import "time"

// Account is one managed chat-protocol account (a tenant). Credentials are
// stored JWT-encoded; the session string is the provider's opaque auth state
// replayed across restarts.
type Account struct {
	APIID         string    `json:"api_id"`
	APIIDJWT      string    `json:"-"`
	APIHashJWT    string    `json:"-"`
	FirstName     string    `json:"first_name"`
	Username      string    `json:"username"`
	PhoneNumber   string    `json:"phone_number"`
	SessionString string    `json:"-"`
	LastLogin     time.Time `json:"last_login"`
}

// Profile is the provider-side identity of a logged-in account.
type Profile struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
	Phone     string `json:"phone"`
}

type Admin struct {
	Username           string `json:"username"`
	PasswordHash       string `json:"-"`
	MustChangePassword bool   `json:"must_change_password"`
}
