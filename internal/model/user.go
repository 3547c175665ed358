package model

import "time"

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// may define separate response types with appropriate JSON tags.
//
// Fields:
//  ID               – primary key identifier of the user.
//  Username         – unique display name.
//  Email            – unique email address.
//  PasswordHash     – bcrypt hashed password.
//  Role             – name of the role ("user" or "admin").
//  Status           – account status ("active" or "inactive").
//  UploadFeePaid    – whether the one-time upload fee has been settled.
//  LastWithdrawalAt – when the user last requested a payout.
//  LastLogin        – timestamp of the most recent login.
//  CreatedAt        – timestamp of creation.
type User struct {
	ID               uint64     // users.id
	Username         string     // users.username
	Email            string     // users.email
	PasswordHash     string     // users.password
	Role             string     // users.role
	Status           string     // users.status
	UploadFeePaid    bool       // users.upload_fee_paid
	LastWithdrawalAt *time.Time // users.last_withdrawal_at (nullable)
	LastLogin        *time.Time // users.last_login (nullable)
	CreatedAt        time.Time  // users.created_at
}

// Roles accepted in the users.role column.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
