package model

import "time"

// Role names stored in the `users.role` column. New accounts default to
// RoleUser; elevated roles are only ever assigned by an administrator.
const (
	RoleUser      = "USER"
	RoleModerator = "MODERATOR"
	RoleAdmin     = "ADMIN"
)

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name, immutable after creation.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password, never exposed outside the server.
//  Role         – role name (USER, MODERATOR or ADMIN).
//  Confirmed    – whether the email address has been confirmed.
//  Avatar       – optional avatar URL (null until resolved or uploaded).
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	Confirmed    bool      // users.confirmed
	Avatar       *string   // users.avatar (nullable)
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.  IPAddress and UserAgent are audit-only fields
// captured at issuance time.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA‑256 hex digest of the token value.
//  CreatedAt – timestamp of creation.
//  ExpiredAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  IPAddress – client IP recorded at issuance (nullable).
//  UserAgent – client user agent recorded at issuance (nullable).
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	CreatedAt time.Time  // refresh_tokens.created_at
	ExpiredAt time.Time  // refresh_tokens.expired_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	IPAddress *string    // refresh_tokens.ip_address (nullable)
	UserAgent *string    // refresh_tokens.user_agent (nullable)
}

// Active reports whether the token can still be exchanged: it has not
// been revoked and its expiry is strictly in the future.  A token whose
// expiry equals now is already expired.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiredAt.After(now)
}
