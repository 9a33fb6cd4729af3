// Package service contains the authentication and session-lifecycle
// orchestrator. It owns no storage of its own: credential rows live behind
// UserStore and TokenStore, early access-token revocation behind Denylist.
// All three are injected at construction so the service can be exercised
// against fakes and so multiple server instances share the same state.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/contacts-api/internal/model"
	"github.com/iliyamo/contacts-api/internal/queue"
	"github.com/iliyamo/contacts-api/internal/repository"
	"github.com/iliyamo/contacts-api/internal/utils"
)

// ErrUnauthorized is the base class for every authentication failure.
// Handlers match it with errors.Is and answer 401; the wrapped message is
// all a client ever sees, so lookups and password mismatches share one
// message to avoid confirming which usernames exist.
var ErrUnauthorized = errors.New("unauthorized")

var (
	ErrWrongCredentials    = fmt.Errorf("%w: wrong username or password", ErrUnauthorized)
	ErrEmailNotConfirmed   = fmt.Errorf("%w: email not confirmed", ErrUnauthorized)
	ErrInvalidToken        = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrTokenRevoked        = fmt.Errorf("%w: token revoked", ErrUnauthorized)
	ErrInvalidRefreshToken = fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
)

// UserStore is the slice of the credential store the auth service needs.
// *repository.UserRepo satisfies it.
type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash string, avatar *string) (uint64, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	ConfirmEmail(ctx context.Context, email string) error
}

// TokenStore persists refresh-token rows. *repository.TokenRepo satisfies it.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, expiredAt time.Time, ip, userAgent *string) error
	GetActive(ctx context.Context, tokenHash string, now time.Time) (model.RefreshToken, error)
	GetByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string, now time.Time) error
}

// Denylist is the revocation ledger for access tokens revoked before their
// natural expiry. *repository.DenylistRepo satisfies it.
type Denylist interface {
	Deny(ctx context.Context, token string, ttl time.Duration) error
	IsDenied(ctx context.Context, token string) (bool, error)
}

// AuthConfig carries the process-wide immutable knobs of the auth core.
// Loaded once at startup, never mutated afterwards.
type AuthConfig struct {
	JWTSecret         string
	AccessTTLMin      int
	RefreshTTLDays    int
	EmailTokenTTLDays int
	BcryptCost        int
	RotateRevokesOld  bool // hardening option: revoke the exchanged refresh row on rotation
}

// TokenPair is what login and refresh hand back to the client. The refresh
// secret appears here in plaintext for the only time in its life.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// AuthService orchestrates credentials, token pairs and revocation.
type AuthService struct {
	cfg     AuthConfig
	users   UserStore
	tokens  TokenStore
	ledger  Denylist
	publish func(ctx context.Context, ev queue.ConfirmationEmailEvent) error
}

// NewAuthService wires the service with its collaborators. publish may be
// nil, in which case confirmation events go to the RabbitMQ publisher.
func NewAuthService(cfg AuthConfig, users UserStore, tokens TokenStore, ledger Denylist,
	publish func(ctx context.Context, ev queue.ConfirmationEmailEvent) error) *AuthService {
	if publish == nil {
		publish = queue.PublishConfirmationEmail
	}
	return &AuthService{cfg: cfg, users: users, tokens: tokens, ledger: ledger, publish: publish}
}

// Authenticate verifies a username/password pair and returns the user.
// Existence and confirmation are checked before spending a bcrypt cycle,
// but an unknown username and a wrong password yield the identical error.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrWrongCredentials
		}
		return model.User{}, err
	}
	if !u.Confirmed {
		return model.User{}, ErrEmailNotConfirmed
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, ErrWrongCredentials
	}
	return u, nil
}

// Register creates an unconfirmed user and queues a confirmation email.
// Username and email conflicts surface as the repository sentinels; the
// gravatar lookup and the email event are both best-effort and can never
// fail a registration.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return model.User{}, repository.ErrUsernameExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, err
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return model.User{}, repository.ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, err
	}

	avatar := utils.GravatarURL(email)
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, err
	}
	id, err := s.users.Create(ctx, username, email, hash, &avatar)
	if err != nil {
		return model.User{}, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	s.sendConfirmation(ctx, u)
	return u, nil
}

// sendConfirmation issues a fresh email token and publishes the event.
// Failures are logged and swallowed: the account exists either way and the
// client can always ask for a resend.
func (s *AuthService) sendConfirmation(ctx context.Context, u model.User) {
	tok, err := utils.NewEmailToken(s.cfg.JWTSecret, u.Email, s.cfg.EmailTokenTTLDays)
	if err != nil {
		log.Printf("auth: issue email token for %s failed: %v", u.Email, err)
		return
	}
	ev := queue.ConfirmationEmailEvent{
		Email:       u.Email,
		Username:    u.Username,
		Token:       tok,
		ConfirmPath: "/api/users/confirmed_email/" + tok,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.publish(ctx, ev); err != nil {
		log.Printf("auth: publish confirmation email for %s failed: %v", u.Email, err)
	}
}

// IssueTokenPair mints a short-lived access token and a long-lived refresh
// secret for the user. The refresh row is persisted before anything is
// returned, so an aborted request leaves no half-issued session behind.
func (s *AuthService) IssueTokenPair(ctx context.Context, u model.User, ip, userAgent *string) (TokenPair, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.Username, s.cfg.AccessTTLMin)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := utils.NewRefreshSecret(s.cfg.RefreshTTLDays)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp, ip, userAgent); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh.Raw, // raw back to the caller, never persisted
		TokenType:    "bearer",
		AccessExp:    access.Exp,
		RefreshExp:   refresh.Exp,
	}, nil
}

// ResolveCurrentUser maps a bearer access token to the user it asserts.
// Order matters: the revocation ledger is consulted before the signature
// so a logged-out token fails even while cryptographically valid, then the
// codec, then the credential store (the subject may have been deleted
// after issuance).
func (s *AuthService) ResolveCurrentUser(ctx context.Context, accessToken string) (model.User, error) {
	denied, err := s.ledger.IsDenied(ctx, accessToken)
	if err != nil {
		return model.User{}, err
	}
	if denied {
		return model.User{}, ErrTokenRevoked
	}
	claims, err := utils.VerifyToken(s.cfg.JWTSecret, accessToken)
	if err != nil {
		return model.User{}, ErrInvalidToken
	}
	u, err := s.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrInvalidToken
		}
		return model.User{}, err
	}
	return u, nil
}

// Rotate exchanges a still-active refresh secret for a fresh token pair.
// Unknown, expired and already-revoked secrets are indistinguishable to
// the caller. The exchanged row is left to expire on its own unless
// RotateRevokesOld is set.
func (s *AuthService) Rotate(ctx context.Context, refreshPlain string, ip, userAgent *string) (TokenPair, model.User, error) {
	hash := utils.HashRefreshRaw(refreshPlain)
	now := time.Now().UTC()
	row, err := s.tokens.GetActive(ctx, hash, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, model.User{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, model.User{}, err
	}
	u, err := s.users.GetByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, model.User{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, model.User{}, err
	}
	if s.cfg.RotateRevokesOld {
		if err := s.tokens.Revoke(ctx, hash, now); err != nil {
			return TokenPair{}, model.User{}, err
		}
	}
	pair, err := s.IssueTokenPair(ctx, u, ip, userAgent)
	if err != nil {
		return TokenPair{}, model.User{}, err
	}
	return pair, u, nil
}

// Logout ends a session. The refresh row is revoked when it exists and is
// not revoked yet; the access token goes into the ledger for its remaining
// lifetime. Both halves are idempotent, so a repeated logout is a no-op
// rather than an error.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshPlain string) error {
	if refreshPlain != "" {
		hash := utils.HashRefreshRaw(refreshPlain)
		row, err := s.tokens.GetByHash(ctx, hash)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// Unknown token: nothing to revoke.
		case err != nil:
			return err
		case row.RevokedAt == nil:
			if err := s.tokens.Revoke(ctx, hash, time.Now().UTC()); err != nil {
				return err
			}
		}
	}

	claims, err := utils.VerifyToken(s.cfg.JWTSecret, accessToken)
	if err != nil {
		// Expired or garbage access tokens are unusable anyway; denying
		// them would only grow the ledger.
		return nil
	}
	ttl := time.Until(claims.Exp)
	return s.ledger.Deny(ctx, accessToken, ttl)
}

// ConfirmEmail verifies a confirmation token and flips the confirmed flag
// of the user owning the embedded address. The flag only ever moves one
// way; confirming an already-confirmed account reports already=true and
// changes nothing.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (already bool, err error) {
	claims, err := utils.VerifyToken(s.cfg.JWTSecret, token)
	if err != nil {
		return false, ErrInvalidToken
	}
	u, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return false, err // repository.ErrNotFound maps to 400 at the handler
	}
	if u.Confirmed {
		return true, nil
	}
	return false, s.users.ConfirmEmail(ctx, u.Email)
}

// RequestConfirmEmail re-sends the confirmation email for an unconfirmed
// account. An unknown address is an explicit ErrNotFound; a confirmed one
// reports already=true without sending anything.
func (s *AuthService) RequestConfirmEmail(ctx context.Context, email string) (already bool, err error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if u.Confirmed {
		return true, nil
	}
	s.sendConfirmation(ctx, u)
	return false, nil
}
