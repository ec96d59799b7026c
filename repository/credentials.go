package repository

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnknownToken       = errors.New("unknown session token")
	ErrAlreadyLoggedIn    = errors.New("user is already logged in")
)

// CredentialStore owns all persisted account state (password hashes, ranks,
// session tokens) plus the in-process logged-in flags. Every method is
// atomic; callers never see or manage the store's internal locking.
type CredentialStore interface {
	// Authenticate reports whether username/password match a stored account.
	Authenticate(username, password string) (bool, error)
	// CreateUser registers a new account with the default rank.
	// Returns ErrUserExists on a duplicate username.
	CreateUser(username, password string) error

	// Rank returns the user's current rank.
	Rank(username string) (int, error)
	// IncrementRank adds delta (possibly negative) to the user's rank.
	IncrementRank(username string, delta int) error

	// IssueToken generates a fresh session token for the user, stores its
	// hash and returns the plaintext token for the wire.
	IssueToken(username string) (string, error)
	// ResolveToken maps a plaintext token back to its username.
	// Returns ErrUnknownToken if no stored hash matches.
	ResolveToken(token string) (string, error)

	// Login atomically marks the user as logged in; returns
	// ErrAlreadyLoggedIn if the flag was already set.
	Login(username string) error
	Logout(username string)
	IsLoggedIn(username string) bool
}

// Hasher hashes and verifies secrets (passwords, session tokens).
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) bool
}

// BcryptHasher implements Hasher with bcrypt at the default cost.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(secret string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h BcryptHasher) Compare(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// generateToken returns an opaque random session token.
func generateToken() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(tokenBytes), nil
}
