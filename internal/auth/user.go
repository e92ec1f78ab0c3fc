package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/slugnotes/slugnotes/internal/db"
)

// Errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidUsername    = errors.New("username must be 3-32 characters: letters, digits, dot, dash, underscore")
)

// Argon2id parameters (OWASP second recommendation: m=19456, t=2, p=1).
// Parameters are embedded in each hash string, so older hashes with
// different parameters still verify correctly.
const (
	argon2Time    = 2
	argon2Memory  = 19 * 1024 // ~19 MiB
	argon2Threads = 1
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,32}$`)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// User represents a user account.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// UserService handles account registration and credential verification
// against the shared application database.
type UserService struct {
	db    *db.AppDB
	clock Clock
}

// NewUserService creates a new user service.
func NewUserService(appDB *db.AppDB) *UserService {
	return &UserService{
		db:    appDB,
		clock: realClock{},
	}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *UserService) SetClock(c Clock) {
	s.clock = c
}

// Register creates a new account with username/password.
// Returns ErrAccountExists if the username is already taken.
func (s *UserService) Register(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	userID := "user-" + uuid.New().String()
	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, userID, username, passwordHash, now.Unix())
	if err != nil {
		if db.IsUniqueViolation(err, "users.username") {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	return &User{
		ID:        userID,
		Username:  username,
		CreatedAt: now,
	}, nil
}

// VerifyLogin verifies username/password credentials for an existing account.
// Returns ErrInvalidCredentials if the user doesn't exist or the password is
// wrong, without distinguishing between the two.
func (s *UserService) VerifyLogin(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)

	var (
		userID       string
		passwordHash string
		createdAt    int64
	)
	err := s.db.DB().QueryRowContext(ctx, `
		SELECT id, password_hash, created_at FROM users WHERE username = ?
	`, username).Scan(&userID, &passwordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Burn comparable time so missing users are not cheaper to
			// probe than wrong passwords.
			VerifyPassword(password, dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	if passwordHash == "" || !VerifyPassword(password, passwordHash) {
		return nil, ErrInvalidCredentials
	}

	return &User{
		ID:        userID,
		Username:  username,
		CreatedAt: time.Unix(createdAt, 0),
	}, nil
}

// GetByID loads a user account by id.
func (s *UserService) GetByID(ctx context.Context, userID string) (*User, error) {
	var (
		username  string
		createdAt int64
	)
	err := s.db.DB().QueryRowContext(ctx, `
		SELECT username, created_at FROM users WHERE id = ?
	`, userID).Scan(&username, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &User{
		ID:        userID,
		Username:  username,
		CreatedAt: time.Unix(createdAt, 0),
	}, nil
}

// ValidatePasswordStrength checks if a password meets minimum requirements.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword hashes a password using Argon2id.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// Encode as: $argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argon2Memory, argon2Time, argon2Threads, encodedSalt, encodedHash), nil
}

// VerifyPassword checks if a password matches an encoded Argon2id hash.
func VerifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}
	if parts[1] != "argon2id" || parts[2] != "v=19" {
		return false
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}

	saltBytes, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	hashBytes, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	hashLen := len(hashBytes)
	if hashLen <= 0 || hashLen > argon2KeyLen*2 {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), saltBytes, iterations, memory, threads, uint32(hashLen))
	return subtle.ConstantTimeCompare(hashBytes, computedHash) == 1
}

// dummyHash is verified against when a username does not exist, keeping
// login timing roughly constant. The password behind it is random and
// discarded; no credential will ever match it.
var dummyHash = func() string {
	h, err := HashPassword(uuid.New().String())
	if err != nil {
		return "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	}
	return h
}()
