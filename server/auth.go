package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTTL         = 7 * 24 * time.Hour
	secretSettingKey = "jwt_secret"
	secretLen        = 32

	minPasswordLen = 4
	minUsernameLen = 2
	maxUsernameLen = 16

	loginWindow      = time.Minute
	maxLoginAttempts = 10
)

// bcryptCost is a variable so tests can lower it
var bcryptCost = 12

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrRateLimited        = errors.New("too many login attempts, try again later")
	ErrInvalidToken       = errors.New("invalid token")
)

// validationError is a rejected username or password, safe to show the user
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

// pilotClaims is the token payload
type pilotClaims struct {
	PilotID  int64  `json:"pid"`
	Username string `json:"usr"`
	jwt.RegisteredClaims
}

// loginLimiter counts attempts per key in fixed windows
type loginLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	buckets map[string]loginBucket
}

type loginBucket struct {
	count int
	until time.Time
}

func newLoginLimiter(window time.Duration, limit int) *loginLimiter {
	return &loginLimiter{window: window, limit: limit, buckets: make(map[string]loginBucket)}
}

// allow records an attempt for key and reports whether it is within budget
func (l *loginLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if !now.Before(b.until) {
		l.prune(now)
		b = loginBucket{until: now.Add(l.window)}
	}
	b.count++
	l.buckets[key] = b
	return b.count <= l.limit
}

func (l *loginLimiter) prune(now time.Time) {
	for k, b := range l.buckets {
		if !now.Before(b.until) {
			delete(l.buckets, k)
		}
	}
}

// Auth registers pilots and issues signed tokens for them
type Auth struct {
	db     *DB
	secret []byte
	logins *loginLimiter
}

func NewAuth(db *DB) *Auth {
	return &Auth{
		db:     db,
		secret: signingSecret(db),
		logins: newLoginLimiter(loginWindow, maxLoginAttempts),
	}
}

// signingSecret reads the HMAC key from settings, creating and storing one
// on first run so tokens outlive a restart.
func signingSecret(db *DB) []byte {
	if stored := db.GetSetting(secretSettingKey); stored != "" {
		if b, err := hex.DecodeString(stored); err == nil && len(b) == secretLen {
			return b
		}
		log.Printf("auth: stored secret unreadable, generating a new one")
	}
	secret := make([]byte, secretLen)
	if _, err := rand.Read(secret); err != nil {
		panic("auth: generate secret: " + err.Error())
	}
	if err := db.SetSetting(secretSettingKey, hex.EncodeToString(secret)); err != nil {
		log.Printf("auth: persist secret: %v", err)
	}
	return secret
}

func validateCredentials(username, password string) error {
	if n := len(username); n < minUsernameLen || n > maxUsernameLen {
		return &validationError{fmt.Sprintf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)}
	}
	if len(password) < minPasswordLen {
		return &validationError{fmt.Sprintf("password must be at least %d characters", minPasswordLen)}
	}
	return nil
}

// Register creates an account and returns its id and a token
func (a *Auth) Register(username, password string) (int64, string, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return 0, "", err
	}

	taken, err := a.db.UsernameExists(username)
	if err != nil {
		return 0, "", fmt.Errorf("check username: %w", err)
	}
	if taken {
		return 0, "", ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return 0, "", fmt.Errorf("hash password: %w", err)
	}
	id, err := a.db.CreatePilot(username, string(hash))
	if err != nil {
		return 0, "", fmt.Errorf("create pilot: %w", err)
	}

	token, err := a.issue(id, username)
	return id, token, err
}

// Login checks a password and returns the pilot id and a fresh token.
// Attempts are limited per ip.
func (a *Auth) Login(username, password, ip string) (int64, string, error) {
	if !a.logins.allow(ip, time.Now()) {
		return 0, "", ErrRateLimited
	}

	pilot, err := a.db.GetPilotByUsername(strings.TrimSpace(username))
	if err != nil {
		return 0, "", fmt.Errorf("lookup pilot: %w", err)
	}
	if pilot == nil || pilot.PassHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(pilot.PassHash), []byte(password)) != nil {
		return 0, "", ErrInvalidCredentials
	}

	token, err := a.issue(pilot.ID, pilot.Username)
	return pilot.ID, token, err
}

// ValidateToken returns the pilot id and username carried by token
func (a *Auth) ValidateToken(token string) (int64, string, error) {
	var claims pilotClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.PilotID == 0 || claims.Username == "" {
		return 0, "", ErrInvalidToken
	}
	return claims.PilotID, claims.Username, nil
}

func (a *Auth) issue(pilotID int64, username string) (string, error) {
	now := time.Now()
	claims := pilotClaims{
		PilotID:  pilotID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}
