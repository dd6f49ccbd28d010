// Package auth handles participant registration and token-based
// authentication for the market API. Participants map one-to-one onto
// ledger accounts; balances live in the ledger, not here.
package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/gridmarket/gridmarket/internal/domain"
)

// Participant is a registered market participant.
type Participant struct {
	Name         string
	PasswordHash string
	Admin        bool
	CreatedAt    time.Time
}

// Identity is the authenticated caller extracted from a verified token.
type Identity struct {
	Name  string
	Admin bool
}

// Registry is a thread-safe in-memory store of participants keyed by name.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]*Participant
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{participants: make(map[string]*Participant)}
}

// Create adds a participant. Returns domain.ErrParticipantExists if the
// name is taken.
func (r *Registry) Create(p *Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.participants[p.Name]; exists {
		return domain.ErrParticipantExists
	}
	r.participants[p.Name] = p
	return nil
}

// Get retrieves a participant by name.
func (r *Registry) Get(name string) (*Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.participants[name]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	return p, nil
}

// Exists reports whether a participant with the given name is registered.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.participants[name]
	return ok
}

// Service issues and verifies participant tokens.
type Service struct {
	registry *Registry
	secret   []byte
	tokenTTL time.Duration
}

// NewService creates an auth Service signing tokens with the given secret.
func NewService(registry *Registry, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		registry: registry,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// Register creates a new participant with a hashed password.
func (s *Service) Register(name, password string, admin bool) (*Participant, error) {
	if name == "" {
		return nil, &domain.ValidationError{Message: "name cannot be empty"}
	}
	if len(name) > 64 {
		return nil, &domain.ValidationError{Message: "name too long (max 64 characters)"}
	}
	if password == "" {
		return nil, &domain.ValidationError{Message: "password cannot be empty"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	p := &Participant{
		Name:         name,
		PasswordHash: string(hash),
		Admin:        admin,
		CreatedAt:    time.Now(),
	}
	if err := s.registry.Create(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Login verifies credentials and returns a signed JWT.
func (s *Service) Login(name, password string) (string, error) {
	p, err := s.registry.Get(name)
	if err != nil {
		return "", domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return "", domain.ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   p.Name,
		"admin": p.Admin,
		"exp":   time.Now().Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token and returns the caller's identity.
func (s *Service) Verify(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	name, _ := claims["sub"].(string)
	if name == "" || !s.registry.Exists(name) {
		return nil, domain.ErrUnauthorized
	}
	admin, _ := claims["admin"].(bool)

	return &Identity{Name: name, Admin: admin}, nil
}
