package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"repairjournal/internal/app/client/kv"
	"repairjournal/internal/domain/identity"
)

const (
	KeyAuthenticated = "repair_journal_isAuthenticated"
	KeyCurrentUser   = "repair_journal_currentUser"

	authenticatedValue = "true"
)

var (
	ErrNoSession = errors.New("session: not authenticated")
	ErrCorrupt   = errors.New("session: stored identity is corrupt")
)

// Session - текущий вошедший пользователь
type Session struct {
	Role        identity.Role        `json:"role"`
	Name        string               `json:"name"`
	Permissions identity.Permissions `json:"permissions"`
}

func New(role identity.Role, name string) Session {
	return Session{
		Role:        role,
		Name:        name,
		Permissions: identity.PermissionsFor(role),
	}
}

// Store хранит сессию двумя ключами: флаг аутентификации и сериализованная учетная запись
type Store struct {
	kv kv.Store
}

func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

func (s *Store) Save(ctx context.Context, sess Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := s.kv.SetMany(ctx, map[string]string{
		KeyAuthenticated: authenticatedValue,
		KeyCurrentUser:   string(payload),
	}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

// Load читает сессию; права пересчитываются из роли, сохраненным правам не доверяем
func (s *Store) Load(ctx context.Context) (Session, error) {
	flag, ok, err := s.kv.Get(ctx, KeyAuthenticated)
	if err != nil {
		return Session{}, fmt.Errorf("load session flag: %w", err)
	}
	if !ok || flag != authenticatedValue {
		return Session{}, ErrNoSession
	}

	raw, ok, err := s.kv.Get(ctx, KeyCurrentUser)
	if err != nil {
		return Session{}, fmt.Errorf("load session user: %w", err)
	}
	if !ok {
		return Session{}, ErrCorrupt
	}

	var stored Session
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !stored.Role.Valid() || stored.Name == "" {
		return Session{}, ErrCorrupt
	}

	return New(stored.Role, stored.Name), nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyAuthenticated, KeyCurrentUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
