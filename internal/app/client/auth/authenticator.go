package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slog"

	"repairjournal/internal/app/client/session"
	"repairjournal/internal/domain/identity"
)

type SessionStore interface {
	Save(ctx context.Context, sess session.Session) error
	Clear(ctx context.Context) error
}

type selection struct {
	role identity.Role
	name string
}

type Authenticator struct {
	provider identity.Provider
	sessions SessionStore
	log      *slog.Logger

	mu       sync.Mutex
	selected *selection
}

func New(provider identity.Provider, sessions SessionStore, log *slog.Logger) *Authenticator {
	return &Authenticator{
		provider: provider,
		sessions: sessions,
		log:      log.With(slog.String("component", "authenticator")),
	}
}

func (a *Authenticator) SelectIdentity(role identity.Role, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.selected = &selection{role: role, name: name}
}

func (a *Authenticator) Selected() (identity.Role, string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.selected == nil {
		return "", "", false
	}
	return a.selected.role, a.selected.name, true
}

// AttemptLogin проверяет выбранную учетную запись и сохраняет сессию.
// Для роли без пароля проверка пароля пропускается.
func (a *Authenticator) AttemptLogin(ctx context.Context, password string) (session.Session, error) {
	role, name, ok := a.Selected()
	if !ok {
		return session.Session{}, ErrNoSelection
	}

	if !role.Passwordless() && password == "" {
		return session.Session{}, ErrEmptyPassword
	}

	id, err := a.provider.Authenticate(ctx, role, name, password)
	switch {
	case errors.Is(err, identity.ErrInvalidPassword):
		a.log.Debug("invalid password", slog.String("role", role.String()), slog.String("name", name))
		return session.Session{}, ErrInvalidPassword
	case errors.Is(err, identity.ErrUnknownIdentity):
		return session.Session{}, ErrUnknownIdentity
	case err != nil:
		return session.Session{}, fmt.Errorf("authenticate: %w", err)
	}

	sess := session.New(id.Role, id.Name)
	if err := a.sessions.Save(ctx, sess); err != nil {
		return session.Session{}, err
	}

	a.log.Info("login succeeded", slog.String("role", role.String()), slog.String("name", name))
	return sess, nil
}

func (a *Authenticator) Logout(ctx context.Context) error {
	a.mu.Lock()
	a.selected = nil
	a.mu.Unlock()

	return a.sessions.Clear(ctx)
}
