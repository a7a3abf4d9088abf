package identity

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Identity - учетная запись из справочника пользователей
type Identity struct {
	Name     string `mapstructure:"name" json:"name"`
	Role     Role   `mapstructure:"role" json:"role"`
	Password string `mapstructure:"password" json:"-"`
}

// Provider ищет учетную запись и проверяет пароль
type Provider interface {
	Authenticate(ctx context.Context, role Role, name, password string) (Identity, error)
}

// Directory - статический справочник: роль -> список учетных записей.
// После создания не изменяется.
type Directory struct {
	byRole map[Role][]Identity
}

func NewDirectory(entries map[Role][]Identity) (*Directory, error) {
	byRole := make(map[Role][]Identity, len(entries))
	for role, list := range entries {
		if !role.Valid() {
			return nil, fmt.Errorf("directory: unknown role %q", role)
		}

		seen := make(map[string]struct{}, len(list))
		copied := make([]Identity, 0, len(list))
		for _, id := range list {
			if id.Name == "" {
				return nil, fmt.Errorf("directory: empty name in role %q", role)
			}
			if _, dup := seen[id.Name]; dup {
				return nil, fmt.Errorf("directory: duplicate name %q in role %q", id.Name, role)
			}
			seen[id.Name] = struct{}{}

			id.Role = role
			if role.Passwordless() {
				id.Password = ""
			}
			copied = append(copied, id)
		}
		byRole[role] = copied
	}

	return &Directory{byRole: byRole}, nil
}

// DefaultDirectory - встроенный справочник пользователей журнала.
// Пароли хранятся в открытом виде.
func DefaultDirectory() *Directory {
	d, err := NewDirectory(map[Role][]Identity{
		RoleAdmin: {
			{Name: "Попов Н.В.", Password: "Tab5180"},
		},
		RoleAuthor: {
			{Name: "Смирнова Е.А.", Password: "Avt2041"},
			{Name: "Кузнецов И.П.", Password: "Avt3307"},
		},
		RoleRepair: {
			{Name: "Ремонтная бригада №1"},
			{Name: "Ремонтная бригада №2"},
		},
	})
	if err != nil {
		panic(err)
	}
	return d
}

// Names возвращает имена, доступные для выбора в роли
func (d *Directory) Names(role Role) []string {
	list := d.byRole[role]
	names := make([]string, 0, len(list))
	for _, id := range list {
		names = append(names, id.Name)
	}
	return names
}

func (d *Directory) Lookup(role Role, name string) (Identity, bool) {
	for _, id := range d.byRole[role] {
		if id.Name == name {
			return id, true
		}
	}
	return Identity{}, false
}

func (d *Directory) Authenticate(_ context.Context, role Role, name, password string) (Identity, error) {
	id, ok := d.Lookup(role, name)
	if !ok {
		return Identity{}, ErrUnknownIdentity
	}

	if role.Passwordless() {
		return id, nil
	}

	if !matchPassword(id.Password, password) {
		return Identity{}, ErrInvalidPassword
	}

	return id, nil
}

func matchPassword(stored, entered string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(entered)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(entered)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
