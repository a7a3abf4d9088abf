package identity

// Role - роль пользователя журнала
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleAuthor Role = "author"
	RoleRepair Role = "repair"
)

// Roles возвращает роли в порядке отображения на экране входа
func Roles() []Role {
	return []Role{RoleAdmin, RoleAuthor, RoleRepair}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAuthor, RoleRepair:
		return true
	}
	return false
}

// Passwordless сообщает, что у учетных записей роли нет пароля
func (r Role) Passwordless() bool {
	return r == RoleRepair
}

func (r Role) String() string {
	return string(r)
}

// Permissions всегда вычисляются из роли и не хранятся отдельно
type Permissions struct {
	CanAdd      bool `json:"canAdd"`
	CanDelete   bool `json:"canDelete"`
	CanComplete bool `json:"canComplete"`
	CanExport   bool `json:"canExport"`
}

func PermissionsFor(role Role) Permissions {
	switch role {
	case RoleAdmin:
		return Permissions{CanAdd: true, CanDelete: true, CanComplete: true, CanExport: true}
	case RoleAuthor:
		return Permissions{CanAdd: true, CanExport: true}
	case RoleRepair:
		return Permissions{CanComplete: true}
	default:
		return Permissions{}
	}
}
