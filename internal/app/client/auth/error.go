package auth

import "time"

// MessageTTL - время показа сообщения об ошибке входа
const MessageTTL = 3 * time.Second

type Code string

const (
	CodeNoSelection     Code = "no_selection"
	CodeEmptyPassword   Code = "empty_password"
	CodeInvalidPassword Code = "invalid_password"
	CodeUnknownIdentity Code = "unknown_identity"
)

// Error - ошибка проверки входа, показывается пользователю
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is позволяет сравнивать ошибки по коду через errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNoSelection     = &Error{Code: CodeNoSelection, Message: "Выберите пользователя"}
	ErrEmptyPassword   = &Error{Code: CodeEmptyPassword, Message: "Введите пароль"}
	ErrInvalidPassword = &Error{Code: CodeInvalidPassword, Message: "Неверный пароль"}
	ErrUnknownIdentity = &Error{Code: CodeUnknownIdentity, Message: "Пользователь не найден"}
)
