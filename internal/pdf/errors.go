package pdf

import "fmt"

// Error はエラーコードと利用者向けメッセージを保持するAPIエラーです。
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返します。
func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}
