package projection

import "fmt"

// Коды ошибок ядра репозитория проекций (см. SPEC_FULL §7).
const (
	ErrCodeInvalidArgument        = "INVALID_ARGUMENT"
	ErrCodeVersionResolutionFailed = "VERSION_RESOLUTION_FAILED"
	ErrCodeWriteFailed             = "WRITE_FAILED"
	ErrCodeReadFailed              = "READ_FAILED"
)

// Error — типизированная ошибка ядра, несущая код и исходную причину.
// Форма заимствована у FrameworkError фреймворка, но ядро определяет
// собственный узкий тип вместо импорта framework/core — зависимость от
// DI-слоя фреймворка запрещена контрактом ядра (Non-goal §1).
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// InvalidArgument — синхронная ошибка валидации, никогда не глушится.
func InvalidArgument(message string) *Error {
	return &Error{Code: ErrCodeInvalidArgument, Message: message}
}

// VersionResolutionFailed — проекция version-manager не смогла быть загружена.
// Кеш версий при этом не инвалидируется вызывающей стороной.
func VersionResolutionFailed(cause error) *Error {
	return &Error{Code: ErrCodeVersionResolutionFailed, Message: "failed to resolve projection versions", Cause: cause}
}

// WriteFailed — запись одного коммита (id, version) провалилась; остальные
// версии продолжают запись независимо.
func WriteFailed(version Version, cause error) *Error {
	return &Error{
		Code:    ErrCodeWriteFailed,
		Message: fmt.Sprintf("write failed for version %s#%d", version.Name, version.Revision),
		Cause:   cause,
	}
}

// ReadFailed — любое исключение во время Get; состояние не мутируется.
func ReadFailed(cause error) *Error {
	return &Error{Code: ErrCodeReadFailed, Message: "read failed", Cause: cause}
}
