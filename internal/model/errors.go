package model

import "errors"

// Ошибки брокера загрузок. Хендлеры сопоставляют их с HTTP статусами
// через errors.Is, клиент всегда получает конкретную причину отказа.
var (
	// выдача гранта
	ErrQuotaExceeded         = errors.New("заявленный размер превышает лимит роли")
	ErrContentTypeNotAllowed = errors.New("тип содержимого не входит в разрешённый список")
	ErrRateLimited           = errors.New("превышен лимит запросов на выдачу грантов")

	// поиск: неизвестный uploadId и чужой uploadId неразличимы для вызывающего
	ErrGrantNotFound = errors.New("грант не найден")

	// подтверждение загрузки
	ErrAlreadyUploaded = errors.New("загрузка уже подтверждена")
	ErrGrantExpired    = errors.New("срок действия гранта истёк")

	// промоция
	ErrNotReady       = errors.New("загрузка ещё не подтверждена")
	ErrSourceMissing  = errors.New("staging-объект не найден или грант истёк")
	ErrTypeMismatch   = errors.New("содержимое не соответствует заявленному типу")
	ErrCopyFailed     = errors.New("не удалось скопировать объект в постоянное хранилище")
	ErrConflict       = errors.New("объект назначения уже существует")
	ErrBadDestination = errors.New("недопустимый префикс назначения")

	// staging-хранилище
	ErrObjectNotFound = errors.New("объект не найден в хранилище")
)

// ReasonForError : машинно-читаемый код причины для тела ответа
func ReasonForError(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrContentTypeNotAllowed):
		return "content_type_not_allowed"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrGrantNotFound):
		return "forbidden"
	case errors.Is(err, ErrAlreadyUploaded):
		return "already_uploaded"
	case errors.Is(err, ErrGrantExpired):
		return "grant_expired"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, ErrSourceMissing):
		return "source_missing"
	case errors.Is(err, ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrConflict):
		return "destination_conflict"
	case errors.Is(err, ErrBadDestination):
		return "bad_destination"
	case errors.Is(err, ErrCopyFailed):
		return "copy_failed"
	default:
		return "internal_error"
	}
}
