package ports

import (
	"context"

	"upload-broker/internal/model"
)

// GrantCache : Redis слой для статусов грантов
type GrantCache interface {
	SetGrant(ctx context.Context, grant *model.UploadGrant) error
	GetGrant(ctx context.Context, uploadUUID string) (*model.UploadGrant, error)
	DeleteGrant(ctx context.Context, uploadUUID string) error
}

// RateLimiter : счётчик выдачи грантов в фиксированном окне.
// Инкремент и проверка атомарны, конкурентные запросы одного
// владельца не теряют обновлений.
type RateLimiter interface {
	Allow(ctx context.Context, ownerUUID string) (bool, error)
}
