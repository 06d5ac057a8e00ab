package ports

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"upload-broker/internal/model"
)

// GrantRepository : SQL слой реестра грантов.
// Все переходы статусов выполняются условными UPDATE (compare-and-swap),
// проигравший конкурентный вызов получает updated=false и перечитывает грант.
type GrantRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, grant *model.UploadGrant) error
	GetByUUIDAndOwner(ctx context.Context, exec sqlx.ExtContext, uploadUUID string, ownerUUID string) (*model.UploadGrant, error)
	MarkUploaded(ctx context.Context, exec sqlx.ExtContext, uploadUUID string, ownerUUID string, now time.Time) (bool, error)
	ClaimPromotion(ctx context.Context, exec sqlx.ExtContext, uploadUUID string, now time.Time) (bool, error)
	MarkRejected(ctx context.Context, exec sqlx.ExtContext, uploadUUID string) (bool, error)
	MarkExpired(ctx context.Context, exec sqlx.ExtContext, uploadUUID string, before time.Time) (bool, error)
	ListExpired(ctx context.Context, exec sqlx.ExtContext, before time.Time, limit int) ([]model.UploadGrant, error)
	BeginTX(ctx context.Context) (sqlx.ExtContext, func() error, func() error, error)
}

// PermanentObjectRepository : SQL слой постоянных объектов
type PermanentObjectRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, object *model.PermanentObject) error
	GetByUploadUUID(ctx context.Context, exec sqlx.ExtContext, uploadUUID string) (*model.PermanentObject, error)
}

type LedgerService interface {
	IssueGrant(ctx context.Context, ownerUUID string, role string, fileName string, contentType string, sizeBytes int64) (*model.UploadGrant, string, error)
	GetUpload(ctx context.Context, uploadUUID string, ownerUUID string) (*model.UploadGrant, error)
	MarkUploaded(ctx context.Context, uploadUUID string, ownerUUID string) error
}

// PromotionService : финализация загрузки.
// replayed=true означает идемпотентный повтор уже выполненной промоции.
type PromotionService interface {
	Promote(ctx context.Context, uploadUUID string, ownerUUID string, destination string, overwrite bool) (*model.PermanentObject, bool, error)
}
