package ports

import (
	"context"
	"time"
)

// StagingStorage : staging-хранилище поверх S3.
// Клиент пишет только по одноразовому pre-signed URL, сырые креденшелы
// хранилища наружу не выдаются.
type StagingStorage interface {
	GeneratePresignedPutURL(ctx context.Context, key string, contentType string, expire time.Duration) (string, error)
	HeadObject(ctx context.Context, key string) (int64, error)
	ReadPrefix(ctx context.Context, key string, n int) ([]byte, error)
	CopyObject(ctx context.Context, sourceKey string, destinationKey string, overwrite bool) error
	DeleteObject(ctx context.Context, key string) error
}
