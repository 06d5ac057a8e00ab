package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"upload-broker/config"
	"upload-broker/internal/model"
	"upload-broker/internal/util"
)

type GrantRepository struct {
	*config.Database
}

func NewGrantRepository(database *config.Database) *GrantRepository {
	return &GrantRepository{database}
}

// Create : сохраняет новый грант со статусом issued
func (r *GrantRepository) Create(ctx context.Context, exec sqlx.ExtContext, grant *model.UploadGrant) error {
	query := `
		INSERT INTO upload_grants
			(uuid, owner_uuid, declared_file_name, declared_content_type, declared_size_bytes,
			 staging_key, status, issued_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`
	_, err := exec.ExecContext(
		ctx,
		query,
		grant.UUID,
		grant.OwnerUUID,
		grant.DeclaredFileName,
		grant.DeclaredContentType,
		grant.DeclaredSizeBytes,
		grant.StagingKey,
		grant.Status,
		grant.IssuedAt,
		grant.ExpiresAt)

	if err != nil {
		return util.LogError("[GrantRepo] ошибка вставки гранта в БД", err)
	}

	return nil
}

// GetByUUIDAndOwner : возвращает грант только его владельцу.
// Несуществующий uuid и чужой uuid дают одинаковый ErrGrantNotFound,
// перебор чужих идентификаторов ничего не раскрывает.
func (r *GrantRepository) GetByUUIDAndOwner(ctx context.Context, exec sqlx.ExtContext, uploadUUID string, ownerUUID string) (*model.UploadGrant, error) {
	query := `
		SELECT uuid, owner_uuid, declared_file_name, declared_content_type, declared_size_bytes,
		       staging_key, status, issued_at, expires_at, updated_at
		FROM upload_grants
		WHERE uuid = $1 AND owner_uuid = $2
	`

	var grant model.UploadGrant
	err := sqlx.GetContext(ctx, exec, &grant, query, uploadUUID, ownerUUID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrGrantNotFound
	}
	if err != nil {
		return nil, util.LogError("[GrantRepo] ошибка чтения гранта", err)
	}

	return &grant, nil
}

// MarkUploaded : условный переход issued -> uploaded.
// Срабатывает только пока окно записи не закрыто, возвращает false,
// если статус уже другой или грант истёк.
func (r *GrantRepository) MarkUploaded(ctx context.Context, exec sqlx.ExtContext, uploadUUID string, ownerUUID string, now time.Time) (bool, error) {
	query := `
		UPDATE upload_grants
		SET status = $4, updated_at = NOW()
		WHERE uuid = $1 AND owner_uuid = $2 AND status = $3 AND expires_at > $5
	`

	result, err := exec.ExecContext(ctx, query, uploadUUID, ownerUUID, model.GrantStatusIssued, model.GrantStatusUploaded, now)
	if err != nil {
		return false, util.LogError("[GrantRepo] не удалось подтвердить загрузку", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, util.LogError("[GrantRepo] не удалось проверить обновление", err)
	}

	return rowsAffected > 0, nil
}

// ClaimPromotion : условный переход uploaded -> promoted.
// Ровно один из конкурентных вызовов получает true, остальные
// перечитывают грант и уходят в ветку идемпотентного повтора.
func (r *GrantRepository) ClaimPromotion(ctx context.Context, exec sqlx.ExtContext, uploadUUID string, now time.Time) (bool, error) {
	query := `
		UPDATE upload_grants
		SET status = $3, updated_at = NOW()
		WHERE uuid = $1 AND status = $2 AND expires_at > $4
	`

	result, err := exec.ExecContext(ctx, query, uploadUUID, model.GrantStatusUploaded, model.GrantStatusPromoted, now)
	if err != nil {
		return false, util.LogError("[GrantRepo] не удалось зафиксировать промоцию", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, util.LogError("[GrantRepo] не удалось проверить обновление", err)
	}

	return rowsAffected > 0, nil
}

// MarkRejected : условный переход uploaded -> rejected.
// Фиксирует терминальный отказ по несовпадению сигнатуры,
// повторная промоция такого гранта невозможна.
func (r *GrantRepository) MarkRejected(ctx context.Context, exec sqlx.ExtContext, uploadUUID string) (bool, error) {
	query := `
		UPDATE upload_grants
		SET status = $3, updated_at = NOW()
		WHERE uuid = $1 AND status = $2
	`

	result, err := exec.ExecContext(ctx, query, uploadUUID, model.GrantStatusUploaded, model.GrantStatusRejected)
	if err != nil {
		return false, util.LogError("[GrantRepo] не удалось пометить грант отклонённым", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, util.LogError("[GrantRepo] не удалось проверить обновление", err)
	}

	return rowsAffected > 0, nil
}

// MarkExpired : условный переход issued/uploaded -> expired.
// Уборщик никогда не трогает promoted гранты.
func (r *GrantRepository) MarkExpired(ctx context.Context, exec sqlx.ExtContext, uploadUUID string, before time.Time) (bool, error) {
	query := `
		UPDATE upload_grants
		SET status = $4, updated_at = NOW()
		WHERE uuid = $1 AND status IN ($2, $3) AND expires_at < $5
	`

	result, err := exec.ExecContext(ctx, query, uploadUUID, model.GrantStatusIssued, model.GrantStatusUploaded, model.GrantStatusExpired, before)
	if err != nil {
		return false, util.LogError("[GrantRepo] не удалось пометить грант истёкшим", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, util.LogError("[GrantRepo] не удалось проверить обновление", err)
	}

	return rowsAffected > 0, nil
}

// ListExpired : гранты, чьё окно записи закрыто, а staging-объект ещё не убран
func (r *GrantRepository) ListExpired(ctx context.Context, exec sqlx.ExtContext, before time.Time, limit int) ([]model.UploadGrant, error) {
	query := `
		SELECT uuid, owner_uuid, declared_file_name, declared_content_type, declared_size_bytes,
		       staging_key, status, issued_at, expires_at, updated_at
		FROM upload_grants
		WHERE status IN ($1, $2) AND expires_at < $3
		ORDER BY expires_at ASC
		LIMIT $4
	`

	grants := []model.UploadGrant{}
	err := sqlx.SelectContext(ctx, exec, &grants, query, model.GrantStatusIssued, model.GrantStatusUploaded, before, limit)
	if err != nil {
		return nil, util.LogError("[GrantRepo] не удалось получить список истёкших грантов", err)
	}

	return grants, nil
}

func (r *GrantRepository) BeginTX(ctx context.Context) (sqlx.ExtContext, func() error, func() error, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return tx, func() error { return tx.Rollback() }, func() error { return tx.Commit() }, nil
}
