package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"upload-broker/config"
	"upload-broker/internal/model"
	"upload-broker/internal/util"
)

type PermanentObjectRepository struct {
	*config.Database
}

func NewPermanentObjectRepository(database *config.Database) *PermanentObjectRepository {
	return &PermanentObjectRepository{database}
}

// Create : сохраняет постоянный объект.
// upload_uuid уникален, один грант даёт не больше одной успешной промоции.
func (r *PermanentObjectRepository) Create(ctx context.Context, exec sqlx.ExtContext, object *model.PermanentObject) error {
	query := `
		INSERT INTO permanent_objects (uuid, upload_uuid, owner_uuid, destination_key, public_reference, promoted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := exec.ExecContext(
		ctx,
		query,
		object.UUID,
		object.UploadUUID,
		object.OwnerUUID,
		object.DestinationKey,
		object.PublicReference,
		object.PromotedAt)

	if err != nil {
		return util.LogError("[ObjectRepo] ошибка вставки постоянного объекта", err)
	}

	return nil
}

// GetByUploadUUID : результат ранее выполненной промоции для идемпотентного повтора
func (r *PermanentObjectRepository) GetByUploadUUID(ctx context.Context, exec sqlx.ExtContext, uploadUUID string) (*model.PermanentObject, error) {
	query := `
		SELECT uuid, upload_uuid, owner_uuid, destination_key, public_reference, promoted_at
		FROM permanent_objects
		WHERE upload_uuid = $1
	`

	var object model.PermanentObject
	err := sqlx.GetContext(ctx, exec, &object, query, uploadUUID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrGrantNotFound
	}
	if err != nil {
		return nil, util.LogError("[ObjectRepo] ошибка чтения постоянного объекта", err)
	}

	return &object, nil
}
