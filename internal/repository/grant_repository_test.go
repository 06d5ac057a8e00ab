package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upload-broker/config"
	"upload-broker/internal/model"
	"upload-broker/internal/repository"
)

func newGrantRepositoryWithMock(t *testing.T) (*repository.GrantRepository, sqlmock.Sqlmock, *sqlx.DB) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "postgres")
	repo := repository.NewGrantRepository(&config.Database{DB: sqlxDB})

	return repo, mock, sqlxDB
}

func TestGrantRepository_Create(t *testing.T) {
	repo, mock, db := newGrantRepositoryWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	grant := &model.UploadGrant{
		UUID:                "upload-1",
		OwnerUUID:           "owner-1",
		DeclaredFileName:    "photo.jpg",
		DeclaredContentType: "image/jpeg",
		DeclaredSizeBytes:   1024,
		StagingKey:          "staging/owner-1/upload-1",
		Status:              model.GrantStatusIssued,
		IssuedAt:            now,
		ExpiresAt:           now.Add(15 * time.Minute),
	}

	mock.ExpectExec(`INSERT INTO upload_grants`).
		WithArgs(grant.UUID, grant.OwnerUUID, grant.DeclaredFileName, grant.DeclaredContentType,
			grant.DeclaredSizeBytes, grant.StagingKey, string(grant.Status), grant.IssuedAt, grant.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), db, grant)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantRepository_GetByUUIDAndOwner_NotFound(t *testing.T) {
	repo, mock, db := newGrantRepositoryWithMock(t)
	defer db.Close()

	// чужой владелец не попадает в WHERE, строки нет
	mock.ExpectQuery(`SELECT .+ FROM upload_grants`).
		WithArgs("upload-1", "other-owner").
		WillReturnError(sql.ErrNoRows)

	grant, err := repo.GetByUUIDAndOwner(context.Background(), db, "upload-1", "other-owner")

	require.ErrorIs(t, err, model.ErrGrantNotFound)
	assert.Nil(t, grant)
}

func TestGrantRepository_MarkUploaded(t *testing.T) {
	repo, mock, db := newGrantRepositoryWithMock(t)
	defer db.Close()

	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE upload_grants`).
		WithArgs("upload-1", "owner-1", string(model.GrantStatusIssued), string(model.GrantStatusUploaded), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := repo.MarkUploaded(context.Background(), db, "upload-1", "owner-1", now)

	require.NoError(t, err)
	assert.True(t, updated)
}

func TestGrantRepository_MarkUploaded_ClosedWindow(t *testing.T) {
	repo, mock, db := newGrantRepositoryWithMock(t)
	defer db.Close()

	now := time.Now().UTC()

	// условие expires_at > now не выполнилось, строк нет
	mock.ExpectExec(`UPDATE upload_grants`).
		WithArgs("upload-1", "owner-1", string(model.GrantStatusIssued), string(model.GrantStatusUploaded), now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.MarkUploaded(context.Background(), db, "upload-1", "owner-1", now)

	require.NoError(t, err)
	assert.False(t, updated)
}

func TestGrantRepository_ClaimPromotion_SingleWinner(t *testing.T) {
	repo, mock, db := newGrantRepositoryWithMock(t)
	defer db.Close()

	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE upload_grants`).
		WithArgs("upload-1", string(model.GrantStatusUploaded), string(model.GrantStatusPromoted), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE upload_grants`).
		WithArgs("upload-1", string(model.GrantStatusUploaded), string(model.GrantStatusPromoted), now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	winner, err := repo.ClaimPromotion(context.Background(), db, "upload-1", now)
	require.NoError(t, err)
	assert.True(t, winner)

	// повторная фиксация того же гранта уже никого не находит
	loser, err := repo.ClaimPromotion(context.Background(), db, "upload-1", now)
	require.NoError(t, err)
	assert.False(t, loser)
}

func TestGrantRepository_MarkExpired_IgnoresPromoted(t *testing.T) {
	repo, mock, db := newGrantRepositoryWithMock(t)
	defer db.Close()

	before := time.Now().UTC()

	mock.ExpectExec(`UPDATE upload_grants`).
		WithArgs("upload-1", string(model.GrantStatusIssued), string(model.GrantStatusUploaded),
			string(model.GrantStatusExpired), before).
		WillReturnResult(sqlmock.NewResult(0, 0))

	expired, err := repo.MarkExpired(context.Background(), db, "upload-1", before)

	require.NoError(t, err)
	assert.False(t, expired)
}

func TestGrantRepository_ListExpired(t *testing.T) {
	repo, mock, db := newGrantRepositoryWithMock(t)
	defer db.Close()

	before := time.Now().UTC()
	issuedAt := before.Add(-30 * time.Minute)
	expiresAt := before.Add(-15 * time.Minute)

	rows := sqlmock.NewRows([]string{
		"uuid", "owner_uuid", "declared_file_name", "declared_content_type", "declared_size_bytes",
		"staging_key", "status", "issued_at", "expires_at", "updated_at",
	}).AddRow("upload-1", "owner-1", "photo.jpg", "image/jpeg", int64(1024),
		"staging/owner-1/upload-1", "issued", issuedAt, expiresAt, issuedAt)

	mock.ExpectQuery(`SELECT .+ FROM upload_grants`).
		WithArgs(string(model.GrantStatusIssued), string(model.GrantStatusUploaded), before, 100).
		WillReturnRows(rows)

	grants, err := repo.ListExpired(context.Background(), db, before, 100)

	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "upload-1", grants[0].UUID)
	assert.Equal(t, model.GrantStatusIssued, grants[0].Status)
}
