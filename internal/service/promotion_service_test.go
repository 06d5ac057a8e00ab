package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"upload-broker/internal/model"
	"upload-broker/internal/service"
)

type MockGrantRepository struct{ mock.Mock }

func (m *MockGrantRepository) Create(ctx context.Context, exec sqlx.ExtContext, grant *model.UploadGrant) error {
	return m.Called(ctx, exec, grant).Error(0)
}

func (m *MockGrantRepository) GetByUUIDAndOwner(ctx context.Context, exec sqlx.ExtContext, uploadUUID string, ownerUUID string) (*model.UploadGrant, error) {
	args := m.Called(ctx, exec, uploadUUID, ownerUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadGrant), args.Error(1)
}

func (m *MockGrantRepository) MarkUploaded(ctx context.Context, exec sqlx.ExtContext, uploadUUID string, ownerUUID string, now time.Time) (bool, error) {
	args := m.Called(ctx, exec, uploadUUID, ownerUUID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockGrantRepository) ClaimPromotion(ctx context.Context, exec sqlx.ExtContext, uploadUUID string, now time.Time) (bool, error) {
	args := m.Called(ctx, exec, uploadUUID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockGrantRepository) MarkRejected(ctx context.Context, exec sqlx.ExtContext, uploadUUID string) (bool, error) {
	args := m.Called(ctx, exec, uploadUUID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGrantRepository) MarkExpired(ctx context.Context, exec sqlx.ExtContext, uploadUUID string, before time.Time) (bool, error) {
	args := m.Called(ctx, exec, uploadUUID, before)
	return args.Bool(0), args.Error(1)
}

func (m *MockGrantRepository) ListExpired(ctx context.Context, exec sqlx.ExtContext, before time.Time, limit int) ([]model.UploadGrant, error) {
	args := m.Called(ctx, exec, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.UploadGrant), args.Error(1)
}

func (m *MockGrantRepository) BeginTX(ctx context.Context) (sqlx.ExtContext, func() error, func() error, error) {
	args := m.Called(ctx)
	return args.Get(0).(sqlx.ExtContext), args.Get(1).(func() error), args.Get(2).(func() error), args.Error(3)
}

type MockObjectRepository struct{ mock.Mock }

func (m *MockObjectRepository) Create(ctx context.Context, exec sqlx.ExtContext, object *model.PermanentObject) error {
	return m.Called(ctx, exec, object).Error(0)
}

func (m *MockObjectRepository) GetByUploadUUID(ctx context.Context, exec sqlx.ExtContext, uploadUUID string) (*model.PermanentObject, error) {
	args := m.Called(ctx, exec, uploadUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PermanentObject), args.Error(1)
}

type MockGrantCache struct{ mock.Mock }

func (m *MockGrantCache) SetGrant(ctx context.Context, grant *model.UploadGrant) error {
	return m.Called(ctx, grant).Error(0)
}

func (m *MockGrantCache) GetGrant(ctx context.Context, uploadUUID string) (*model.UploadGrant, error) {
	args := m.Called(ctx, uploadUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadGrant), args.Error(1)
}

func (m *MockGrantCache) DeleteGrant(ctx context.Context, uploadUUID string) error {
	return m.Called(ctx, uploadUUID).Error(0)
}

type MockStagingStorage struct{ mock.Mock }

func (m *MockStagingStorage) GeneratePresignedPutURL(ctx context.Context, key string, contentType string, expire time.Duration) (string, error) {
	args := m.Called(ctx, key, contentType, expire)
	return args.String(0), args.Error(1)
}

func (m *MockStagingStorage) HeadObject(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStagingStorage) ReadPrefix(ctx context.Context, key string, n int) ([]byte, error) {
	args := m.Called(ctx, key, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStagingStorage) CopyObject(ctx context.Context, sourceKey string, destinationKey string, overwrite bool) error {
	return m.Called(ctx, sourceKey, destinationKey, overwrite).Error(0)
}

func (m *MockStagingStorage) DeleteObject(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockRateLimiter struct{ mock.Mock }

func (m *MockRateLimiter) Allow(ctx context.Context, ownerUUID string) (bool, error) {
	args := m.Called(ctx, ownerUUID)
	return args.Bool(0), args.Error(1)
}

const (
	testOwner      = "admin123"
	testOtherOwner = "admin456"
	testUploadUUID = "b6a1e1c4-4b1d-4f1e-8b29-1234567890ab"
	testCDNBase    = "https://cdn.example.com"
)

func uploadedGrant() *model.UploadGrant {
	now := time.Now().UTC()
	return &model.UploadGrant{
		UUID:                testUploadUUID,
		OwnerUUID:           testOwner,
		DeclaredFileName:    "photo.jpg",
		DeclaredContentType: "image/jpeg",
		DeclaredSizeBytes:   1048576,
		StagingKey:          service.StagingKey(testOwner, testUploadUUID),
		Status:              model.GrantStatusUploaded,
		IssuedAt:            now.Add(-time.Minute),
		ExpiresAt:           now.Add(10 * time.Minute),
	}
}

func newPromotionService(grantRepo *MockGrantRepository, objectRepo *MockObjectRepository, cache *MockGrantCache, storage *MockStagingStorage) *service.PromotionService {
	return service.NewPromotionService(grantRepo, objectRepo, cache, storage, nil, testCDNBase, 16)
}

func TestPromote_Success(t *testing.T) {
	grantRepo := new(MockGrantRepository)
	objectRepo := new(MockObjectRepository)
	cache := new(MockGrantCache)
	storage := new(MockStagingStorage)

	grant := uploadedGrant()
	fakeExec := &sqlx.DB{}

	grantRepo.On("GetByUUIDAndOwner", mock.Anything, mock.Anything, testUploadUUID, testOwner).Return(grant, nil)
	storage.On("HeadObject", mock.Anything, grant.StagingKey).Return(int64(1048576), nil)
	storage.On("ReadPrefix", mock.Anything, grant.StagingKey, 16).Return([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}, nil)
	grantRepo.On("BeginTX", mock.Anything).Return(sqlx.ExtContext(fakeExec), func() error { return nil }, func() error { return nil }, nil)
	grantRepo.On("ClaimPromotion", mock.Anything, mock.Anything, testUploadUUID, mock.Anything).Return(true, nil)
	storage.On("CopyObject", mock.Anything, grant.StagingKey, "notices/notice-9999/photo.jpg", false).Return(nil)
	objectRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	cache.On("DeleteGrant", mock.Anything, testUploadUUID).Return(nil)

	svc := newPromotionService(grantRepo, objectRepo, cache, storage)
	object, replayed, err := svc.Promote(context.Background(), testUploadUUID, testOwner, "notices/notice-9999/", false)

	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, "notices/notice-9999/photo.jpg", object.DestinationKey)
	assert.Equal(t, testCDNBase+"/notices/notice-9999/photo.jpg", object.PublicReference)
	assert.Equal(t, testUploadUUID, object.UploadUUID)
	storage.AssertExpectations(t)
	objectRepo.AssertExpectations(t)
}

func TestPromote_ForeignOwnerIndistinguishableFromUnknown(t *testing.T) {
	grantRepo := new(MockGrantRepository)
	objectRepo := new(MockObjectRepository)
	cache := new(MockGrantCache)
	storage := new(MockStagingStorage)

	// чужой uploadId отдаёт тот же ErrGrantNotFound, что и несуществующий
	grantRepo.On("GetByUUIDAndOwner", mock.Anything, mock.Anything, testUploadUUID, testOtherOwner).Return(nil, model.ErrGrantNotFound)

	svc := newPromotionService(grantRepo, objectRepo, cache, storage)
	object, _, err := svc.Promote(context.Background(), testUploadUUID, testOtherOwner, "notices/notice-9999/", false)

	require.ErrorIs(t, err, model.ErrGrantNotFound)
	assert.Nil(t, object)
	storage.AssertNotCalled(t, "CopyObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPromote_NotReadyBeforeConfirmation(t *testing.T) {
	grantRepo := new(MockGrantRepository)
	objectRepo := new(MockObjectRepository)
	cache := new(MockGrantCache)
	storage := new(MockStagingStorage)

	grant := uploadedGrant()
	grant.Status = model.GrantStatusIssued

	grantRepo.On("GetByUUIDAndOwner", mock.Anything, mock.Anything, testUploadUUID, testOwner).Return(grant, nil)

	svc := newPromotionService(grantRepo, objectRepo, cache, storage)
	_, _, err := svc.Promote(context.Background(), testUploadUUID, testOwner, "notices/notice-9999/", false)

	require.ErrorIs(t, err, model.ErrNotReady)
}

func TestPromote_ReplayReturnsPriorResult(t *testing.T) {
	grantRepo := new(MockGrantRepository)
	objectRepo := new(MockObjectRepository)
	cache := new(MockGrantCache)
	storage := new(MockStagingStorage)

	grant := uploadedGrant()
	grant.Status = model.GrantStatusPromoted

	prior := &model.PermanentObject{
		UUID:            "object-1",
		UploadUUID:      testUploadUUID,
		OwnerUUID:       testOwner,
		DestinationKey:  "notices/notice-9999/photo.jpg",
		PublicReference: testCDNBase + "/notices/notice-9999/photo.jpg",
		PromotedAt:      time.Now().UTC(),
	}

	grantRepo.On("GetByUUIDAndOwner", mock.Anything, mock.Anything, testUploadUUID, testOwner).Return(grant, nil)
	objectRepo.On("GetByUploadUUID", mock.Anything, mock.Anything, testUploadUUID).Return(prior, nil)

	svc := newPromotionService(grantRepo, objectRepo, cache, storage)
	object, replayed, err := svc.Promote(context.Background(), testUploadUUID, testOwner, "notices/notice-9999/", false)

	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, prior.PublicReference, object.PublicReference)
	storage.AssertNotCalled(t, "CopyObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPromote_SourceMissingAfterSweep(t *testing.T) {
	grantRepo := new(MockGrantRepository)
	objectRepo := new(MockObjectRepository)
	cache := new(MockGrantCache)
	storage := new(MockStagingStorage)

	grant := uploadedGrant()

	grantRepo.On("GetByUUIDAndOwner", mock.Anything, mock.Anything, testUploadUUID, testOwner).Return(grant, nil)
	storage.On("HeadObject", mock.Anything, grant.StagingKey).Return(int64(0), model.ErrObjectNotFound)

	svc := newPromotionService(grantRepo, objectRepo, cache, storage)
	_, _, err := svc.Promote(context.Background(), testUploadUUID, testOwner, "notices/notice-9999/", false)

	require.ErrorIs(t, err, model.ErrSourceMissing)
}

func TestPromote_ExpiredGrantNeverPromotes(t *testing.T) {
	grantRepo := new(MockGrantRepository)
	objectRepo := new(MockObjectRepository)
	cache := new(MockGrantCache)
	storage := new(MockStagingStorage)

	grant := uploadedGrant()
	grant.Status = model.GrantStatusExpired

	grantRepo.On("GetByUUIDAndOwner", mock.Anything, mock.Anything, testUploadUUID, testOwner).Return(grant, nil)

	svc := newPromotionService(grantRepo, objectRepo, cache, storage)
	_, _, err := svc.Promote(context.Background(), testUploadUUID, testOwner, "notices/notice-9999/", false)

	require.ErrorIs(t, err, model.ErrSourceMissing)
	storage.AssertNotCalled(t, "HeadObject", mock.Anything, mock.Anything)
}

func TestPromote_DisguisedExecutableRejected(t *testing.T) {
	grantRepo := new(MockGrantRepository)
	objectRepo := new(MockObjectRepository)
	cache := new(MockGrantCache)
	storage := new(MockStagingStorage)

	grant := uploadedGrant()

	grantRepo.On("GetByUUIDAndOwner", mock.Anything, mock.Anything, testUploadUUID, testOwner).Return(grant, nil)
	storage.On("HeadObject", mock.Anything, grant.StagingKey).Return(int64(1048576), nil)
	// PE-заголовок под видом image/jpeg
	storage.On("ReadPrefix", mock.Anything, grant.StagingKey, 16).Return([]byte{0x4D, 0x5A, 0x90, 0x00}, nil)
	grantRepo.On("MarkRejected", mock.Anything, mock.Anything, testUploadUUID).Return(true, nil)
	cache.On("DeleteGrant", mock.Anything, testUploadUUID).Return(nil)

	svc := newPromotionService(grantRepo, objectRepo, cache, storage)
	object, _, err := svc.Promote(context.Background(), testUploadUUID, testOwner, "notices/notice-9999/", false)

	require.ErrorIs(t, err, model.ErrTypeMismatch)
	assert.Nil(t, object)
	storage.AssertNotCalled(t, "CopyObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	objectRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	grantRepo.AssertExpectations(t)
}

func TestPromote_CopyFailedIsRetryable(t *testing.T) {
	grantRepo := new(MockGrantRepository)
	objectRepo := new(MockObjectRepository)
	cache := new(MockGrantCache)
	storage := new(MockStagingStorage)

	grant := uploadedGrant()
	fakeExec := &sqlx.DB{}
	committed := false

	grantRepo.On("GetByUUIDAndOwner", mock.Anything, mock.Anything, testUploadUUID, testOwner).Return(grant, nil)
	storage.On("HeadObject", mock.Anything, grant.StagingKey).Return(int64(1048576), nil)
	storage.On("ReadPrefix", mock.Anything, grant.StagingKey, 16).Return([]byte{0xFF, 0xD8, 0xFF}, nil)
	grantRepo.On("BeginTX", mock.Anything).Return(sqlx.ExtContext(fakeExec), func() error { return nil }, func() error { committed = true; return nil }, nil)
	grantRepo.On("ClaimPromotion", mock.Anything, mock.Anything, testUploadUUID, mock.Anything).Return(true, nil)
	storage.On("CopyObject", mock.Anything, grant.StagingKey, "notices/notice-9999/photo.jpg", false).Return(errors.New("таймаут транспорта"))

	svc := newPromotionService(grantRepo, objectRepo, cache, storage)
	_, _, err := svc.Promote(context.Background(), testUploadUUID, testOwner, "notices/notice-9999/", false)

	require.ErrorIs(t, err, model.ErrCopyFailed)
	// транзакция не закоммичена, грант остался uploaded, повтор безопасен
	assert.False(t, committed)
	objectRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestPromote_ConcurrentLoserTakesReplayBranch(t *testing.T) {
	grantRepo := new(MockGrantRepository)
	objectRepo := new(MockObjectRepository)
	cache := new(MockGrantCache)
	storage := new(MockStagingStorage)

	grant := uploadedGrant()
	fakeExec := &sqlx.DB{}

	promoted := uploadedGrant()
	promoted.Status = model.GrantStatusPromoted

	prior := &model.PermanentObject{
		UUID:            "object-1",
		UploadUUID:      testUploadUUID,
		DestinationKey:  "notices/notice-9999/photo.jpg",
		PublicReference: testCDNBase + "/notices/notice-9999/photo.jpg",
	}

	grantRepo.On("GetByUUIDAndOwner", mock.Anything, mock.Anything, testUploadUUID, testOwner).Return(grant, nil).Once()
	storage.On("HeadObject", mock.Anything, grant.StagingKey).Return(int64(1048576), nil)
	storage.On("ReadPrefix", mock.Anything, grant.StagingKey, 16).Return([]byte{0xFF, 0xD8, 0xFF}, nil)
	grantRepo.On("BeginTX", mock.Anything).Return(sqlx.ExtContext(fakeExec), func() error { return nil }, func() error { return nil }, nil)
	// конкурент успел раньше
	grantRepo.On("ClaimPromotion", mock.Anything, mock.Anything, testUploadUUID, mock.Anything).Return(false, nil)
	grantRepo.On("GetByUUIDAndOwner", mock.Anything, mock.Anything, testUploadUUID, testOwner).Return(promoted, nil).Once()
	objectRepo.On("GetByUploadUUID", mock.Anything, mock.Anything, testUploadUUID).Return(prior, nil)

	svc := newPromotionService(grantRepo, objectRepo, cache, storage)
	object, replayed, err := svc.Promote(context.Background(), testUploadUUID, testOwner, "notices/notice-9999/", false)

	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, prior.PublicReference, object.PublicReference)
	storage.AssertNotCalled(t, "CopyObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPromote_BadDestination(t *testing.T) {
	grantRepo := new(MockGrantRepository)
	objectRepo := new(MockObjectRepository)
	cache := new(MockGrantCache)
	storage := new(MockStagingStorage)

	grant := uploadedGrant()
	grantRepo.On("GetByUUIDAndOwner", mock.Anything, mock.Anything, testUploadUUID, testOwner).Return(grant, nil)

	svc := newPromotionService(grantRepo, objectRepo, cache, storage)

	for _, destination := range []string{"/notices/", "../notices/", "staging/owner/"} {
		_, _, err := svc.Promote(context.Background(), testUploadUUID, testOwner, destination, false)
		require.ErrorIs(t, err, model.ErrBadDestination, "назначение %q", destination)
	}
}
