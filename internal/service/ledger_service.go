package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"upload-broker/config"
	"upload-broker/internal/model"
	"upload-broker/internal/ports"
	"upload-broker/internal/util"
)

type LedgerService struct {
	grantRepository ports.GrantRepository
	cacheRepository ports.GrantCache
	rateLimiter     ports.RateLimiter
	storage         ports.StagingStorage
	database        *config.Database
	limits          *config.LimitsConfig
	grantTTL        time.Duration
}

func NewLedgerService(
	grantRepository ports.GrantRepository,
	cacheRepository ports.GrantCache,
	rateLimiter ports.RateLimiter,
	storage ports.StagingStorage,
	database *config.Database,
	limits *config.LimitsConfig,
	grantTTL time.Duration,
) *LedgerService {
	return &LedgerService{
		grantRepository: grantRepository,
		cacheRepository: cacheRepository,
		rateLimiter:     rateLimiter,
		storage:         storage,
		database:        database,
		limits:          limits,
		grantTTL:        grantTTL,
	}
}

// IssueGrant : выдаёт грант на одну загрузку.
// Заявленные мета-данные не проверяются, проверяются только политики:
// потолок размера по роли, список разрешённых типов и лимит частоты.
// Ключ staging выводится только из серверных полей, клиентский ввод
// в него не попадает.
func (s *LedgerService) IssueGrant(ctx context.Context, ownerUUID string, role string, fileName string, contentType string, sizeBytes int64) (*model.UploadGrant, string, error) {
	ceiling, ok := s.limits.SizeCeilingBytes[role]
	if !ok {
		ceiling = s.limits.SizeCeilingBytes["default"]
	}
	if sizeBytes <= 0 || sizeBytes > ceiling {
		return nil, "", fmt.Errorf("[LedgerService] размер %d байт: %w", sizeBytes, model.ErrQuotaExceeded)
	}

	if !s.contentTypeAllowed(contentType) {
		return nil, "", fmt.Errorf("[LedgerService] тип %s: %w", contentType, model.ErrContentTypeNotAllowed)
	}

	allowed, err := s.rateLimiter.Allow(ctx, ownerUUID)
	if err != nil {
		return nil, "", util.LogError("[LedgerService] ошибка проверки лимита запросов", err)
	}
	if !allowed {
		return nil, "", fmt.Errorf("[LedgerService] владелец %s: %w", ownerUUID, model.ErrRateLimited)
	}

	now := time.Now().UTC()
	grant := &model.UploadGrant{
		UUID:                uuid.New().String(),
		OwnerUUID:           ownerUUID,
		DeclaredFileName:    fileName,
		DeclaredContentType: contentType,
		DeclaredSizeBytes:   sizeBytes,
		Status:              model.GrantStatusIssued,
		IssuedAt:            now,
		ExpiresAt:           now.Add(s.grantTTL),
	}
	grant.StagingKey = StagingKey(grant.OwnerUUID, grant.UUID)

	if err := s.grantRepository.Create(ctx, s.database, grant); err != nil {
		return nil, "", util.LogError("[LedgerService] не удалось сохранить грант", err)
	}

	putURL, err := s.storage.GeneratePresignedPutURL(ctx, grant.StagingKey, contentType, s.grantTTL)
	if err != nil {
		return nil, "", util.LogError("[LedgerService] не удалось сгенерировать pre-signed PUT URL", err)
	}

	if err := s.cacheRepository.SetGrant(ctx, grant); err != nil {
		log.Printf("[LedgerService] ошибка кэширования гранта: %v", err)
	}

	log.Printf("[LedgerService] выдан грант %s владельцу %s (%s, %d байт)", grant.UUID, ownerUUID, contentType, sizeBytes)

	return grant, putURL, nil
}

// GetUpload : состояние гранта для владельца, сперва из кэша.
// Чужой грант неотличим от несуществующего.
func (s *LedgerService) GetUpload(ctx context.Context, uploadUUID string, ownerUUID string) (*model.UploadGrant, error) {
	grant, err := s.cacheRepository.GetGrant(ctx, uploadUUID)
	if err != nil {
		log.Printf("[LedgerService] ошибка чтения кэша: %v", err)
	}

	if grant != nil {
		if grant.OwnerUUID != ownerUUID {
			return nil, model.ErrGrantNotFound
		}
		return grant, nil
	}

	grant, err = s.grantRepository.GetByUUIDAndOwner(ctx, s.database, uploadUUID, ownerUUID)
	if err != nil {
		return nil, err
	}

	if err := s.cacheRepository.SetGrant(ctx, grant); err != nil {
		log.Printf("[LedgerService] ошибка кэширования гранта: %v", err)
	}

	return grant, nil
}

// MarkUploaded : подтверждение завершения загрузки, переход issued -> uploaded.
// Проигравший конкурентный вызов перечитывает грант и получает конкретную причину.
func (s *LedgerService) MarkUploaded(ctx context.Context, uploadUUID string, ownerUUID string) error {
	now := time.Now().UTC()

	updated, err := s.grantRepository.MarkUploaded(ctx, s.database, uploadUUID, ownerUUID, now)
	if err != nil {
		return util.LogError("[LedgerService] не удалось подтвердить загрузку", err)
	}

	if !updated {
		grant, err := s.grantRepository.GetByUUIDAndOwner(ctx, s.database, uploadUUID, ownerUUID)
		if err != nil {
			return err
		}
		switch {
		case grant.Status == model.GrantStatusIssued && grant.Expired(now):
			return fmt.Errorf("[LedgerService] грант %s: %w", uploadUUID, model.ErrGrantExpired)
		case grant.Status == model.GrantStatusExpired:
			return fmt.Errorf("[LedgerService] грант %s: %w", uploadUUID, model.ErrGrantExpired)
		default:
			return fmt.Errorf("[LedgerService] грант %s: %w", uploadUUID, model.ErrAlreadyUploaded)
		}
	}

	if err := s.cacheRepository.DeleteGrant(ctx, uploadUUID); err != nil {
		log.Printf("[LedgerService] ошибка удаления гранта из кэша: %v", err)
	}

	return nil
}

func (s *LedgerService) contentTypeAllowed(contentType string) bool {
	for _, allowed := range s.limits.AllowedContentTypes {
		if allowed == contentType {
			return true
		}
	}
	return false
}

// StagingKey : детерминированный ключ staging-объекта.
// Выводится только из серверных идентификаторов, что исключает
// подстановку пути и коллизии между владельцами.
func StagingKey(ownerUUID string, uploadUUID string) string {
	return fmt.Sprintf("staging/%s/%s", ownerUUID, uploadUUID)
}
