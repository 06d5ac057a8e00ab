package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"upload-broker/config"
	"upload-broker/internal/model"
	"upload-broker/internal/ports"
	"upload-broker/internal/util"
)

type PromotionService struct {
	grantRepository  ports.GrantRepository
	objectRepository ports.PermanentObjectRepository
	cacheRepository  ports.GrantCache
	storage          ports.StagingStorage
	database         *config.Database
	cdnBaseURL       string
	prefixSize       int
}

func NewPromotionService(
	grantRepository ports.GrantRepository,
	objectRepository ports.PermanentObjectRepository,
	cacheRepository ports.GrantCache,
	storage ports.StagingStorage,
	database *config.Database,
	cdnBaseURL string,
	prefixSize int,
) *PromotionService {
	if prefixSize <= 0 {
		prefixSize = util.SignaturePrefixSize
	}
	return &PromotionService{
		grantRepository:  grantRepository,
		objectRepository: objectRepository,
		cacheRepository:  cacheRepository,
		storage:          storage,
		database:         database,
		cdnBaseURL:       cdnBaseURL,
		prefixSize:       prefixSize,
	}
}

// Promote : финализация загрузки, проверки строго по порядку,
// первая неудачная прерывает операцию. Копирование выполняется
// последним, постоянный объект не появляется раньше всех проверок.
//
// Повторная промоция уже promoted гранта возвращает прежний результат
// с replayed=true, двойного копирования не происходит.
func (s *PromotionService) Promote(ctx context.Context, uploadUUID string, ownerUUID string, destination string, overwrite bool) (*model.PermanentObject, bool, error) {
	now := time.Now().UTC()

	// 1. только владелец; неизвестный и чужой uuid неразличимы
	grant, err := s.grantRepository.GetByUUIDAndOwner(ctx, s.database, uploadUUID, ownerUUID)
	if err != nil {
		return nil, false, err
	}

	// 2. грант должен быть в uploaded и не истёкшим
	switch grant.Status {
	case model.GrantStatusPromoted:
		return s.replay(ctx, uploadUUID)
	case model.GrantStatusIssued:
		return nil, false, fmt.Errorf("[PromotionService] грант %s: %w", uploadUUID, model.ErrNotReady)
	case model.GrantStatusRejected:
		return nil, false, fmt.Errorf("[PromotionService] грант %s: %w", uploadUUID, model.ErrTypeMismatch)
	case model.GrantStatusExpired:
		return nil, false, fmt.Errorf("[PromotionService] грант %s: %w", uploadUUID, model.ErrSourceMissing)
	}
	if grant.Expired(now) {
		return nil, false, fmt.Errorf("[PromotionService] грант %s истёк: %w", uploadUUID, model.ErrSourceMissing)
	}

	destinationKey, err := buildDestinationKey(destination, grant.DeclaredFileName)
	if err != nil {
		return nil, false, err
	}

	// 3. staging-объект мог быть убран уборщиком, это штатный отказ
	if _, err := s.storage.HeadObject(ctx, grant.StagingKey); err != nil {
		if errors.Is(err, model.ErrObjectNotFound) {
			return nil, false, fmt.Errorf("[PromotionService] staging-объект %s: %w", grant.StagingKey, model.ErrSourceMissing)
		}
		return nil, false, fmt.Errorf("[PromotionService] ошибка проверки staging-объекта: %w", errors.Join(model.ErrCopyFailed, err))
	}

	// 4. сверка сигнатуры с заявленным типом
	prefix, err := s.storage.ReadPrefix(ctx, grant.StagingKey, s.prefixSize)
	if err != nil {
		if errors.Is(err, model.ErrObjectNotFound) {
			return nil, false, fmt.Errorf("[PromotionService] staging-объект %s: %w", grant.StagingKey, model.ErrSourceMissing)
		}
		return nil, false, fmt.Errorf("[PromotionService] ошибка чтения префикса: %w", errors.Join(model.ErrCopyFailed, err))
	}

	if util.ValidateSignature(prefix, grant.DeclaredContentType) == util.SignatureMismatch {
		if _, err := s.grantRepository.MarkRejected(ctx, s.database, uploadUUID); err != nil {
			log.Printf("[PromotionService] не удалось пометить грант %s отклонённым: %v", uploadUUID, err)
		}
		if err := s.cacheRepository.DeleteGrant(ctx, uploadUUID); err != nil {
			log.Printf("[PromotionService] ошибка удаления гранта из кэша: %v", err)
		}
		return nil, false, fmt.Errorf("[PromotionService] грант %s: %w", uploadUUID, model.ErrTypeMismatch)
	}

	// 5. фиксация uploaded -> promoted и копирование в одной транзакции.
	// Условный UPDATE берёт блокировку строки: из конкурентных вызовов
	// копирует ровно один, проигравший уходит в ветку повтора.
	exec, rollback, commit, err := s.grantRepository.BeginTX(ctx)
	if err != nil {
		return nil, false, util.LogError("[PromotionService] не удалось начать транзакцию", err)
	}
	defer rollback()

	claimed, err := s.grantRepository.ClaimPromotion(ctx, exec, uploadUUID, now)
	if err != nil {
		return nil, false, util.LogError("[PromotionService] не удалось зафиксировать промоцию", err)
	}
	if !claimed {
		return s.loserBranch(ctx, uploadUUID, ownerUUID, now)
	}

	// 6. копирование — последний внешний side effect
	if err := s.storage.CopyObject(ctx, grant.StagingKey, destinationKey, overwrite); err != nil {
		switch {
		case errors.Is(err, model.ErrObjectNotFound):
			return nil, false, fmt.Errorf("[PromotionService] staging-объект %s: %w", grant.StagingKey, model.ErrSourceMissing)
		case errors.Is(err, model.ErrConflict):
			return nil, false, fmt.Errorf("[PromotionService] ключ %s занят: %w", destinationKey, model.ErrConflict)
		default:
			// транзакция откатится, грант останется uploaded, повтор безопасен
			return nil, false, fmt.Errorf("[PromotionService] копирование не удалось: %w", errors.Join(model.ErrCopyFailed, err))
		}
	}

	object := &model.PermanentObject{
		UUID:            uuid.New().String(),
		UploadUUID:      uploadUUID,
		OwnerUUID:       ownerUUID,
		DestinationKey:  destinationKey,
		PublicReference: s.publicReference(destinationKey),
		PromotedAt:      now,
	}

	if err := s.objectRepository.Create(ctx, exec, object); err != nil {
		return nil, false, util.LogError("[PromotionService] не удалось сохранить постоянный объект", err)
	}

	if err := commit(); err != nil {
		return nil, false, util.LogError("[PromotionService] не удалось закоммитить транзакцию", err)
	}

	if err := s.cacheRepository.DeleteGrant(ctx, uploadUUID); err != nil {
		log.Printf("[PromotionService] ошибка удаления гранта из кэша: %v", err)
	}

	log.Printf("[PromotionService] грант %s промотирован в %s", uploadUUID, destinationKey)

	return object, false, nil
}

// replay : идемпотентный повтор, возвращаем результат прежней промоции
func (s *PromotionService) replay(ctx context.Context, uploadUUID string) (*model.PermanentObject, bool, error) {
	object, err := s.objectRepository.GetByUploadUUID(ctx, s.database, uploadUUID)
	if err != nil {
		return nil, false, util.LogError("[PromotionService] не удалось получить результат прежней промоции", err)
	}
	return object, true, nil
}

// loserBranch : конкурентная промоция успела раньше, либо грант истёк между проверками
func (s *PromotionService) loserBranch(ctx context.Context, uploadUUID string, ownerUUID string, now time.Time) (*model.PermanentObject, bool, error) {
	grant, err := s.grantRepository.GetByUUIDAndOwner(ctx, s.database, uploadUUID, ownerUUID)
	if err != nil {
		return nil, false, err
	}

	if grant.Status == model.GrantStatusPromoted {
		return s.replay(ctx, uploadUUID)
	}

	return nil, false, fmt.Errorf("[PromotionService] грант %s в статусе %s: %w", uploadUUID, grant.Status, model.ErrSourceMissing)
}

func (s *PromotionService) publicReference(destinationKey string) string {
	return strings.TrimSuffix(s.cdnBaseURL, "/") + "/" + destinationKey
}

// buildDestinationKey : ключ назначения из префикса вызывающего и
// заявленного имени файла. Путь нормализуется, выход за пределы
// префикса и абсолютные пути отклоняются.
func buildDestinationKey(destination string, fileName string) (string, error) {
	if destination == "" || strings.HasPrefix(destination, "/") {
		return "", fmt.Errorf("[PromotionService] назначение %q: %w", destination, model.ErrBadDestination)
	}

	key := path.Join(destination, path.Base(fileName))
	if strings.HasPrefix(key, "..") || strings.Contains(key, "\\") || strings.HasPrefix(key, "staging/") {
		return "", fmt.Errorf("[PromotionService] назначение %q: %w", destination, model.ErrBadDestination)
	}

	return key, nil
}
