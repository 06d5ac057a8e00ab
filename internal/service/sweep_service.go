package service

import (
	"context"
	"errors"
	"log"
	"time"

	"upload-broker/config"
	"upload-broker/internal/model"
	"upload-broker/internal/ports"
)

// sweepBatchSize : сколько истёкших грантов обрабатывается за проход
const sweepBatchSize = 100

// SweepService : уборка истёкших грантов по расписанию, независимо
// от обработки запросов. Трогает только issued/uploaded гранты с
// закрытым окном записи и потому не пересекается с промоцией:
// промоция идёт только по неистёкшим uploaded грантам.
type SweepService struct {
	grantRepository ports.GrantRepository
	cacheRepository ports.GrantCache
	storage         ports.StagingStorage
	database        *config.Database
	interval        time.Duration
}

func NewSweepService(
	grantRepository ports.GrantRepository,
	cacheRepository ports.GrantCache,
	storage ports.StagingStorage,
	database *config.Database,
	interval time.Duration,
) *SweepService {
	return &SweepService{
		grantRepository: grantRepository,
		cacheRepository: cacheRepository,
		storage:         storage,
		database:        database,
		interval:        interval,
	}
}

// Run : запускает уборщик до отмены контекста
func (s *SweepService) Run(ctx context.Context) {
	log.Printf("[SweepService] уборщик запущен, интервал %s", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[SweepService] уборщик остановлен")
			return
		case <-ticker.C:
			if swept, err := s.SweepExpired(ctx, time.Now().UTC()); err != nil {
				log.Printf("[SweepService] ошибка уборки: %v", err)
			} else if swept > 0 {
				log.Printf("[SweepService] убрано %d истёкших грантов", swept)
			}
		}
	}
}

// SweepExpired : один проход уборки. Идемпотентен, повторный запуск
// по тому же моменту времени не находит работы.
func (s *SweepService) SweepExpired(ctx context.Context, before time.Time) (int, error) {
	swept := 0

	for {
		grants, err := s.grantRepository.ListExpired(ctx, s.database, before, sweepBatchSize)
		if err != nil {
			return swept, err
		}
		if len(grants) == 0 {
			return swept, nil
		}

		for _, grant := range grants {
			// сначала статус: после expired грант уже не промотируется,
			// даже если удаление staging-объекта не удалось
			expired, err := s.grantRepository.MarkExpired(ctx, s.database, grant.UUID, before)
			if err != nil {
				log.Printf("[SweepService] не удалось пометить грант %s истёкшим: %v", grant.UUID, err)
				continue
			}
			if !expired {
				// параллельная промоция успела раньше, грант не трогаем
				continue
			}

			if err := s.storage.DeleteObject(ctx, grant.StagingKey); err != nil && !errors.Is(err, model.ErrObjectNotFound) {
				log.Printf("[SweepService] не удалось удалить staging-объект %s: %v", grant.StagingKey, err)
			}

			if err := s.cacheRepository.DeleteGrant(ctx, grant.UUID); err != nil {
				log.Printf("[SweepService] ошибка удаления гранта из кэша: %v", err)
			}

			swept++
		}

		if len(grants) < sweepBatchSize {
			return swept, nil
		}
	}
}
