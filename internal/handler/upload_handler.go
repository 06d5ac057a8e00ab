package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"upload-broker/internal/model"
	requestresponse "upload-broker/internal/model/requestresponse"
	"upload-broker/internal/ports"
	"upload-broker/internal/security"
	"upload-broker/internal/util"
)

type UploadHandler struct {
	ledgerService    ports.LedgerService
	promotionService ports.PromotionService
}

func NewUploadHandler(ledgerService ports.LedgerService, promotionService ports.PromotionService) *UploadHandler {
	return &UploadHandler{
		ledgerService:    ledgerService,
		promotionService: promotionService,
	}
}

// IssueGrant godoc
// @Summary Выдача гранта на загрузку
// @Description Проверяет политики (размер, тип, частота) и возвращает pre-signed PUT URL,
// ограниченный одним staging-ключом и окном действия гранта.
// @Tags Uploads
// @Accept json
// @Produce json
// @Param body body requestresponse.IssueGrantRequest true "Заявленные мета-данные"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 201 {object} requestresponse.IssueGrantResponse
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректный JSON или пустые поля"
// @Failure 401 {object} requestresponse.ErrorResponse "Пользователь не авторизован"
// @Failure 413 {object} requestresponse.ErrorResponse "Размер превышает потолок роли"
// @Failure 415 {object} requestresponse.ErrorResponse "Тип не входит в разрешённый список"
// @Failure 429 {object} requestresponse.ErrorResponse "Превышен лимит выдачи грантов"
// @Failure 500 {object} requestresponse.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/uploads [post]
func (h *UploadHandler) IssueGrant(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims, err := security.GetClaimsFromContext(ctx)
	if err != nil {
		util.HandleError(w, "пользователь не авторизован", http.StatusUnauthorized)
		return
	}

	var req requestresponse.IssueGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.HandleError(w, "некорректный JSON", http.StatusBadRequest)
		return
	}

	if req.FileName == "" || req.ContentType == "" || req.SizeBytes <= 0 {
		util.HandleError(w, "file_name, content_type и size_bytes обязательны", http.StatusBadRequest)
		return
	}

	grant, putURL, err := h.ledgerService.IssueGrant(ctx, claims.UserUUID, claims.Role, req.FileName, req.ContentType, req.SizeBytes)
	if err != nil {
		log.Println(err)
		switch {
		case errors.Is(err, model.ErrQuotaExceeded):
			util.HandleRejection(w, err, "заявленный размер превышает лимит роли", http.StatusRequestEntityTooLarge)
		case errors.Is(err, model.ErrContentTypeNotAllowed):
			util.HandleRejection(w, err, "тип содержимого не разрешён", http.StatusUnsupportedMediaType)
		case errors.Is(err, model.ErrRateLimited):
			util.HandleRejection(w, err, "превышен лимит запросов, повторите позже", http.StatusTooManyRequests)
		default:
			util.HandleError(w, "внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	response := requestresponse.IssueGrantResponse{
		UploadUUID: grant.UUID,
		PutURL:     putURL,
		ExpiresAt:  grant.ExpiresAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

// GetUpload godoc
// @Summary Состояние загрузки
// @Description Возвращает грант владельцу. Чужой или несуществующий идентификатор
// дают одинаковый ответ 404.
// @Tags Uploads
// @Produce json
// @Param upload_id path string true "UUID загрузки"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.UploadStatusResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse "Грант не найден"
// @Failure 500 {object} requestresponse.ErrorResponse
// @Router /api/uploads/{upload_id} [get]
func (h *UploadHandler) GetUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims, err := security.GetClaimsFromContext(ctx)
	if err != nil {
		util.HandleError(w, "пользователь не авторизован", http.StatusUnauthorized)
		return
	}

	uploadUUID := chi.URLParam(r, "upload_id")
	if uploadUUID == "" {
		util.HandleError(w, "ID загрузки обязателен", http.StatusBadRequest)
		return
	}

	grant, err := h.ledgerService.GetUpload(ctx, uploadUUID, claims.UserUUID)
	if err != nil {
		log.Println(err)
		switch {
		case errors.Is(err, model.ErrGrantNotFound):
			util.HandleRejection(w, err, "грант не найден", http.StatusNotFound)
		default:
			util.HandleError(w, "внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	response := requestresponse.UploadStatusFromModel(grant)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// MarkUploaded godoc
// @Summary Подтверждение завершения загрузки
// @Description Переводит грант из issued в uploaded, пока окно записи не закрыто
// @Tags Uploads
// @Produce json
// @Param upload_id path string true "UUID загрузки"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.UploadStatusResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse "Грант не найден"
// @Failure 409 {object} requestresponse.ErrorResponse "Загрузка уже подтверждена"
// @Failure 410 {object} requestresponse.ErrorResponse "Окно записи закрыто"
// @Failure 500 {object} requestresponse.ErrorResponse
// @Router /api/uploads/{upload_id}/complete [post]
func (h *UploadHandler) MarkUploaded(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims, err := security.GetClaimsFromContext(ctx)
	if err != nil {
		util.HandleError(w, "пользователь не авторизован", http.StatusUnauthorized)
		return
	}

	uploadUUID := chi.URLParam(r, "upload_id")
	if uploadUUID == "" {
		util.HandleError(w, "ID загрузки обязателен", http.StatusBadRequest)
		return
	}

	if err := h.ledgerService.MarkUploaded(ctx, uploadUUID, claims.UserUUID); err != nil {
		log.Println(err)
		switch {
		case errors.Is(err, model.ErrGrantNotFound):
			util.HandleRejection(w, err, "грант не найден", http.StatusNotFound)
		case errors.Is(err, model.ErrGrantExpired):
			util.HandleRejection(w, err, "окно записи закрыто", http.StatusGone)
		case errors.Is(err, model.ErrAlreadyUploaded):
			util.HandleRejection(w, err, "загрузка уже подтверждена", http.StatusConflict)
		default:
			util.HandleError(w, "внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	grant, err := h.ledgerService.GetUpload(ctx, uploadUUID, claims.UserUUID)
	if err != nil {
		log.Println(err)
		util.HandleError(w, "внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	response := requestresponse.UploadStatusFromModel(grant)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// Promote godoc
// @Summary Промоция staging-объекта в постоянное хранилище
// @Description Проверяет владельца, статус, наличие staging-объекта и сигнатуру
// содержимого, затем копирует объект в постоянное хранилище. Повторная промоция
// возвращает прежний результат. Причина отказа всегда конкретна: copy_failed
// можно повторять с тем же uploadId, type_mismatch и forbidden — нет.
// @Tags Uploads
// @Accept json
// @Produce json
// @Param upload_id path string true "UUID загрузки"
// @Param body body requestresponse.PromoteRequest true "Назначение"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.PromoteResponse "Идемпотентный повтор"
// @Success 201 {object} requestresponse.PromoteResponse "Промоция выполнена"
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректное назначение"
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse "Чужой или неизвестный идентификатор"
// @Failure 409 {object} requestresponse.ErrorResponse "Загрузка не подтверждена или ключ занят"
// @Failure 410 {object} requestresponse.ErrorResponse "Staging-объект убран"
// @Failure 422 {object} requestresponse.ErrorResponse "Сигнатура не совпала с заявленным типом"
// @Failure 502 {object} requestresponse.ErrorResponse "Ошибка копирования, можно повторить"
// @Router /api/uploads/{upload_id}/promote [post]
func (h *UploadHandler) Promote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	claims, err := security.GetClaimsFromContext(ctx)
	if err != nil {
		util.HandleError(w, "пользователь не авторизован", http.StatusUnauthorized)
		return
	}

	uploadUUID := chi.URLParam(r, "upload_id")
	if uploadUUID == "" {
		util.HandleError(w, "ID загрузки обязателен", http.StatusBadRequest)
		return
	}

	var req requestresponse.PromoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.HandleError(w, "некорректный JSON", http.StatusBadRequest)
		return
	}

	if req.Destination == "" {
		util.HandleError(w, "destination обязателен", http.StatusBadRequest)
		return
	}

	object, replayed, err := h.promotionService.Promote(ctx, uploadUUID, claims.UserUUID, req.Destination, req.Overwrite)
	if err != nil {
		log.Println(err)
		switch {
		case errors.Is(err, model.ErrGrantNotFound):
			util.HandleRejection(w, err, "грант не найден или принадлежит другому владельцу", http.StatusForbidden)
		case errors.Is(err, model.ErrNotReady):
			util.HandleRejection(w, err, "загрузка ещё не подтверждена", http.StatusConflict)
		case errors.Is(err, model.ErrSourceMissing):
			util.HandleRejection(w, err, "staging-объект не найден или грант истёк", http.StatusGone)
		case errors.Is(err, model.ErrTypeMismatch):
			util.HandleRejection(w, err, "содержимое не соответствует заявленному типу", http.StatusUnprocessableEntity)
		case errors.Is(err, model.ErrConflict):
			util.HandleRejection(w, err, "объект назначения уже существует", http.StatusConflict)
		case errors.Is(err, model.ErrBadDestination):
			util.HandleRejection(w, err, "недопустимый префикс назначения", http.StatusBadRequest)
		case errors.Is(err, model.ErrCopyFailed):
			util.HandleRejection(w, err, "ошибка копирования, повторите запрос", http.StatusBadGateway)
		default:
			util.HandleError(w, "внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	response := requestresponse.PromoteResponseFromModel(object, replayed)

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
