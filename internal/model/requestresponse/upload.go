package requestresponse

import (
	"time"

	"upload-broker/internal/model"
)

// IssueGrantRequest : заявленные клиентом мета-данные будущей загрузки.
// Они не проверяются до промоции, кроме лимитов на размер и тип.
type IssueGrantRequest struct {
	FileName    string `json:"file_name" example:"photo.jpg"`
	ContentType string `json:"content_type" example:"image/jpeg"`
	SizeBytes   int64  `json:"size_bytes" example:"1048576"`
}

// IssueGrantResponse : выданный грант и одноразовый pre-signed PUT URL
type IssueGrantResponse struct {
	UploadUUID string `json:"upload_uuid" example:"b6a1e1c4-4b1d-4f1e-8b29-1234567890ab"`
	PutURL     string `json:"put_url"`
	ExpiresAt  string `json:"expires_at" example:"2025-08-23T12:34:56Z"`
}

// UploadStatusResponse : состояние гранта для владельца
type UploadStatusResponse struct {
	UploadUUID  string `json:"upload_uuid"`
	FileName    string `json:"file_name" example:"photo.jpg"`
	ContentType string `json:"content_type" example:"image/jpeg"`
	SizeBytes   int64  `json:"size_bytes" example:"1048576"`
	Status      string `json:"status" example:"uploaded"`
	IssuedAt    string `json:"issued_at" example:"2025-08-23T12:30:00Z"`
	ExpiresAt   string `json:"expires_at" example:"2025-08-23T12:45:00Z"`
}

// UploadStatusFromModel : конвертирует model.UploadGrant в UploadStatusResponse
func UploadStatusFromModel(grant *model.UploadGrant) UploadStatusResponse {
	return UploadStatusResponse{
		UploadUUID:  grant.UUID,
		FileName:    grant.DeclaredFileName,
		ContentType: grant.DeclaredContentType,
		SizeBytes:   grant.DeclaredSizeBytes,
		Status:      string(grant.Status),
		IssuedAt:    grant.IssuedAt.Format(time.RFC3339),
		ExpiresAt:   grant.ExpiresAt.Format(time.RFC3339),
	}
}

// PromoteRequest : запрос на промоцию staging-объекта
type PromoteRequest struct {
	Destination string `json:"destination" example:"notices/notice-9999/"`
	Overwrite   bool   `json:"overwrite" example:"false"`
}

// PromoteResponse : постоянный объект после успешной промоции
type PromoteResponse struct {
	ObjectUUID      string `json:"object_uuid"`
	UploadUUID      string `json:"upload_uuid"`
	DestinationKey  string `json:"destination_key" example:"notices/notice-9999/photo.jpg"`
	PublicReference string `json:"public_reference" example:"https://cdn.example.com/notices/notice-9999/photo.jpg"`
	PromotedAt      string `json:"promoted_at" example:"2025-08-23T12:40:00Z"`
	Replayed        bool   `json:"replayed" example:"false"`
}

// PromoteResponseFromModel : конвертирует model.PermanentObject в PromoteResponse
func PromoteResponseFromModel(object *model.PermanentObject, replayed bool) PromoteResponse {
	return PromoteResponse{
		ObjectUUID:      object.UUID,
		UploadUUID:      object.UploadUUID,
		DestinationKey:  object.DestinationKey,
		PublicReference: object.PublicReference,
		PromotedAt:      object.PromotedAt.Format(time.RFC3339),
		Replayed:        replayed,
	}
}

// ErrorResponse : тело ответа при отказе, reason различает
// повторяемые ошибки (copy_failed) от нарушений политики (type_mismatch)
type ErrorResponse struct {
	Error   string `json:"error" example:"Forbidden"`
	Message string `json:"message" example:"грант не найден"`
	Reason  string `json:"reason" example:"forbidden"`
	Code    int    `json:"code" example:"403"`
}
