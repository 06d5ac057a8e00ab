package model

import "time"

// GrantStatus : статус гранта на загрузку.
// Переходы строго монотонные: issued -> uploaded -> promoted,
// issued/uploaded -> expired, uploaded -> rejected. Обратных переходов нет.
type GrantStatus string

const (
	GrantStatusIssued   GrantStatus = "issued"
	GrantStatusUploaded GrantStatus = "uploaded"
	GrantStatusPromoted GrantStatus = "promoted"
	GrantStatusExpired  GrantStatus = "expired"
	GrantStatusRejected GrantStatus = "rejected"
)

type UploadGrant struct {
	UUID                string      `db:"uuid" json:"uuid"`
	OwnerUUID           string      `db:"owner_uuid" json:"owner_uuid"`
	DeclaredFileName    string      `db:"declared_file_name" json:"declared_file_name"`
	DeclaredContentType string      `db:"declared_content_type" json:"declared_content_type"`
	DeclaredSizeBytes   int64       `db:"declared_size_bytes" json:"declared_size_bytes"`
	StagingKey          string      `db:"staging_key" json:"-"`
	Status              GrantStatus `db:"status" json:"status"`
	IssuedAt            time.Time   `db:"issued_at" json:"issued_at"`
	ExpiresAt           time.Time   `db:"expires_at" json:"expires_at"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updated_at"`
}

// Expired : окно записи в staging закрыто
func (g *UploadGrant) Expired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}

// PermanentObject : результат успешной промоции.
// Создаётся только сервисом промоции, после создания не изменяется.
type PermanentObject struct {
	UUID            string    `db:"uuid" json:"uuid"`
	UploadUUID      string    `db:"upload_uuid" json:"upload_uuid"`
	OwnerUUID       string    `db:"owner_uuid" json:"owner_uuid"`
	DestinationKey  string    `db:"destination_key" json:"destination_key"`
	PublicReference string    `db:"public_reference" json:"public_reference"`
	PromotedAt      time.Time `db:"promoted_at" json:"promoted_at"`
}
