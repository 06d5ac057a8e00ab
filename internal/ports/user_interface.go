package ports

import (
	"context"

	"github.com/jmoiron/sqlx"

	"upload-broker/internal/model"
)

type UserRepository interface {
	CreateUser(ctx context.Context, exec sqlx.ExtContext, user *model.User) (*model.User, error)
	FindByUUID(ctx context.Context, exec sqlx.ExtContext, uuid string) (*model.User, error)
	FindByLogin(ctx context.Context, exec sqlx.ExtContext, login string) (*model.User, error)
}

type UserService interface {
	Register(ctx context.Context, adminToken string, login string, password string, role string) (*model.TokensPair, error)
}
