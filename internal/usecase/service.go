package usecase

import (
	"storefront/internal/data/repository"
	"storefront/internal/notify"
	"storefront/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Auth    AuthService
	User    UserService
	Product ProductService
	Order   OrderService
}

func NewService(
	repo *repository.Repository,
	jwt *utils.JWTManager,
	notifier notify.Notifier,
	config *utils.Config,
	log *zap.Logger,
) *Service {
	return &Service{
		Auth:    NewAuthService(repo, utils.NewBcryptHasher(0), jwt, NewTokenIssuer(), notifier, config, log),
		User:    NewUserService(repo.User, config, log),
		Product: NewProductService(repo.Product, config, log),
		Order:   NewOrderService(repo, config, log),
	}
}
