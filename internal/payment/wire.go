//go:build wireinject
// +build wireinject

package payment

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/oryjk/payment-service/internal/payment/cache"
	"github.com/oryjk/payment-service/internal/payment/domain"
	"github.com/oryjk/payment-service/internal/payment/handler"
	"github.com/oryjk/payment-service/internal/payment/repository"
	"github.com/oryjk/payment-service/internal/payment/usecase/command"
	"github.com/oryjk/payment-service/internal/payment/usecase/query"
	"github.com/oryjk/payment-service/kafka"
)

// ProvidePaymentRepository provides the payment repository with tracing
func ProvidePaymentRepository(db *gorm.DB) domain.PaymentRepository {
	return repository.NewGormPaymentRepositoryWithTracing(db)
}

// Command Handlers Providers
func ProvideCreatePaymentHandler(repo domain.PaymentRepository, gateway domain.WechatGateway) *command.CreatePaymentHandler {
	return command.NewCreatePaymentHandler(repo, gateway)
}

func ProvideNotificationHandler(repo domain.PaymentRepository, gateway domain.WechatGateway) *command.NotificationHandler {
	return command.NewNotificationHandler(repo, gateway)
}

func ProvideClosePaymentHandler(repo domain.PaymentRepository, gateway domain.WechatGateway) *command.ClosePaymentHandler {
	return command.NewClosePaymentHandler(repo, gateway)
}

func ProvideDeletePaymentHandler(repo domain.PaymentRepository) *command.DeletePaymentHandler {
	return command.NewDeletePaymentHandler(repo)
}

// Query Handlers Providers
func ProvideGetPaymentHandler(repo domain.PaymentRepository, gateway domain.WechatGateway) *query.GetPaymentHandler {
	return query.NewGetPaymentHandler(repo, gateway)
}

// Wire sets
var RepositorySet = wire.NewSet(
	ProvidePaymentRepository,
)

var CommandHandlerSet = wire.NewSet(
	ProvideCreatePaymentHandler,
	ProvideNotificationHandler,
	ProvideClosePaymentHandler,
	ProvideDeletePaymentHandler,
)

var QueryHandlerSet = wire.NewSet(
	ProvideGetPaymentHandler,
)

var AllHandlersSet = wire.NewSet(
	RepositorySet,
	CommandHandlerSet,
	QueryHandlerSet,
)

// InitializeHandler initializes payment handler with all dependencies
func InitializeHandler(
	db *gorm.DB,
	gateway domain.WechatGateway,
	publisher *kafka.Publisher,
	notifCache *cache.NotificationCache,
	adminSecret handler.AdminSecret,
) (*handler.PaymentHandler, error) {
	wire.Build(
		AllHandlersSet,
		handler.NewPaymentHandlerWithDI,
	)
	return nil, nil
}
