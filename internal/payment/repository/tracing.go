package repository

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/oryjk/payment-service/internal/payment/domain"
)

var tracer = otel.Tracer("payment-repository")

// GormPaymentRepositoryWithTracing wraps GormPaymentRepository with a
// span per operation.
type GormPaymentRepositoryWithTracing struct {
	*GormPaymentRepository
}

func NewGormPaymentRepositoryWithTracing(db *gorm.DB) *GormPaymentRepositoryWithTracing {
	return &GormPaymentRepositoryWithTracing{
		GormPaymentRepository: NewGormPaymentRepository(db),
	}
}

func (r *GormPaymentRepositoryWithTracing) Save(ctx context.Context, order *domain.PaymentOrder) error {
	ctx, span := tracer.Start(ctx, "repository.Save",
		trace.WithAttributes(
			attribute.String("order.out_order_no", order.OutOrderNo),
			attribute.Int64("order.amount_cents", order.Amount.ToCents()),
		),
	)
	defer span.End()

	if err := r.GormPaymentRepository.Save(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	return nil
}

func (r *GormPaymentRepositoryWithTracing) FindByID(ctx context.Context, id string) (*domain.PaymentOrder, error) {
	ctx, span := tracer.Start(ctx, "repository.FindByID",
		trace.WithAttributes(attribute.String("order.id", id)),
	)
	defer span.End()

	order, err := r.GormPaymentRepository.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return order, nil
}

func (r *GormPaymentRepositoryWithTracing) FindByOutOrderNo(ctx context.Context, outOrderNo string) (*domain.PaymentOrder, error) {
	ctx, span := tracer.Start(ctx, "repository.FindByOutOrderNo",
		trace.WithAttributes(attribute.String("order.out_order_no", outOrderNo)),
	)
	defer span.End()

	order, err := r.GormPaymentRepository.FindByOutOrderNo(ctx, outOrderNo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("order.state", order.State.String()))
	return order, nil
}

func (r *GormPaymentRepositoryWithTracing) FindByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentOrder, error) {
	ctx, span := tracer.Start(ctx, "repository.FindByTransactionID",
		trace.WithAttributes(attribute.String("order.transaction_id", transactionID)),
	)
	defer span.End()

	order, err := r.GormPaymentRepository.FindByTransactionID(ctx, transactionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return order, nil
}

func (r *GormPaymentRepositoryWithTracing) Update(ctx context.Context, order *domain.PaymentOrder, fromState domain.PaymentState) error {
	ctx, span := tracer.Start(ctx, "repository.Update",
		trace.WithAttributes(
			attribute.String("order.id", order.ID),
			attribute.String("order.state", order.State.String()),
			attribute.String("order.from_state", fromState.String()),
		),
	)
	defer span.End()

	if err := r.GormPaymentRepository.Update(ctx, order, fromState); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (r *GormPaymentRepositoryWithTracing) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "repository.Delete",
		trace.WithAttributes(attribute.String("order.id", id)),
	)
	defer span.End()

	if err := r.GormPaymentRepository.Delete(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
