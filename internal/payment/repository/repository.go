package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oryjk/payment-service/internal/payment/domain"
)

// paymentOrderModel is the persisted shape of a payment order. State
// and method are stored as their canonical lowercase tokens.
type paymentOrderModel struct {
	ID            string         `gorm:"primaryKey;size:36"`
	OutOrderNo    string         `gorm:"uniqueIndex;size:64;not null"`
	TransactionID *string        `gorm:"index;size:64"`
	AmountCents   int64          `gorm:"not null"`
	PaymentMethod string         `gorm:"size:16;not null"`
	State         string         `gorm:"size:16;not null"`
	Description   string         `gorm:"size:127;not null"`
	Openid        *string        `gorm:"size:128"`
	ClientIP      string         `gorm:"size:45"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
	Attach        *string        `gorm:"size:255"`
	PrepayID      *string        `gorm:"size:64"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (paymentOrderModel) TableName() string {
	return "payment_orders"
}

func toModel(o *domain.PaymentOrder) *paymentOrderModel {
	m := &paymentOrderModel{
		ID:            o.ID,
		OutOrderNo:    o.OutOrderNo,
		AmountCents:   o.Amount.ToCents(),
		PaymentMethod: o.Method.String(),
		State:         o.State.String(),
		Description:   o.Description,
		ClientIP:      o.ClientIP,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		PaidAt:        o.PaidAt,
	}
	if o.TransactionID != "" {
		m.TransactionID = &o.TransactionID
	}
	if o.Openid != "" {
		m.Openid = &o.Openid
	}
	if o.Attach != "" {
		m.Attach = &o.Attach
	}
	if o.PrepayID != "" {
		m.PrepayID = &o.PrepayID
	}
	return m
}

// toDomain rejects unrecognized state or method tokens as corruption
// instead of letting them flow into the state machine.
func toDomain(m *paymentOrderModel) (*domain.PaymentOrder, error) {
	state, err := domain.ParsePaymentState(m.State)
	if err != nil {
		return nil, err
	}
	method, err := domain.ParsePaymentMethod(m.PaymentMethod)
	if err != nil {
		return nil, &domain.StorageError{Op: "decode row", Err: err}
	}

	o := &domain.PaymentOrder{
		ID:          m.ID,
		OutOrderNo:  m.OutOrderNo,
		Amount:      domain.FromCents(m.AmountCents),
		Method:      method,
		State:       state,
		Description: m.Description,
		ClientIP:    m.ClientIP,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		PaidAt:      m.PaidAt,
	}
	if m.TransactionID != nil {
		o.TransactionID = *m.TransactionID
	}
	if m.Openid != nil {
		o.Openid = *m.Openid
	}
	if m.Attach != nil {
		o.Attach = *m.Attach
	}
	if m.PrepayID != nil {
		o.PrepayID = *m.PrepayID
	}
	return o, nil
}

// GormPaymentRepository persists payment orders in Postgres.
type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&paymentOrderModel{})
}

func (r *GormPaymentRepository) Save(ctx context.Context, order *domain.PaymentOrder) error {
	err := r.db.WithContext(ctx).Create(toModel(order)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateOrder
		}
		return &domain.StorageError{Op: "save order", Err: err}
	}
	return nil
}

func (r *GormPaymentRepository) FindByID(ctx context.Context, id string) (*domain.PaymentOrder, error) {
	return r.findOne(ctx, id, "id = ?", id)
}

func (r *GormPaymentRepository) FindByOutOrderNo(ctx context.Context, outOrderNo string) (*domain.PaymentOrder, error) {
	return r.findOne(ctx, outOrderNo, "out_order_no = ?", outOrderNo)
}

func (r *GormPaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentOrder, error) {
	return r.findOne(ctx, transactionID, "transaction_id = ?", transactionID)
}

func (r *GormPaymentRepository) findOne(ctx context.Context, key string, query string, args ...any) (*domain.PaymentOrder, error) {
	var m paymentOrderModel
	err := r.db.WithContext(ctx).Where(query, args...).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.OrderNotFoundError{Key: key}
		}
		return nil, &domain.StorageError{Op: "find order", Err: err}
	}
	return toDomain(&m)
}

// Update writes the mutable fields conditionally: the row must still be
// in fromState. Zero rows affected means a concurrent writer moved the
// order first; that surfaces as ErrStaleOrder, never a silent clobber.
func (r *GormPaymentRepository) Update(ctx context.Context, order *domain.PaymentOrder, fromState domain.PaymentState) error {
	m := toModel(order)
	res := r.db.WithContext(ctx).
		Model(&paymentOrderModel{}).
		Where("id = ? AND state = ?", order.ID, fromState.String()).
		Updates(map[string]any{
			"transaction_id": m.TransactionID,
			"state":          m.State,
			"updated_at":     m.UpdatedAt,
			"paid_at":        m.PaidAt,
			"prepay_id":      m.PrepayID,
		})
	if res.Error != nil {
		return &domain.StorageError{Op: "update order", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&paymentOrderModel{}).
			Where("id = ?", order.ID).Count(&count).Error; err != nil {
			return &domain.StorageError{Op: "update order", Err: err}
		}
		if count == 0 {
			return &domain.OrderNotFoundError{Key: order.ID}
		}
		return domain.ErrStaleOrder
	}
	return nil
}

// Delete soft-deletes via gorm's DeletedAt.
func (r *GormPaymentRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&paymentOrderModel{})
	if res.Error != nil {
		return &domain.StorageError{Op: "delete order", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &domain.OrderNotFoundError{Key: id}
	}
	return nil
}
