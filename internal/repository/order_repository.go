package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farellandr/aquapark/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderRepository persists orders. State changes are compare-and-set updates
// keyed on the current payment_status so replays and concurrent writers are
// resolved by the database, not by in-memory flags.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

type OrderFilter struct {
	Status      models.PaymentStatus
	VisitDate   string
	NeedsReview *bool
	Limit       int
}

type OrderStats struct {
	TotalOrders      int64                          `json:"total_orders"`
	ByStatus         map[models.PaymentStatus]int64 `json:"by_status"`
	NeedsReview      int64                          `json:"needs_review"`
	ApprovedRevenue  models.Money                   `json:"approved_revenue"`
	TicketsValidated int64                          `json:"tickets_validated"`
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("create order %s: %w", order.OrderID, err)
	}
	return nil
}

func (r *OrderRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx), "order_id = ?", orderID)
}

func (r *OrderRepository) GetByTicketCode(ctx context.Context, code string) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx), "ticket_code = ?", code)
}

func (r *OrderRepository) first(db *gorm.DB, query string, args ...interface{}) (*models.Order, error) {
	var order models.Order
	if err := db.Preload("Items").Where(query, args...).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) List(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Preload("Items").Order("created_at DESC")
	if filter.Status != "" {
		q = q.Where("payment_status = ?", filter.Status)
	}
	if filter.VisitDate != "" {
		q = q.Where("visit_date = ?", filter.VisitDate)
	}
	if filter.NeedsReview != nil {
		q = q.Where("needs_review = ?", *filter.NeedsReview)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var out []models.Order
	if err := q.Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetCheckout records the processor session on a pending order.
func (r *OrderRepository) SetCheckout(ctx context.Context, orderID, provider, reference, redirectURL string) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_id = ? AND payment_status = ?", orderID, models.PaymentPending).
		Updates(map[string]interface{}{
			"payment_provider":   provider,
			"provider_reference": reference,
			"redirect_url":       redirectURL,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

// Transition moves an order from one status to another if it is still in the
// expected state. fields are written in the same statement.
func (r *OrderRepository) Transition(ctx context.Context, orderID string, from, to models.PaymentStatus, fields map[string]interface{}) error {
	return transition(r.db.WithContext(ctx), orderID, from, to, fields)
}

func transition(db *gorm.DB, orderID string, from, to models.PaymentStatus, fields map[string]interface{}) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}
	updates := map[string]interface{}{
		"payment_status": to,
		"updated_at":     time.Now().UTC(),
	}
	for k, v := range fields {
		updates[k] = v
	}
	q := db.Model(&models.Order{}).Where("order_id = ? AND payment_status = ?", orderID, from)
	if from == models.PaymentApproved {
		// a ticket that has been used at the gate is never reversed
		q = q.Where("validated = ?", false)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

// Approve settles a pending order and reserves its tickets in one transaction.
// If the ledger refuses, nothing is written and the ledger error is returned.
func (r *OrderRepository) Approve(ctx context.Context, orderID, ticketCode, paymentID string) (*models.Order, error) {
	var approved *models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := r.first(tx, "order_id = ?", orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus != models.PaymentPending {
			return models.ErrInvalidTransition
		}

		fields := map[string]interface{}{"ticket_code": ticketCode}
		if paymentID != "" {
			fields["payment_id"] = paymentID
		}
		if err := transition(tx, orderID, models.PaymentPending, models.PaymentApproved, fields); err != nil {
			return err
		}
		if err := reserve(tx, order.VisitDate, order.TotalQuantity()); err != nil {
			return err
		}

		approved, err = r.first(tx, "order_id = ?", orderID)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, models.ErrTicketCodeInUse
	}
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// Reverse cancels or refunds an approved order, clears its ticket code and
// gives the tickets back to the date.
func (r *OrderRepository) Reverse(ctx context.Context, orderID string, to models.PaymentStatus, reason string) (*models.Order, error) {
	var reversed *models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := r.first(tx, "order_id = ?", orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus != models.PaymentApproved {
			return models.ErrInvalidTransition
		}
		if order.Validated {
			return models.ErrTicketAlreadyUsed
		}

		fields := map[string]interface{}{"ticket_code": nil}
		if reason != "" {
			fields["review_reason"] = reason
		}
		if err := transition(tx, orderID, models.PaymentApproved, to, fields); err != nil {
			return err
		}
		if err := release(tx, order.VisitDate, order.TotalQuantity()); err != nil && !errors.Is(err, models.ErrDateNotFound) {
			return err
		}

		reversed, err = r.first(tx, "order_id = ?", orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reversed, nil
}

// Redeem marks an approved, unused ticket as validated. It reports false when
// another caller got there first or the order is not redeemable.
func (r *OrderRepository) Redeem(ctx context.Context, ticketCode string, staffID uuid.UUID, staffName string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("ticket_code = ? AND payment_status = ? AND validated = ?", ticketCode, models.PaymentApproved, false).
		Updates(map[string]interface{}{
			"validated":         true,
			"validated_at":      at,
			"validated_by":      staffID,
			"validated_by_name": staffName,
			"updated_at":        at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *OrderRepository) Stats(ctx context.Context) (*OrderStats, error) {
	db := r.db.WithContext(ctx)
	stats := &OrderStats{ByStatus: map[models.PaymentStatus]int64{}}

	var rows []struct {
		PaymentStatus models.PaymentStatus
		Count         int64
	}
	if err := db.Model(&models.Order{}).Select("payment_status, COUNT(*) AS count").Group("payment_status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByStatus[row.PaymentStatus] = row.Count
		stats.TotalOrders += row.Count
	}

	if err := db.Model(&models.Order{}).Where("needs_review = ?", true).Count(&stats.NeedsReview).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).Where("validated = ?", true).Count(&stats.TicketsValidated).Error; err != nil {
		return nil, err
	}

	var revenue int64
	if err := db.Model(&models.Order{}).Where("payment_status = ?", models.PaymentApproved).
		Select("COALESCE(SUM(total_amount), 0)").Scan(&revenue).Error; err != nil {
		return nil, err
	}
	stats.ApprovedRevenue = models.Money(revenue)
	return stats, nil
}
