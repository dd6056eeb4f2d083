package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farellandr/aquapark/internal/models"
	"gorm.io/gorm"
)

// AvailabilityRepository owns the per-date ticket counters. Every mutation of
// tickets_sold is a single conditional UPDATE so concurrent writers cannot
// push the counter past total_tickets or below zero.
type AvailabilityRepository struct {
	db *gorm.DB
}

func NewAvailabilityRepository(db *gorm.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func (r *AvailabilityRepository) List(ctx context.Context) ([]models.TicketAvailability, error) {
	var out []models.TicketAvailability
	if err := r.db.WithContext(ctx).Order("date ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListBookable returns active dates on or after fromDate that still have tickets left.
func (r *AvailabilityRepository) ListBookable(ctx context.Context, fromDate string) ([]models.TicketAvailability, error) {
	var out []models.TicketAvailability
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND tickets_sold < total_tickets AND date >= ?", true, fromDate).
		Order("date ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AvailabilityRepository) Get(ctx context.Context, date string) (*models.TicketAvailability, error) {
	var a models.TicketAvailability
	if err := r.db.WithContext(ctx).Where("date = ?", date).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrDateNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AvailabilityRepository) Create(ctx context.Context, a *models.TicketAvailability) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TicketAvailability{}).Where("date = ?", a.Date).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return models.ErrDateExists
	}
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.ErrDateExists
		}
		return err
	}
	return nil
}

// Update changes capacity and/or visibility. A new capacity below the current
// tickets_sold is refused by the UPDATE predicate itself.
func (r *AvailabilityRepository) Update(ctx context.Context, date string, totalTickets *int, isActive *bool) (*models.TicketAvailability, error) {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	q := r.db.WithContext(ctx).Model(&models.TicketAvailability{}).Where("date = ?", date)
	if totalTickets != nil {
		updates["total_tickets"] = *totalTickets
		q = q.Where("tickets_sold <= ?", *totalTickets)
	}
	if isActive != nil {
		updates["is_active"] = *isActive
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, date); err != nil {
			return nil, err
		}
		return nil, models.ErrCapacityBelowSold
	}
	return r.Get(ctx, date)
}

// Delete removes a date unless pending or approved orders still point at it.
func (r *AvailabilityRepository) Delete(ctx context.Context, date string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		err := tx.Model(&models.Order{}).
			Where("visit_date = ? AND payment_status IN ?", date, []models.PaymentStatus{models.PaymentPending, models.PaymentApproved}).
			Count(&open).Error
		if err != nil {
			return err
		}
		if open > 0 {
			return models.ErrDateInUse
		}
		res := tx.Where("date = ?", date).Delete(&models.TicketAvailability{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrDateNotFound
		}
		return nil
	})
}

// Reserve atomically adds quantity to tickets_sold if it still fits.
func (r *AvailabilityRepository) Reserve(ctx context.Context, date string, quantity int) error {
	return reserve(r.db.WithContext(ctx), date, quantity)
}

// Release gives quantity back to the date after a cancellation or refund.
func (r *AvailabilityRepository) Release(ctx context.Context, date string, quantity int) error {
	return release(r.db.WithContext(ctx), date, quantity)
}

func reserve(db *gorm.DB, date string, quantity int) error {
	if quantity < 1 {
		return models.ErrInvalidQuantity
	}
	res := db.Model(&models.TicketAvailability{}).
		Where("date = ? AND tickets_sold + ? <= total_tickets", date, quantity).
		Updates(map[string]interface{}{
			"tickets_sold": gorm.Expr("tickets_sold + ?", quantity),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("reserve %s: %w", date, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.TicketAvailability{}).Where("date = ?", date).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrDateNotFound
		}
		return models.ErrCapacityExceeded
	}
	return nil
}

func release(db *gorm.DB, date string, quantity int) error {
	if quantity < 1 {
		return models.ErrInvalidQuantity
	}
	res := db.Model(&models.TicketAvailability{}).
		Where("date = ? AND tickets_sold >= ?", date, quantity).
		Updates(map[string]interface{}{
			"tickets_sold": gorm.Expr("tickets_sold - ?", quantity),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("release %s: %w", date, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.TicketAvailability{}).Where("date = ?", date).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrDateNotFound
		}
		return fmt.Errorf("release %s: fewer than %d tickets recorded as sold", date, quantity)
	}
	return nil
}
