package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farellandr/aquapark/internal/cache"
	"github.com/farellandr/aquapark/internal/models"
	"go.uber.org/zap"
)

// Ledger is the persistence side of per-date capacity. Tickets are reserved
// and released only inside the order transitions of OrderStore.
type Ledger interface {
	List(ctx context.Context) ([]models.TicketAvailability, error)
	ListBookable(ctx context.Context, fromDate string) ([]models.TicketAvailability, error)
	Get(ctx context.Context, date string) (*models.TicketAvailability, error)
	Create(ctx context.Context, a *models.TicketAvailability) error
	Update(ctx context.Context, date string, total *int, active *bool) (*models.TicketAvailability, error)
	Delete(ctx context.Context, date string) error
}

type AvailabilityResult struct {
	Available bool   `json:"available"`
	Remaining int    `json:"remaining"`
	Message   string `json:"message,omitempty"`
}

type DateRemaining = cache.DateRemaining

type AvailabilityService struct {
	ledger Ledger
	cache  *cache.AvailabilityCache
	log    *zap.Logger
	now    func() time.Time
}

func NewAvailabilityService(ledger Ledger, c *cache.AvailabilityCache, log *zap.Logger) *AvailabilityService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AvailabilityService{
		ledger: ledger,
		cache:  c,
		log:    log,
		now:    time.Now,
	}
}

func (s *AvailabilityService) today() string {
	return s.now().UTC().Format(models.DateLayout)
}

// CheckAvailability is advisory only. It never reserves anything and every
// doubt resolves to unavailable.
func (s *AvailabilityService) CheckAvailability(ctx context.Context, date string, quantity int) (*AvailabilityResult, error) {
	day, err := models.ParseDate(date)
	if err != nil {
		return &AvailabilityResult{Message: "Invalid date format. Use YYYY-MM-DD."}, nil
	}
	if quantity < 1 {
		return &AvailabilityResult{Message: "Quantity must be at least 1."}, nil
	}
	if day < s.today() {
		return &AvailabilityResult{Message: "This date has already passed."}, nil
	}

	a, err := s.ledger.Get(ctx, day)
	if errors.Is(err, models.ErrDateNotFound) {
		return &AvailabilityResult{Message: "Tickets are not on sale for this date."}, nil
	}
	if err != nil {
		return nil, err
	}
	if !a.IsActive {
		return &AvailabilityResult{Message: "Tickets are not on sale for this date."}, nil
	}

	remaining := a.Remaining()
	if remaining < quantity {
		msg := "Sold out for this date."
		if remaining > 0 {
			msg = fmt.Sprintf("Only %d tickets left for this date.", remaining)
		}
		return &AvailabilityResult{Remaining: remaining, Message: msg}, nil
	}
	return &AvailabilityResult{Available: true, Remaining: remaining}, nil
}

// ListActiveDates returns bookable dates from today on, served from cache when possible.
func (s *AvailabilityService) ListActiveDates(ctx context.Context) ([]DateRemaining, error) {
	if cached, ok := s.cache.GetActiveDates(ctx); ok {
		return cached, nil
	}

	rows, err := s.ledger.ListBookable(ctx, s.today())
	if err != nil {
		return nil, err
	}
	out := make([]DateRemaining, 0, len(rows))
	for _, a := range rows {
		out = append(out, DateRemaining{Date: a.Date, Remaining: a.Remaining()})
	}

	if err := s.cache.SetActiveDates(ctx, out); err != nil {
		s.log.Warn("failed to cache active dates", zap.Error(err))
	}
	return out, nil
}

// Invalidate drops cached listings. Cache failures are logged and otherwise ignored.
func (s *AvailabilityService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("failed to invalidate availability cache", zap.Error(err))
	}
}

func (s *AvailabilityService) List(ctx context.Context) ([]models.TicketAvailability, error) {
	return s.ledger.List(ctx)
}

func (s *AvailabilityService) Get(ctx context.Context, date string) (*models.TicketAvailability, error) {
	day, err := models.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return s.ledger.Get(ctx, day)
}

func (s *AvailabilityService) Create(ctx context.Context, date string, total int) (*models.TicketAvailability, error) {
	day, err := models.ParseDate(date)
	if err != nil {
		return nil, err
	}
	if total < 0 {
		return nil, models.ErrInvalidCapacity
	}
	a := &models.TicketAvailability{Date: day, TotalTickets: total, IsActive: true}
	if err := s.ledger.Create(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info("availability date created", zap.String("date", day), zap.Int("total_tickets", total))
	s.Invalidate(ctx)
	return a, nil
}

func (s *AvailabilityService) Update(ctx context.Context, date string, total *int, active *bool) (*models.TicketAvailability, error) {
	day, err := models.ParseDate(date)
	if err != nil {
		return nil, err
	}
	if total != nil && *total < 0 {
		return nil, models.ErrInvalidCapacity
	}
	a, err := s.ledger.Update(ctx, day, total, active)
	if err != nil {
		return nil, err
	}
	s.log.Info("availability date updated",
		zap.String("date", day),
		zap.Int("total_tickets", a.TotalTickets),
		zap.Bool("is_active", a.IsActive))
	s.Invalidate(ctx)
	return a, nil
}

func (s *AvailabilityService) Delete(ctx context.Context, date string) error {
	day, err := models.ParseDate(date)
	if err != nil {
		return err
	}
	if err := s.ledger.Delete(ctx, day); err != nil {
		return err
	}
	s.log.Info("availability date deleted", zap.String("date", day))
	s.Invalidate(ctx)
	return nil
}
