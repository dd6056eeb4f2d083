package repository

import (
	"context"
	"errors"

	"github.com/farellandr/aquapark/internal/models"
	"gorm.io/gorm"
)

type TicketTypeRepository struct {
	db *gorm.DB
}

func NewTicketTypeRepository(db *gorm.DB) *TicketTypeRepository {
	return &TicketTypeRepository{db: db}
}

// ActiveByIDs returns the active ticket types among ids, keyed by ticket id.
func (r *TicketTypeRepository) ActiveByIDs(ctx context.Context, ids []string) (map[string]models.TicketType, error) {
	var types []models.TicketType
	if err := r.db.WithContext(ctx).Where("ticket_id IN ? AND is_active = ?", ids, true).Find(&types).Error; err != nil {
		return nil, err
	}
	out := make(map[string]models.TicketType, len(types))
	for _, t := range types {
		out[t.TicketID] = t
	}
	return out, nil
}

func (r *TicketTypeRepository) Get(ctx context.Context, id string) (*models.TicketType, error) {
	var t models.TicketType
	if err := r.db.WithContext(ctx).Where("ticket_id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrUnknownTicketType
		}
		return nil, err
	}
	return &t, nil
}
