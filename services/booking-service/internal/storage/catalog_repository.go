package storage

import (
	"context"
	"fmt"

	"github.com/careerpath/careerdesk/libs/db"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
)

type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) Offering(ctx context.Context, kind model.OfferingKind, id int64) (model.Offering, error) {
	var table string
	switch kind {
	case model.KindService:
		table = "services"
	case model.KindPackage:
		table = "packages"
	default:
		return model.Offering{}, fmt.Errorf("unknown offering kind %q", kind)
	}
	o := model.Offering{Kind: kind}
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, duration_minutes, is_active FROM `+table+` WHERE id = $1
	`, id).Scan(&o.ID, &o.Name, &o.DurationMinutes, &o.IsActive)
	if err != nil {
		return model.Offering{}, translate(err)
	}
	return o, nil
}
