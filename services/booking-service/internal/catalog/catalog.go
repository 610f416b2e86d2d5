// Package catalog resolves the services and packages an appointment refers to.
package catalog

import (
	"context"
	"fmt"

	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
)

// Source looks up one offering. Unknown ids return apperr.ErrNotFound.
type Source interface {
	Offering(ctx context.Context, kind model.OfferingKind, id int64) (model.Offering, error)
}

// Selection is what a booking asked for. At least one id must be set.
type Selection struct {
	ServiceID *int64
	PackageID *int64
}

// Resolve validates the selection and returns the offering whose duration governs
// the appointment. When both are given the package wins; both must still exist and
// be active.
func Resolve(ctx context.Context, src Source, sel Selection) (model.Offering, error) {
	if sel.ServiceID == nil && sel.PackageID == nil {
		return model.Offering{}, &apperr.ValidationError{Fields: map[string]string{
			"service_id": "either service_id or package_id is required",
			"package_id": "either service_id or package_id is required",
		}}
	}

	var chosen model.Offering
	if sel.ServiceID != nil {
		o, err := lookup(ctx, src, model.KindService, *sel.ServiceID)
		if err != nil {
			return model.Offering{}, err
		}
		chosen = o
	}
	if sel.PackageID != nil {
		o, err := lookup(ctx, src, model.KindPackage, *sel.PackageID)
		if err != nil {
			return model.Offering{}, err
		}
		chosen = o
	}
	return chosen, nil
}

func lookup(ctx context.Context, src Source, kind model.OfferingKind, id int64) (model.Offering, error) {
	field := string(kind) + "_id"
	if id <= 0 {
		return model.Offering{}, apperr.Invalid(field, "must be a positive id")
	}
	o, err := src.Offering(ctx, kind, id)
	if err != nil {
		return model.Offering{}, fmt.Errorf("%s %d: %w", kind, id, err)
	}
	if !o.IsActive {
		return model.Offering{}, apperr.Invalid(field, fmt.Sprintf("%s is not active", kind))
	}
	if o.DurationMinutes <= 0 {
		return model.Offering{}, apperr.Invalid(field, fmt.Sprintf("%s has no bookable duration", kind))
	}
	return o, nil
}
