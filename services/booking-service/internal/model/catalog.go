package model

import "time"

type OfferingKind string

const (
	KindService OfferingKind = "service"
	KindPackage OfferingKind = "package"
)

// Offering is the slice of a catalog service or package the booking core needs.
type Offering struct {
	Kind            OfferingKind
	ID              int64
	Name            string
	DurationMinutes int
	IsActive        bool
}

func (o Offering) Duration() time.Duration {
	return time.Duration(o.DurationMinutes) * time.Minute
}
