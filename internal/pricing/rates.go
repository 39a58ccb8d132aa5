package pricing

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
)

// RateTable resolves a destination region to a flat shipping fee.
type RateTable interface {
	FeeForRegion(ctx context.Context, region string) (int, error)
}

type rateTable struct {
	db *gorm.DB
}

// NewRateTable returns the gorm-backed shipping rate table.
func NewRateTable(db *gorm.DB) (RateTable, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db is required")
	}
	return &rateTable{db: db}, nil
}

// FeeForRegion returns the flat fee for a region. An unknown or empty region
// resolves to zero rather than an error; address completeness is enforced
// elsewhere.
func (r *rateTable) FeeForRegion(ctx context.Context, region string) (int, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		return 0, nil
	}
	var rate models.ShippingRate
	err := r.db.WithContext(ctx).First(&rate, "region = ?", region).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping rate")
	}
	return rate.FeeCents, nil
}
