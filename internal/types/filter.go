package types

import (
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/samber/lo"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// QueryFilter holds common pagination and row-status filters for list queries
type QueryFilter struct {
	Limit  *int    `form:"limit"`
	Offset *int    `form:"offset"`
	Status *Status `form:"status"`
}

// NewDefaultQueryFilter returns a filter with sane pagination defaults
func NewDefaultQueryFilter() *QueryFilter {
	return &QueryFilter{
		Limit:  lo.ToPtr(defaultLimit),
		Offset: lo.ToPtr(0),
		Status: lo.ToPtr(StatusPublished),
	}
}

// NewNoLimitQueryFilter returns a filter without pagination, for internal
// full-scan style lookups
func NewNoLimitQueryFilter() *QueryFilter {
	return &QueryFilter{
		Offset: lo.ToPtr(0),
		Status: lo.ToPtr(StatusPublished),
	}
}

func (f *QueryFilter) Validate() error {
	if f == nil {
		return nil
	}
	if f.Limit != nil && (*f.Limit <= 0 || *f.Limit > maxLimit) {
		return ierr.NewError("invalid limit").
			WithHint("Limit must be between 1 and 1000").
			WithReportableDetails(map[string]any{
				"limit": *f.Limit,
			}).
			Mark(ierr.ErrValidation)
	}
	if f.Offset != nil && *f.Offset < 0 {
		return ierr.NewError("invalid offset").
			WithHint("Offset must not be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// GetLimit implements defaulting for optional pagination
func (f *QueryFilter) GetLimit() int {
	if f == nil || f.Limit == nil {
		return defaultLimit
	}
	return *f.Limit
}

func (f *QueryFilter) GetOffset() int {
	if f == nil || f.Offset == nil {
		return 0
	}
	return *f.Offset
}

func (f *QueryFilter) GetStatus() Status {
	if f == nil || f.Status == nil {
		return StatusPublished
	}
	return *f.Status
}

// IsUnlimited returns true if the filter has no limit
func (f *QueryFilter) IsUnlimited() bool {
	return f != nil && f.Limit == nil
}
