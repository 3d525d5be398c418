package boost

import (
	"errors"
	"fmt"

	"github.com/marketly/marketly-api/internal/domain/product"
)

var (
	ErrInvalidDuration = errors.New("duration must be 24, 72 or 168 hours")

	// ErrNotEligible is returned when the compare-and-set found no boostable
	// row. The errors below say why; all of them match ErrNotEligible.
	ErrNotEligible = errors.New("product is not eligible for boost")

	ErrAlreadyBoosted  = fmt.Errorf("%w: already boosted", ErrNotEligible)
	ErrProductInactive = fmt.Errorf("%w: product is inactive", ErrNotEligible)
	ErrProductNotFound = fmt.Errorf("%w: %w", ErrNotEligible, product.ErrProductNotFound)
	ErrNotOwner        = fmt.Errorf("%w: %w", ErrNotEligible, product.ErrNotOwner)
)
