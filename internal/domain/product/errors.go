package product

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrNotOwner        = errors.New("you do not own this product")
	ErrInvalidStatus   = errors.New("invalid product status")
)
