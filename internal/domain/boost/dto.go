package boost

// BoostRequest is the body of POST /products/{id}/boost.
type BoostRequest struct {
	DurationHours int `json:"duration_hours" validate:"required,boost_hours"`
}
