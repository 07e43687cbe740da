package models

// ValidationError describes a single invalid field on a model.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
