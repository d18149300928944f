package dto

import (
	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/repository/source"
)

// RegisterValidations adds the custom tags used by the request types.
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("tile_path", func(fl validator.FieldLevel) bool {
		return source.ValidateTemplate(fl.Field().String()) == nil
	})
}
