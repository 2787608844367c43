package donation

import (
	"github.com/go-playground/validator/v10"

	"github.com/masjidku/backend/core"
)

var (
	donationKindTag  = "donationkind"
	donationKindText = "invalid donation kind"
)

func init() {
	_ = core.Validate.RegisterValidation(donationKindTag, donationKindValidation)
	core.RegisterCustomTranslation(donationKindTag, donationKindText)
}

func donationKindValidation(fl validator.FieldLevel) bool {
	return Kind(fl.Field().String()).Valid()
}
