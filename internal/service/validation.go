package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/go-playground/validator/v10"
)

var promoCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

// ValidationHelper wraps a validator configured with the market's custom tags.
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a validator that reports fields by their json name.
func NewValidationHelper() *ValidationHelper {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("listing_category", func(fl validator.FieldLevel) bool {
		return slices.Contains(domain.ListingCategories, fl.Field().String())
	})
	_ = v.RegisterValidation("promo_code", func(fl validator.FieldLevel) bool {
		return promoCodePattern.MatchString(fl.Field().String())
	})
	return &ValidationHelper{validator: v}
}

// ValidateStruct validates s and converts the first failure into a *domain.ValidationError.
func (vh *ValidationHelper) ValidateStruct(s any) error {
	err := vh.validator.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate: %w", err)
	}
	fe := fieldErrs[0]
	return domain.NewValidationError(fe.Field(), describeTag(fe))
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "e164":
		return "must be a phone number in E.164 format"
	case "listing_category":
		return "must be one of " + strings.Join(domain.ListingCategories, ", ")
	case "promo_code":
		return "must be 3-32 characters of A-Z, 0-9, _ or -"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return fmt.Sprintf("failed the %q check", fe.Tag())
	}
}
