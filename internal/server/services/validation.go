package services

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
)

var (
	egPhoneRe      = regexp.MustCompile(`^(\+20|0020|20)?1[0-25]\d{8}$`)
	egNationalIDRe = regexp.MustCompile(`^[23]\d{13}$`)
)

// stripSpace removes every whitespace rune.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("eg_phone", func(fl validator.FieldLevel) bool {
		return egPhoneRe.MatchString(stripSpace(fl.Field().String()))
	})
	_ = v.RegisterValidation("eg_national_id", func(fl validator.FieldLevel) bool {
		return egNationalIDRe.MatchString(fl.Field().String())
	})
	return v
}

// FieldError names one offending wizard field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// validateForSubmit checks that every wizard field is present and well formed.
func validateForSubmit(v *validator.Validate, d models.ApplicationDetails) []FieldError {
	return fieldErrors(v.Struct(d))
}

// validatePatch checks only the enumerated fields a step carries. Anything
// else may stay incomplete until submission.
func validatePatch(v *validator.Validate, p models.DetailsPatch) []FieldError {
	return fieldErrors(v.Struct(p))
}

func fieldErrors(err error) []FieldError {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Rule: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}

func lowerTrim(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// normalizeDetails trims free text, strips whitespace from phone and id
// numbers and lowercases the enumerated fields.
func normalizeDetails(d models.ApplicationDetails) models.ApplicationDetails {
	d.Type = models.BusinessType(lowerTrim(string(d.Type)))
	d.BusinessName = strings.TrimSpace(d.BusinessName)
	d.CRN = strings.TrimSpace(d.CRN)
	d.TaxID = strings.TrimSpace(d.TaxID)
	d.ContactName = strings.TrimSpace(d.ContactName)
	d.NationalID = stripSpace(d.NationalID)
	d.Phone = stripSpace(d.Phone)
	d.Governorate = strings.TrimSpace(d.Governorate)
	d.City = strings.TrimSpace(d.City)
	d.Address = strings.TrimSpace(d.Address)
	d.PharmacyLicense = strings.TrimSpace(d.PharmacyLicense)
	d.PharmacistName = strings.TrimSpace(d.PharmacistName)
	d.PharmacyHours = strings.TrimSpace(d.PharmacyHours)
	d.StoreArea = strings.TrimSpace(d.StoreArea)
	d.StoreType = lowerTrim(d.StoreType)
	d.SupermarketHours = strings.TrimSpace(d.SupermarketHours)
	d.CuisineType = strings.TrimSpace(d.CuisineType)
	d.HealthGrade = strings.TrimSpace(d.HealthGrade)
	d.RestaurantHours = strings.TrimSpace(d.RestaurantHours)
	return d
}

// normalizePatch applies the normalizeDetails rules to the fields present
// in p. The caller's strings are never modified.
func normalizePatch(p models.DetailsPatch) models.DetailsPatch {
	apply := func(f func(string) string, fields ...**string) {
		for _, fp := range fields {
			if *fp != nil {
				v := f(**fp)
				*fp = &v
			}
		}
	}
	if p.Type != nil {
		t := models.BusinessType(lowerTrim(string(*p.Type)))
		p.Type = &t
	}
	apply(strings.TrimSpace, &p.BusinessName, &p.CRN, &p.TaxID, &p.ContactName,
		&p.Governorate, &p.City, &p.Address,
		&p.PharmacyLicense, &p.PharmacistName, &p.PharmacyHours, &p.StoreArea,
		&p.SupermarketHours, &p.CuisineType, &p.HealthGrade, &p.RestaurantHours)
	apply(stripSpace, &p.NationalID, &p.Phone)
	apply(lowerTrim, &p.StoreType)
	return p
}
