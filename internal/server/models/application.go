package models

import "time"

// ApplicationStatus is the review state of an application.
type ApplicationStatus string

const (
	StatusDraft    ApplicationStatus = "draft"
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// BusinessType is the merchant category picked in the first wizard step.
type BusinessType string

const (
	BusinessPharmacy    BusinessType = "pharmacy"
	BusinessSupermarket BusinessType = "supermarket"
	BusinessRestaurant  BusinessType = "restaurant"
)

// ApplicationDetails holds the wizard fields an applicant fills in while
// the application is a draft.
type ApplicationDetails struct {
	Type         BusinessType `json:"type" validate:"required,oneof=pharmacy supermarket restaurant"`
	BusinessName string       `json:"business_name" validate:"required"`
	CRN          string       `json:"crn" validate:"required"`
	TaxID        string       `json:"tax_id" validate:"required"`
	ContactName  string       `json:"contact_name" validate:"required"`
	NationalID   string       `json:"national_id" validate:"required,eg_national_id"`
	Phone        string       `json:"phone" validate:"required,eg_phone"`
	Governorate  string       `json:"governorate" validate:"required"`
	City         string       `json:"city" validate:"required"`
	Address      string       `json:"address" validate:"required"`

	// Type specific extras, all optional.
	PharmacyLicense  string `json:"pharmacy_license"`
	PharmacistName   string `json:"pharmacist_name"`
	PharmacyHours    string `json:"pharmacy_hours"`
	StoreArea        string `json:"store_area"`
	StoreType        string `json:"store_type" validate:"omitempty,oneof=independent chain"`
	SupermarketHours string `json:"supermarket_hours"`
	CuisineType      string `json:"cuisine_type"`
	HealthGrade      string `json:"health_grade"`
	RestaurantHours  string `json:"restaurant_hours"`
}

// DetailsPatch is one wizard step. Nil fields were not sent and keep their
// stored value.
type DetailsPatch struct {
	Type         *BusinessType `json:"type" validate:"omitempty,oneof=pharmacy supermarket restaurant"`
	BusinessName *string       `json:"business_name"`
	CRN          *string       `json:"crn"`
	TaxID        *string       `json:"tax_id"`
	ContactName  *string       `json:"contact_name"`
	NationalID   *string       `json:"national_id"`
	Phone        *string       `json:"phone"`
	Governorate  *string       `json:"governorate"`
	City         *string       `json:"city"`
	Address      *string       `json:"address"`

	PharmacyLicense  *string `json:"pharmacy_license"`
	PharmacistName   *string `json:"pharmacist_name"`
	PharmacyHours    *string `json:"pharmacy_hours"`
	StoreArea        *string `json:"store_area"`
	StoreType        *string `json:"store_type" validate:"omitempty,oneof=independent chain"`
	SupermarketHours *string `json:"supermarket_hours"`
	CuisineType      *string `json:"cuisine_type"`
	HealthGrade      *string `json:"health_grade"`
	RestaurantHours  *string `json:"restaurant_hours"`
}

// PatchField is one column-value pair of a DetailsPatch.
type PatchField struct {
	Column string
	Value  string
}

// Fields lists the fields present in the patch, in column order.
func (p DetailsPatch) Fields() []PatchField {
	var out []PatchField
	add := func(col string, v *string) {
		if v != nil {
			out = append(out, PatchField{Column: col, Value: *v})
		}
	}
	if p.Type != nil {
		add("type", (*string)(p.Type))
	}
	add("business_name", p.BusinessName)
	add("crn", p.CRN)
	add("tax_id", p.TaxID)
	add("contact_name", p.ContactName)
	add("national_id", p.NationalID)
	add("phone", p.Phone)
	add("governorate", p.Governorate)
	add("city", p.City)
	add("address", p.Address)
	add("pharmacy_license", p.PharmacyLicense)
	add("pharmacist_name", p.PharmacistName)
	add("pharmacy_hours", p.PharmacyHours)
	add("store_area", p.StoreArea)
	add("store_type", p.StoreType)
	add("supermarket_hours", p.SupermarketHours)
	add("cuisine_type", p.CuisineType)
	add("health_grade", p.HealthGrade)
	add("restaurant_hours", p.RestaurantHours)
	return out
}

// Apply returns d with the present fields of p written over it.
func (p DetailsPatch) Apply(d ApplicationDetails) ApplicationDetails {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	if p.Type != nil {
		d.Type = *p.Type
	}
	set(&d.BusinessName, p.BusinessName)
	set(&d.CRN, p.CRN)
	set(&d.TaxID, p.TaxID)
	set(&d.ContactName, p.ContactName)
	set(&d.NationalID, p.NationalID)
	set(&d.Phone, p.Phone)
	set(&d.Governorate, p.Governorate)
	set(&d.City, p.City)
	set(&d.Address, p.Address)
	set(&d.PharmacyLicense, p.PharmacyLicense)
	set(&d.PharmacistName, p.PharmacistName)
	set(&d.PharmacyHours, p.PharmacyHours)
	set(&d.StoreArea, p.StoreArea)
	set(&d.StoreType, p.StoreType)
	set(&d.SupermarketHours, p.SupermarketHours)
	set(&d.CuisineType, p.CuisineType)
	set(&d.HealthGrade, p.HealthGrade)
	set(&d.RestaurantHours, p.RestaurantHours)
	return d
}

// Review records an admin decision on a pending application.
type Review struct {
	ReviewedBy string
	Note       string
	ReviewedAt time.Time
}

// Application is the merchant onboarding record owned by one applicant.
type Application struct {
	ID             int64
	ApplicantID    string
	ApplicantEmail string
	Status         ApplicationStatus
	RequestNumber  string
	Details        ApplicationDetails

	SubmittedAt *time.Time
	Review      *Review

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnedBy reports whether the principal is the applicant.
func (a *Application) OwnedBy(p *Principal) bool {
	return a != nil && p != nil && p.ID != "" && a.ApplicantID == p.ID
}

// ApplicationFilter narrows the admin listing. Zero values mean "any".
type ApplicationFilter struct {
	Status      ApplicationStatus
	Type        BusinessType
	Governorate string
	From        *time.Time
	To          *time.Time
}
