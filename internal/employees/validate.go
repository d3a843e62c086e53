package employees

import (
	"strings"

	"hrportal-backend/internal/httpx"
	"hrportal-backend/internal/models"
)

const (
	maxExperienceYears  = 70
	maxExperienceMonths = 11
)

// fields is the subset of an employee payload that carries format rules.
// A nil pointer means the value was not supplied.
type fields struct {
	FirstName        *string
	LastName         *string
	PersonalEmail    *string
	CompanyEmail     *string
	Phone            *string
	DateOfBirth      *string
	DateOfJoining    *string
	ExperienceYears  *int
	ExperienceMonths *int
	Gender           *string
}

// validate returns every failed check. Names and at least one email are only
// required on create.
func validate(f fields, create bool) []string {
	var errs []string

	blank := func(s *string) bool { return s == nil || strings.TrimSpace(*s) == "" }

	if create {
		if blank(f.FirstName) {
			errs = append(errs, "First name is required")
		}
		if blank(f.LastName) {
			errs = append(errs, "Last name is required")
		}
		if blank(f.PersonalEmail) && blank(f.CompanyEmail) {
			errs = append(errs, "At least one email (personal or company) is required")
		}
	} else {
		if f.FirstName != nil && blank(f.FirstName) {
			errs = append(errs, "First name cannot be empty")
		}
		if f.LastName != nil && blank(f.LastName) {
			errs = append(errs, "Last name cannot be empty")
		}
	}

	if v := httpx.TrimToNil(f.PersonalEmail); v != nil && !httpx.IsValidEmail(*v) {
		errs = append(errs, "Invalid personal email format")
	}
	if v := httpx.TrimToNil(f.CompanyEmail); v != nil && !httpx.IsValidEmail(*v) {
		errs = append(errs, "Invalid company email format")
	}
	if v := httpx.TrimToNil(f.Phone); v != nil && !httpx.IsValidPhone(*v) {
		errs = append(errs, "Invalid phone number format")
	}
	if v := httpx.TrimToNil(f.DateOfBirth); v != nil {
		if _, err := httpx.ParseDate(*v); err != nil {
			errs = append(errs, "Invalid date of birth")
		}
	}
	if v := httpx.TrimToNil(f.DateOfJoining); v != nil {
		if _, err := httpx.ParseDate(*v); err != nil {
			errs = append(errs, "Invalid date of joining")
		}
	}
	if f.ExperienceYears != nil && (*f.ExperienceYears < 0 || *f.ExperienceYears > maxExperienceYears) {
		errs = append(errs, "Experience years must be between 0 and 70")
	}
	if f.ExperienceMonths != nil && (*f.ExperienceMonths < 0 || *f.ExperienceMonths > maxExperienceMonths) {
		errs = append(errs, "Experience months must be between 0 and 11")
	}
	if v := httpx.TrimToNil(f.Gender); v != nil && !models.Gender(*v).Valid() {
		errs = append(errs, "Invalid gender value")
	}

	return errs
}
