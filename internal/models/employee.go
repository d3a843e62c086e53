package models

import "time"

type Gender string

const (
	GenderMale           Gender = "Male"
	GenderFemale         Gender = "Female"
	GenderOther          Gender = "Other"
	GenderPreferNotToSay Gender = "Prefer not to say"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderPreferNotToSay:
		return true
	}
	return false
}

type Employee struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	EmployeeCode *string `gorm:"size:50;uniqueIndex" json:"employeeCode"`
	FirstName    string  `gorm:"size:100;not null" json:"firstName"`
	LastName     string  `gorm:"size:100;not null" json:"lastName"`

	// Email is the company email, falling back to the personal one.
	Email         string  `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PersonalEmail *string `gorm:"size:255" json:"personalEmail"`
	CompanyEmail  *string `gorm:"size:255" json:"companyEmail"`
	Phone         *string `gorm:"size:50" json:"phone"`

	DateOfBirth               *time.Time `json:"dateOfBirth"`
	DateOfJoining             *time.Time `json:"dateOfJoining"`
	ExperienceYearsAtJoining  *int       `json:"experienceYearsAtJoining"`
	ExperienceMonthsAtJoining *int       `json:"experienceMonthsAtJoining"`

	TeamName *string `gorm:"size:200" json:"teamName"`
	Title    *string `gorm:"size:200" json:"title"`
	Gender   *Gender `gorm:"size:30" json:"gender"`
	Active   bool    `gorm:"not null;default:true;index" json:"active"`

	TeamID   *uint   `gorm:"index" json:"teamId"`
	Team     *Team   `gorm:"constraint:OnDelete:SET NULL" json:"team,omitempty"`
	ClientID *uint   `gorm:"index" json:"clientId"`
	Client   *Client `gorm:"constraint:OnDelete:RESTRICT" json:"client,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Notes []Note `gorm:"constraint:OnDelete:RESTRICT" json:"notes,omitempty"`
}
