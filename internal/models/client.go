package models

import "time"

type Client struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:200;uniqueIndex;not null" json:"name"`
	PocInternalName  *string   `gorm:"size:200" json:"pocInternalName"`
	PocInternalEmail *string   `gorm:"size:255" json:"pocInternalEmail"`
	PocExternalName  *string   `gorm:"size:200" json:"pocExternalName"`
	PocExternalEmail *string   `gorm:"size:255" json:"pocExternalEmail"`
	Address          *string   `gorm:"size:500" json:"address"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`

	Teams     []Team     `json:"teams,omitempty"`
	Employees []Employee `json:"employees,omitempty"`
}
