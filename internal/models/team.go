package models

import "time"

type Team struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:200;uniqueIndex;not null" json:"name"`
	ManagerName  *string   `gorm:"size:200" json:"managerName"`
	ManagerEmail *string   `gorm:"size:255" json:"managerEmail"`
	ClientID     *uint     `gorm:"index" json:"clientId"`
	Client       *Client   `gorm:"constraint:OnDelete:RESTRICT" json:"client,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Employees []Employee `json:"employees,omitempty"`
}
