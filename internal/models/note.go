package models

import "time"

type Note struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	NoteDate   *time.Time `json:"noteDate"`
	EmployeeID uint       `gorm:"index;not null" json:"employeeId"`
	AuthorID   uint       `gorm:"index;not null" json:"authorId"`
	Author     *User      `json:"-"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type NoteAuthor struct {
	ID    uint     `json:"id"`
	Email string   `json:"email"`
	Role  UserRole `json:"role,omitempty"`
}
