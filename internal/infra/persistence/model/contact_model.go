package model

import (
	"time"

	"github.com/google/uuid"
)

// ContactModel mirrors the 'contacts' table.
type ContactModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	FirstName      string    `gorm:"type:varchar(50);not null;index"`
	LastName       string    `gorm:"type:varchar(50);not null;index"`
	Email          string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	PhoneNumber    string    `gorm:"type:varchar(20);not null"`
	BirthDate      time.Time `gorm:"type:date;not null"`
	AdditionalData *string   `gorm:"type:varchar(250)"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName explicitly sets the table name for GORM.
func (ContactModel) TableName() string {
	return "contacts"
}
