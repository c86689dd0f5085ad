package model

import (
	"time"

	"github.com/google/uuid"
)

// UserModel mirrors the 'users' table.
type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"type:varchar(250);uniqueIndex;not null"`
	Username     string    `gorm:"type:varchar(50);not null"`
	Password     string    `gorm:"type:varchar(255);not null"`
	Role         string    `gorm:"type:varchar(20);not null;default:user"`
	Confirmed    bool      `gorm:"not null;default:false"`
	// Signed tokens grow with the subject and the HMAC size.
	RefreshToken *string   `gorm:"type:text"`
	Avatar       *string   `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}
