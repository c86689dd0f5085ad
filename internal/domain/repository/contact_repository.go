package repository

import (
	"context"
	"errors"
	"time"

	"phonebook/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrContactNotFound is returned when a contact is not found.
var ErrContactNotFound = errors.New("contact not found")

// ContactRepository defines persistence operations for contacts.
type ContactRepository interface {
	List(ctx context.Context, limit, offset int) ([]*entity.Contact, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Contact, error)
	FindByEmail(ctx context.Context, email string) (*entity.Contact, error)
	FindByFirstName(ctx context.Context, firstName string) ([]*entity.Contact, error)
	FindByLastName(ctx context.Context, lastName string) ([]*entity.Contact, error)

	// FindBirthdaysWithin returns contacts whose birthday (month and day) falls in [today, today+days].
	FindBirthdaysWithin(ctx context.Context, today time.Time, days int) ([]*entity.Contact, error)

	Create(ctx context.Context, contact *entity.Contact) error
	Update(ctx context.Context, contact *entity.Contact) error
	Delete(ctx context.Context, id uuid.UUID) error
}
