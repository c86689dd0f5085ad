package usecase

import (
	"context"
	"time"

	"phonebook/internal/domain/entity"

	"github.com/google/uuid"
)

// ContactInput holds the writable fields of a contact.
type ContactInput struct {
	FirstName      string
	LastName       string
	Email          string
	PhoneNumber    string
	BirthDate      time.Time
	AdditionalData *string
}

// ListContactsInput pages through contacts.
type ListContactsInput struct {
	Limit  int
	Offset int
}

// ContactUsecase defines the address-book operations.
type ContactUsecase interface {
	List(ctx context.Context, input ListContactsInput) ([]*entity.Contact, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Contact, error)
	SearchByFirstName(ctx context.Context, firstName string) ([]*entity.Contact, error)
	SearchByLastName(ctx context.Context, lastName string) ([]*entity.Contact, error)
	SearchByEmail(ctx context.Context, email string) (*entity.Contact, error)
	UpcomingBirthdays(ctx context.Context) ([]*entity.Contact, error)
	Create(ctx context.Context, input ContactInput) (*entity.Contact, error)
	Update(ctx context.Context, id uuid.UUID, input ContactInput) (*entity.Contact, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
