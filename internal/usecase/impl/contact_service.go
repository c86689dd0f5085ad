package impl

import (
	"context"
	"log/slog"
	"sort"
	"time"

	deliverycontext "phonebook/internal/delivery/context"
	"phonebook/internal/domain/entity"
	domainerrors "phonebook/internal/domain/errors"
	"phonebook/internal/domain/repository"
	"phonebook/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	defaultContactsLimit = 100
	maxContactsLimit     = 1000
	birthdayWindowDays   = 7
)

// contactService implements the ContactUsecase interface.
type contactService struct {
	txManager   repository.TransactionManager
	contactRepo repository.ContactRepository
	logger      *slog.Logger
	now         func() time.Time
}

// ContactServiceParams holds dependencies for ContactService, injected by Fx.
type ContactServiceParams struct {
	fx.In

	TxManager   repository.TransactionManager
	ContactRepo repository.ContactRepository
	Logger      *slog.Logger
}

// NewContactService is the constructor for contactService.
func NewContactService(params ContactServiceParams) usecase.ContactUsecase {
	return &contactService{
		txManager:   params.TxManager,
		contactRepo: params.ContactRepo,
		logger:      params.Logger,
		now:         time.Now,
	}
}

func (srv *contactService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *contactService) List(ctx context.Context, input usecase.ListContactsInput) ([]*entity.Contact, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultContactsLimit
	}
	if limit > maxContactsLimit {
		limit = maxContactsLimit
	}
	offset := max(input.Offset, 0)

	contacts, err := srv.contactRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, upstreamError(err, "failed to list contacts")
	}

	return contacts, nil
}

func (srv *contactService) Get(ctx context.Context, id uuid.UUID) (*entity.Contact, error) {
	contact, err := srv.contactRepo.FindByID(ctx, id)
	if err != nil {
		return nil, contactLookupError(err)
	}

	return contact, nil
}

func (srv *contactService) SearchByFirstName(ctx context.Context, firstName string) ([]*entity.Contact, error) {
	contacts, err := srv.contactRepo.FindByFirstName(ctx, firstName)
	if err != nil {
		return nil, upstreamError(err, "failed to search contacts by first name")
	}

	return contacts, nil
}

func (srv *contactService) SearchByLastName(ctx context.Context, lastName string) ([]*entity.Contact, error) {
	contacts, err := srv.contactRepo.FindByLastName(ctx, lastName)
	if err != nil {
		return nil, upstreamError(err, "failed to search contacts by last name")
	}

	return contacts, nil
}

func (srv *contactService) SearchByEmail(ctx context.Context, email string) (*entity.Contact, error) {
	contact, err := srv.contactRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, contactLookupError(err)
	}

	return contact, nil
}

// UpcomingBirthdays lists contacts whose birthday falls within the next seven days, soonest first.
func (srv *contactService) UpcomingBirthdays(ctx context.Context) ([]*entity.Contact, error) {
	today := srv.now().UTC()

	contacts, err := srv.contactRepo.FindBirthdaysWithin(ctx, today, birthdayWindowDays)
	if err != nil {
		return nil, upstreamError(err, "failed to find upcoming birthdays")
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].NextBirthday(today).Before(contacts[j].NextBirthday(today))
	})

	return contacts, nil
}

// Create inserts a contact; the email must not belong to another contact.
func (srv *contactService) Create(ctx context.Context, input usecase.ContactInput) (*entity.Contact, error) {
	contact := &entity.Contact{ID: uuid.New()}
	applyContactInput(contact, input)

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		contactRepo := repoFactory.NewContactRepository()

		_, err := contactRepo.FindByEmail(ctx, input.Email)
		if err == nil {
			return domainerrors.ErrContactAlreadyExists.WrapMessage("duplicate contact email")
		}
		if !errors.Is(err, repository.ErrContactNotFound) {
			return upstreamError(err, "failed to check contact email")
		}

		return contactRepo.Create(ctx, contact)
	})
	if err != nil {
		if !isDomainError(err) {
			err = upstreamError(err, "failed to create contact")
		}

		return nil, err
	}

	srv.log(ctx).Info("Contact created", slog.Any("contactID", contact.ID))

	return contact, nil
}

func (srv *contactService) Update(ctx context.Context, id uuid.UUID, input usecase.ContactInput) (*entity.Contact, error) {
	contact, err := srv.contactRepo.FindByID(ctx, id)
	if err != nil {
		return nil, contactLookupError(err)
	}

	applyContactInput(contact, input)
	if err := srv.contactRepo.Update(ctx, contact); err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, domainerrors.ErrContactNotFound
		}
		if !isDomainError(err) {
			err = upstreamError(err, "failed to update contact")
		}

		return nil, err
	}

	srv.log(ctx).Info("Contact updated", slog.Any("contactID", contact.ID))

	return contact, nil
}

func (srv *contactService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := srv.contactRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return domainerrors.ErrContactNotFound
		}

		return upstreamError(err, "failed to delete contact")
	}

	srv.log(ctx).Info("Contact deleted", slog.Any("contactID", id))

	return nil
}

func applyContactInput(contact *entity.Contact, input usecase.ContactInput) {
	contact.FirstName = input.FirstName
	contact.LastName = input.LastName
	contact.Email = input.Email
	contact.PhoneNumber = input.PhoneNumber
	contact.BirthDate = input.BirthDate
	contact.AdditionalData = input.AdditionalData
}

func contactLookupError(err error) error {
	if errors.Is(err, repository.ErrContactNotFound) {
		return domainerrors.ErrContactNotFound
	}

	return upstreamError(err, "failed to find contact")
}
