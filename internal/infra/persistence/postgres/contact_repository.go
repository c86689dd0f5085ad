package postgres

import (
	"context"
	"time"

	"phonebook/internal/domain/entity"
	domainerrors "phonebook/internal/domain/errors"
	"phonebook/internal/domain/repository"
	"phonebook/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// contactRepository implements the domain.ContactRepository interface using GORM.
type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository is the constructor for contactRepository.
func NewContactRepository(db *gorm.DB) repository.ContactRepository {
	return &contactRepository{db: db}
}

func (repo *contactRepository) List(ctx context.Context, limit, offset int) ([]*entity.Contact, error) {
	var rows []model.ContactModel
	err := repo.db.WithContext(ctx).
		Order("last_name, first_name").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list contacts")
	}

	return toContactsDomain(rows), nil
}

func (repo *contactRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Contact, error) {
	return repo.first(ctx, "id = ?", id)
}

func (repo *contactRepository) FindByEmail(ctx context.Context, email string) (*entity.Contact, error) {
	return repo.first(ctx, "email = ?", email)
}

func (repo *contactRepository) FindByFirstName(ctx context.Context, firstName string) ([]*entity.Contact, error) {
	return repo.find(ctx, "first_name = ?", firstName)
}

func (repo *contactRepository) FindByLastName(ctx context.Context, lastName string) ([]*entity.Contact, error) {
	return repo.find(ctx, "last_name = ?", lastName)
}

// FindBirthdaysWithin matches on month and day only, so the window may cross the year end.
func (repo *contactRepository) FindBirthdaysWithin(ctx context.Context, today time.Time, days int) ([]*entity.Contact, error) {
	return repo.find(ctx, "to_char(birth_date, 'MM-DD') IN ?", birthdayKeys(today, days))
}

func (repo *contactRepository) Create(ctx context.Context, contact *entity.Contact) error {
	contactM := fromContactDomain(contact)

	if err := repo.db.WithContext(ctx).Create(contactM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrContactAlreadyExists.WrapMessage("email already exists")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create contact")
	}

	contact.CreatedAt = contactM.CreatedAt
	contact.UpdatedAt = contactM.UpdatedAt

	return nil
}

func (repo *contactRepository) Update(ctx context.Context, contact *entity.Contact) error {
	now := time.Now().UTC()

	result := repo.db.WithContext(ctx).
		Model(&model.ContactModel{}).
		Where("id = ?", contact.ID).
		Updates(map[string]any{
			"first_name":      contact.FirstName,
			"last_name":       contact.LastName,
			"email":           contact.Email,
			"phone_number":    contact.PhoneNumber,
			"birth_date":      contact.BirthDate,
			"additional_data": nullableString(contact.AdditionalData),
			"updated_at":      now,
		})
	if result.Error != nil {
		if isUniqueConstraintViolation(result.Error) {
			return domainerrors.ErrContactAlreadyExists.WrapMessage("email already exists")
		}

		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update contact")
	}
	if result.RowsAffected == 0 {
		return repository.ErrContactNotFound
	}

	contact.UpdatedAt = now

	return nil
}

func (repo *contactRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := repo.db.WithContext(ctx).Delete(&model.ContactModel{}, "id = ?", id)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete contact")
	}
	if result.RowsAffected == 0 {
		return repository.ErrContactNotFound
	}

	return nil
}

func (repo *contactRepository) first(ctx context.Context, query string, args ...any) (*entity.Contact, error) {
	var row model.ContactModel
	if err := repo.db.WithContext(ctx).Where(query, args...).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrContactNotFound
		}

		return nil, errors.Wrap(err, "failed to find contact")
	}

	return toContactDomain(&row), nil
}

func (repo *contactRepository) find(ctx context.Context, query string, args ...any) ([]*entity.Contact, error) {
	var rows []model.ContactModel
	if err := repo.db.WithContext(ctx).Where(query, args...).Order("last_name, first_name").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to search contacts")
	}

	return toContactsDomain(rows), nil
}

// birthdayKeys lists the MM-DD keys of every day in [today, today+days].
// Feb 29 birthdays are celebrated on Mar 1 outside leap years.
func birthdayKeys(today time.Time, days int) []string {
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	keys := make([]string, 0, days+2)
	for i := 0; i <= days; i++ {
		day := start.AddDate(0, 0, i)
		keys = append(keys, day.Format("01-02"))
		if day.Month() == time.March && day.Day() == 1 && !isLeap(day.Year()) {
			keys = append(keys, "02-29")
		}
	}

	return keys
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func toContactsDomain(rows []model.ContactModel) []*entity.Contact {
	out := make([]*entity.Contact, 0, len(rows))
	for i := range rows {
		out = append(out, toContactDomain(&rows[i]))
	}

	return out
}

func toContactDomain(data *model.ContactModel) *entity.Contact {
	if data == nil {
		return nil
	}

	return &entity.Contact{
		ID:             data.ID,
		FirstName:      data.FirstName,
		LastName:       data.LastName,
		Email:          data.Email,
		PhoneNumber:    data.PhoneNumber,
		BirthDate:      data.BirthDate,
		AdditionalData: data.AdditionalData,
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
}

func fromContactDomain(data *entity.Contact) *model.ContactModel {
	if data == nil {
		return nil
	}

	return &model.ContactModel{
		ID:             data.ID,
		FirstName:      data.FirstName,
		LastName:       data.LastName,
		Email:          data.Email,
		PhoneNumber:    data.PhoneNumber,
		BirthDate:      data.BirthDate,
		AdditionalData: data.AdditionalData,
	}
}
