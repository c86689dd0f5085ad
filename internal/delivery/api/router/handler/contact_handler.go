package handler

import (
	"log/slog"
	"net/http"
	"time"

	"phonebook/internal/delivery/api/response"
	"phonebook/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// ContactHandlerParams holds dependencies for ContactHandler, injected by Fx.
type ContactHandlerParams struct {
	fx.In

	ContactUC usecase.ContactUsecase
	Logger    *slog.Logger
}

// ContactHandler serves the address book.
type ContactHandler struct {
	contactUC usecase.ContactUsecase
	logger    *slog.Logger
}

// NewContactHandler is the constructor for ContactHandler.
func NewContactHandler(params ContactHandlerParams) *ContactHandler {
	return &ContactHandler{
		contactUC: params.ContactUC,
		logger:    params.Logger,
	}
}

// ContactRequest is the body of create and update.
type ContactRequest struct {
	FirstName      string  `json:"first_name" validate:"required,max=50"`
	LastName       string  `json:"last_name" validate:"required,max=50"`
	Email          string  `json:"email" validate:"required,email,max=50"`
	PhoneNumber    string  `json:"phone_number" validate:"required,max=20"`
	BirthDate      string  `json:"birth_date" validate:"required,datetime=2006-01-02"`
	AdditionalData *string `json:"additional_data" validate:"omitempty,max=250"`
}

func (r ContactRequest) toInput() usecase.ContactInput {
	// Validated by the datetime rule.
	birth, _ := time.Parse(dateLayout, r.BirthDate)

	return usecase.ContactInput{
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		PhoneNumber:    r.PhoneNumber,
		BirthDate:      birth,
		AdditionalData: r.AdditionalData,
	}
}

// ListContactsRequest pages through contacts.
type ListContactsRequest struct {
	Limit  int `query:"limit" validate:"gte=0,lte=1000"`
	Offset int `query:"offset" validate:"gte=0"`
}

// List returns a page of contacts.
func (h *ContactHandler) List(c echo.Context) error {
	var req ListContactsRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid paging parameters")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	contacts, err := h.contactUC.List(c.Request().Context(), usecase.ListContactsInput{Limit: req.Limit, Offset: req.Offset})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, newContactResponses(contacts))
}

// GetByID returns one contact.
func (h *ContactHandler) GetByID(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid contact ID")
	}

	contact, err := h.contactUC.Get(c.Request().Context(), id)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, newContactResponse(contact))
}

// SearchByFirstName lists contacts with the exact first name.
func (h *ContactHandler) SearchByFirstName(c echo.Context) error {
	contacts, err := h.contactUC.SearchByFirstName(c.Request().Context(), c.Param("first_name"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, newContactResponses(contacts))
}

// SearchByLastName lists contacts with the exact last name.
func (h *ContactHandler) SearchByLastName(c echo.Context) error {
	contacts, err := h.contactUC.SearchByLastName(c.Request().Context(), c.Param("last_name"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, newContactResponses(contacts))
}

// SearchByEmail returns the contact with the email.
func (h *ContactHandler) SearchByEmail(c echo.Context) error {
	contact, err := h.contactUC.SearchByEmail(c.Request().Context(), c.Param("email"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, newContactResponse(contact))
}

// Birthdays lists contacts with a birthday in the coming week.
func (h *ContactHandler) Birthdays(c echo.Context) error {
	contacts, err := h.contactUC.UpcomingBirthdays(c.Request().Context())
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, newContactResponses(contacts))
}

// Create adds a contact.
func (h *ContactHandler) Create(c echo.Context) error {
	var req ContactRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid contact input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	contact, err := h.contactUC.Create(c.Request().Context(), req.toInput())
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, newContactResponse(contact))
}

// Update replaces a contact's fields.
func (h *ContactHandler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid contact ID")
	}

	var req ContactRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid contact input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	contact, err := h.contactUC.Update(c.Request().Context(), id, req.toInput())
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, newContactResponse(contact))
}

// Delete removes a contact.
func (h *ContactHandler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid contact ID")
	}

	if err := h.contactUC.Delete(c.Request().Context(), id); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.NoContent(c)
}
