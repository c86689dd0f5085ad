package entity

import (
	"time"

	"github.com/google/uuid"
)

// Contact is an address-book entry.
type Contact struct {
	ID             uuid.UUID
	FirstName      string
	LastName       string
	Email          string // unique across contacts
	PhoneNumber    string
	BirthDate      time.Time
	AdditionalData *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NextBirthday returns the next occurrence of the birthday on or after today.
// Feb 29 birthdays fall on Mar 1 in non-leap years.
func (c *Contact) NextBirthday(today time.Time) time.Time {
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	next := time.Date(y, c.BirthDate.Month(), c.BirthDate.Day(), 0, 0, 0, 0, time.UTC)
	if next.Before(start) {
		next = time.Date(y+1, c.BirthDate.Month(), c.BirthDate.Day(), 0, 0, 0, 0, time.UTC)
	}

	return next
}

// BirthdayWithin reports whether the next birthday falls in [today, today+days].
func (c *Contact) BirthdayWithin(today time.Time, days int) bool {
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	return !c.NextBirthday(today).After(start.AddDate(0, 0, days))
}
