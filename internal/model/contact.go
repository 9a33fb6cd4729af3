package model

import "time"

// Contact mirrors the `contacts` table. Every contact belongs to exactly
// one user; all repository queries are scoped by UserID so one user can
// never see another user's address book.
type Contact struct {
	ID             uint64     // contacts.id
	UserID         uint64     // contacts.user_id
	FirstName      string     // contacts.first_name
	LastName       string     // contacts.last_name
	Email          string     // contacts.email
	Phone          *string    // contacts.phone (nullable)
	Birthday       *time.Time // contacts.birthday (nullable, date only)
	AdditionalInfo *string    // contacts.additional_info (nullable)
	CreatedAt      time.Time  // contacts.created_at
	UpdatedAt      time.Time  // contacts.updated_at
}
