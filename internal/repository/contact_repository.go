package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/contacts-api/internal/model"
)

// ContactRepo persists rows of the 'contacts' table. Every query filters
// by user_id, so ownership is enforced at the SQL level rather than in
// handlers.
type ContactRepo struct{ DB *sql.DB }

func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{DB: db} }

const contactColumns = "id,user_id,first_name,last_name,email,phone,birthday,additional_info,created_at,updated_at"

func scanContact(sc interface{ Scan(...any) error }) (model.Contact, error) {
	var c model.Contact
	err := sc.Scan(&c.ID, &c.UserID, &c.FirstName, &c.LastName, &c.Email,
		&c.Phone, &c.Birthday, &c.AdditionalInfo, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, ErrNotFound
	}
	return c, err
}

func collectContacts(rows *sql.Rows) ([]model.Contact, error) {
	defer rows.Close()
	var out []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// List returns a page of the user's contacts ordered by id.
func (r *ContactRepo) List(ctx context.Context, userID uint64, limit, offset int) ([]model.Contact, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE user_id=? ORDER BY id LIMIT ? OFFSET ?",
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectContacts(rows)
}

// GetByID fetches one contact owned by the user.
func (r *ContactRepo) GetByID(ctx context.Context, userID, contactID uint64) (model.Contact, error) {
	return scanContact(r.DB.QueryRowContext(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE id=? AND user_id=? LIMIT 1",
		contactID, userID))
}

// Create inserts a contact for the user and returns its ID.
func (r *ContactRepo) Create(ctx context.Context, userID uint64, c model.Contact) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO contacts (user_id, first_name, last_name, email, phone, birthday, additional_info) VALUES (?,?,?,?,?,?,?)",
		userID, c.FirstName, c.LastName, c.Email, c.Phone, c.Birthday, c.AdditionalInfo)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Update overwrites the mutable fields of the user's contact. ErrNotFound
// is returned when the row does not exist or belongs to someone else.
func (r *ContactRepo) Update(ctx context.Context, userID, contactID uint64, c model.Contact) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE contacts SET first_name=?, last_name=?, email=?, phone=?, birthday=?, additional_info=? WHERE id=? AND user_id=?",
		c.FirstName, c.LastName, c.Email, c.Phone, c.Birthday, c.AdditionalInfo, contactID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the user's contact.
func (r *ContactRepo) Delete(ctx context.Context, userID, contactID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM contacts WHERE id=? AND user_id=?", contactID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Search matches the query against first name, last name and email with a
// case-insensitive substring search.
func (r *ContactRepo) Search(ctx context.Context, userID uint64, query string) ([]model.Contact, error) {
	like := "%" + query + "%"
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE user_id=? AND (first_name LIKE ? OR last_name LIKE ? OR email LIKE ?) ORDER BY id",
		userID, like, like, like)
	if err != nil {
		return nil, err
	}
	return collectContacts(rows)
}

// BirthdaysBetween returns contacts whose birthday falls between start and
// end, compared on month and day so the birth year is ignored.
func (r *ContactRepo) BirthdaysBetween(ctx context.Context, userID uint64, start, end time.Time) ([]model.Contact, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE user_id=? AND DATE_FORMAT(birthday, '%m-%d') BETWEEN ? AND ? ORDER BY DATE_FORMAT(birthday, '%m-%d')",
		userID, start.Format("01-02"), end.Format("01-02"))
	if err != nil {
		return nil, err
	}
	return collectContacts(rows)
}
