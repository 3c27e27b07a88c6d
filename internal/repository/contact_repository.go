package repository

import (
	"context"
	"database/sql"

	"hygienix/backend/internal/model"
)

type CreateContactInput struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

type ContactRepository interface {
	CreateContact(ctx context.Context, input CreateContactInput) (int64, error)
	ListContacts(ctx context.Context) ([]model.Contact, error)
}

type SQLContactRepository struct {
	db *sql.DB
}

func NewSQLContactRepository(db *sql.DB) *SQLContactRepository {
	return &SQLContactRepository{db: db}
}

func (r *SQLContactRepository) CreateContact(ctx context.Context, input CreateContactInput) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO contacts (name, email, phone, message) VALUES (?, ?, ?, ?)`,
		input.Name, input.Email, input.Phone, input.Message,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLContactRepository) ListContacts(ctx context.Context) ([]model.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, email, phone, message, created_at
FROM contacts
ORDER BY created_at DESC, id DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Contact, 0)
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Message, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
