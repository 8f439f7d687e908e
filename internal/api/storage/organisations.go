package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/model"
	"github.com/cuongbtq/pickup-be/shared/postgresql"
)

var organisationColumns = []string{
	"id", "name", "address", "contact_name", "contact_email", "contact_phone",
	"created_at", "updated_at",
}

func (s *Storage) CreateOrganisation(ctx context.Context, org *model.Organisation) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, address, contact_name, contact_email, contact_phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, s.tables.Organisations)

	err := s.db.QueryRowxContext(ctx, query,
		org.Name,
		org.Address,
		org.ContactName,
		org.ContactEmail,
		org.ContactPhone,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organisation: %w", err)
	}

	return nil
}

func (s *Storage) GetOrganisation(ctx context.Context, id int64) (*model.Organisation, error) {
	var org model.Organisation
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, columns("", organisationColumns), s.tables.Organisations)

	if err := s.db.GetContext(ctx, &org, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrganisationNotFound
		}
		return nil, fmt.Errorf("failed to get organisation: %w", err)
	}
	return &org, nil
}

func (s *Storage) ListOrganisations(ctx context.Context) ([]model.Organisation, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY name ASC, id ASC`, columns("", organisationColumns), s.tables.Organisations)

	orgs := []model.Organisation{}
	if err := s.db.SelectContext(ctx, &orgs, query); err != nil {
		return nil, fmt.Errorf("failed to list organisations: %w", err)
	}
	return orgs, nil
}

// OrganisationFields are editable organisation attributes. Nil means unchanged.
type OrganisationFields struct {
	Name         *string
	Address      *string
	ContactName  *string
	ContactEmail *string
	ContactPhone *string
}

func (s *Storage) UpdateOrganisation(ctx context.Context, id int64, fields OrganisationFields) (*model.Organisation, error) {
	var b updateBuilder
	if fields.Name != nil {
		b.set("name", *fields.Name)
	}
	if fields.Address != nil {
		b.set("address", *fields.Address)
	}
	if fields.ContactName != nil {
		b.set("contact_name", *fields.ContactName)
	}
	if fields.ContactEmail != nil {
		b.set("contact_email", *fields.ContactEmail)
	}
	if fields.ContactPhone != nil {
		b.set("contact_phone", *fields.ContactPhone)
	}
	b.setExpr("updated_at", "NOW()")
	b.where("id = " + b.arg(id))

	query := b.build(s.tables.Organisations, columns("", organisationColumns))

	var org model.Organisation
	if err := s.db.GetContext(ctx, &org, query, b.args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrganisationNotFound
		}
		return nil, fmt.Errorf("failed to update organisation: %w", err)
	}
	return &org, nil
}

// DeleteOrganisation fails with a conflict while jobs still reference it
func (s *Storage) DeleteOrganisation(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.tables.Organisations)

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		if postgresql.IsForeignKeyViolation(err) {
			return domain.Conflict("organisation still has jobs")
		}
		return fmt.Errorf("failed to delete organisation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrOrganisationNotFound
	}
	return nil
}
