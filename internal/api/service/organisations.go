package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/model"
	"github.com/cuongbtq/pickup-be/internal/api/storage"
)

type OrganisationService struct {
	orgs   OrganisationStore
	logger *slog.Logger
}

func NewOrganisationService(orgs OrganisationStore, logger *slog.Logger) *OrganisationService {
	return &OrganisationService{
		orgs:   orgs,
		logger: logger,
	}
}

func (s *OrganisationService) List(ctx context.Context) ([]model.Organisation, error) {
	return s.orgs.ListOrganisations(ctx)
}

func (s *OrganisationService) Get(ctx context.Context, id int64) (*model.Organisation, error) {
	return s.orgs.GetOrganisation(ctx, id)
}

func (s *OrganisationService) Create(ctx context.Context, actor domain.Identity, org *model.Organisation) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	org.Name = strings.TrimSpace(org.Name)
	if org.Name == "" {
		return domain.Validation("name is required")
	}

	if err := s.orgs.CreateOrganisation(ctx, org); err != nil {
		return err
	}

	s.logger.Info("Organisation created",
		slog.Int64("organisation_id", org.ID),
		slog.Int64("actor_id", actor.UserID),
	)
	return nil
}

func (s *OrganisationService) Update(ctx context.Context, actor domain.Identity, id int64, fields storage.OrganisationFields) (*model.Organisation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		if name == "" {
			return nil, domain.Validation("name must not be empty")
		}
		fields.Name = &name
	}
	return s.orgs.UpdateOrganisation(ctx, id, fields)
}

// Delete fails with a conflict while jobs still reference the organisation
func (s *OrganisationService) Delete(ctx context.Context, actor domain.Identity, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.orgs.DeleteOrganisation(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Organisation deleted",
		slog.Int64("organisation_id", id),
		slog.Int64("actor_id", actor.UserID),
	)
	return nil
}
