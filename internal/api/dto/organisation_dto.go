package dto

import (
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/model"
)

type CreateOrganisationRequest struct {
	Name         string `json:"name" binding:"required"`
	Address      string `json:"address"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email" binding:"omitempty,email"`
	ContactPhone string `json:"contact_phone"`
}

type UpdateOrganisationRequest struct {
	Name         *string `json:"name"`
	Address      *string `json:"address"`
	ContactName  *string `json:"contact_name"`
	ContactEmail *string `json:"contact_email" binding:"omitempty,email"`
	ContactPhone *string `json:"contact_phone"`
}

type OrganisationDTO struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type OrganisationsResponse struct {
	Organisations []OrganisationDTO `json:"organisations"`
}

func FromOrganisation(o *model.Organisation) OrganisationDTO {
	return OrganisationDTO{
		ID:           o.ID,
		Name:         o.Name,
		Address:      o.Address,
		ContactName:  o.ContactName,
		ContactEmail: o.ContactEmail,
		ContactPhone: o.ContactPhone,
		CreatedAt:    o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    o.UpdatedAt.Format(time.RFC3339),
	}
}

func FromOrganisations(orgs []model.Organisation) []OrganisationDTO {
	out := make([]OrganisationDTO, len(orgs))
	for i := range orgs {
		out[i] = FromOrganisation(&orgs[i])
	}
	return out
}
