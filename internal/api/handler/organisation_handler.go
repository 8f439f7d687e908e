package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/pickup-be/internal/api/dto"
	"github.com/cuongbtq/pickup-be/internal/api/model"
	"github.com/cuongbtq/pickup-be/internal/api/storage"
	"github.com/gin-gonic/gin"
)

func (h *OrganisationHandler) ListOrganisations(c *gin.Context) {
	logCall(h.logger, c, "ListOrganisations")

	orgs, err := h.orgs.List(c.Request.Context())
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OrganisationsResponse{
		Organisations: dto.FromOrganisations(orgs),
	})
}

func (h *OrganisationHandler) GetOrganisation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	org, err := h.orgs.Get(c.Request.Context(), id)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromOrganisation(org))
}

func (h *OrganisationHandler) CreateOrganisation(c *gin.Context) {
	logCall(h.logger, c, "CreateOrganisation")

	who, ok := actor(c)
	if !ok {
		return
	}

	var req dto.CreateOrganisationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(h.logger, c, "Invalid request body", err)
		return
	}

	org := &model.Organisation{
		Name:         req.Name,
		Address:      req.Address,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
	}
	if err := h.orgs.Create(c.Request.Context(), who, org); err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromOrganisation(org))
}

func (h *OrganisationHandler) UpdateOrganisation(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	logCall(h.logger, c, "UpdateOrganisation", slog.Int64("organisation_id", id))

	var req dto.UpdateOrganisationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(h.logger, c, "Invalid request body", err)
		return
	}

	org, err := h.orgs.Update(c.Request.Context(), who, id, storage.OrganisationFields{
		Name:         req.Name,
		Address:      req.Address,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
	})
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromOrganisation(org))
}

func (h *OrganisationHandler) DeleteOrganisation(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	logCall(h.logger, c, "DeleteOrganisation", slog.Int64("organisation_id", id))

	if err := h.orgs.Delete(c.Request.Context(), who, id); err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
