package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/blogem/licitacoes/models"
	"github.com/blogem/licitacoes/services"
)

// ReferenceController manages the lookup tables. The kind URL parameter
// accepts either the kind name or its table name.
type ReferenceController struct {
	references services.ReferenceService
	logger     logrus.FieldLogger
}

// NewReferenceController creates a new reference controller
func NewReferenceController(references services.ReferenceService, logger logrus.FieldLogger) *ReferenceController {
	return &ReferenceController{references: references, logger: logger}
}

func kindParam(r *http.Request) (models.ReferenceKind, error) {
	kind, err := models.ParseReferenceKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", models.ValidationErrors{{Field: "kind", Message: err.Error()}}
	}
	return kind, nil
}

// Index handles GET /api/referencias/{kind}
func (c *ReferenceController) Index(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	items, err := c.references.List(r.Context(), kind)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	if items == nil {
		items = []models.ReferenceItem{}
	}

	writeData(w, http.StatusOK, items)
}

// Create handles POST /api/referencias/{kind}
func (c *ReferenceController) Create(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	var form models.ReferenceForm
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	item, err := c.references.Create(r.Context(), kind, &form)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	writeData(w, http.StatusCreated, item)
}

// Rename handles PUT /api/referencias/{kind}/{id}
func (c *ReferenceController) Rename(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	var form models.ReferenceForm
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	item, err := c.references.Rename(r.Context(), kind, id, &form)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	writeData(w, http.StatusOK, item)
}

// Delete handles DELETE /api/referencias/{kind}/{id}
func (c *ReferenceController) Delete(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	if err := c.references.Delete(r.Context(), kind, id); err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
