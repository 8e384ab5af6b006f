package controllers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/blogem/licitacoes/models"
	"github.com/blogem/licitacoes/services"
)

// ProcessoController handles bidding process requests
type ProcessoController struct {
	processos services.ProcessoService
	logger    logrus.FieldLogger
}

// NewProcessoController creates a new process controller
func NewProcessoController(processos services.ProcessoService, logger logrus.FieldLogger) *ProcessoController {
	return &ProcessoController{processos: processos, logger: logger}
}

// Index handles GET /api/processos
func (c *ProcessoController) Index(w http.ResponseWriter, r *http.Request) {
	list, err := c.processos.GetAll(r.Context())
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	if list == nil {
		list = []models.Processo{}
	}

	writeData(w, http.StatusOK, list)
}

// Show handles GET /api/processos/{id}
func (c *ProcessoController) Show(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	p, err := c.processos.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	writeData(w, http.StatusOK, p)
}

// Create handles POST /api/processos
func (c *ProcessoController) Create(w http.ResponseWriter, r *http.Request) {
	var form models.ProcessoForm
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	p, err := c.processos.Create(r.Context(), &form)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	writeData(w, http.StatusCreated, p)
}

// Update handles PUT /api/processos/{id}
func (c *ProcessoController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	var form models.ProcessoForm
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	p, err := c.processos.Update(r.Context(), id, &form)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	writeData(w, http.StatusOK, p)
}

// Delete handles DELETE /api/processos/{id}
func (c *ProcessoController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	if err := c.processos.Delete(r.Context(), id); err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
