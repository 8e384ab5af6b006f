package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/blogem/licitacoes/authenticator"
	"github.com/blogem/licitacoes/models"
	"github.com/blogem/licitacoes/services"
)

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error   string                   `json:"error"`
	Details []models.ValidationError `json:"details,omitempty"`
}

// dataBody wraps successful responses
type dataBody struct {
	Data interface{} `json:"data"`
}

var errRateLimited = errors.New("too many exports, try again shortly")

// writeJSON writes payload with the given status code
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeData wraps data in the success envelope
func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, dataBody{Data: data})
}

// writeError maps service errors onto status codes. Unexpected errors are
// logged and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, logger logrus.FieldLogger, err error) {
	var (
		verrs    models.ValidationErrors
		limitErr *models.ExportLimitError
	)

	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request", Details: verrs})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, models.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "conflicts with existing data"})
	case errors.As(err, &limitErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: limitErr.Error()})
	case errors.Is(err, errRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: err.Error()})
	default:
		logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// decodeJSON reads the request body into dst
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return models.ValidationErrors{{Message: "request body must be valid JSON"}}
	}
	return nil
}

// idParam parses a positive integer URL parameter
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, models.ValidationErrors{{Field: name, Message: "must be a positive integer"}}
	}
	return id, nil
}

// Options carries what controllers need besides services
type Options struct {
	Provider    authenticator.Provider
	ExportRate  float64
	ExportBurst int
	Logger      logrus.FieldLogger
}

// Controllers holds all controller instances
type Controllers struct {
	Auth      *AuthController
	Audit     *AuditController
	Dashboard *DashboardController
	Processo  *ProcessoController
	Reference *ReferenceController
}

// NewControllers creates and initializes all controller instances
func NewControllers(srvs *services.Services, opts Options) *Controllers {
	logger := opts.Logger
	limiter := rate.NewLimiter(rate.Limit(opts.ExportRate), opts.ExportBurst)

	return &Controllers{
		Auth:      NewAuthController(opts.Provider, srvs.User, logger),
		Audit:     NewAuditController(srvs.Audit, srvs.Retention, limiter, logger),
		Dashboard: NewDashboardController(srvs.Dashboard, logger),
		Processo:  NewProcessoController(srvs.Processo, logger),
		Reference: NewReferenceController(srvs.Reference, logger),
	}
}

// MountAPI registers the JSON API routes on r, which is expected to be
// mounted at /api behind authentication
func (c *Controllers) MountAPI(r chi.Router) {
	r.Get("/dashboard", c.Dashboard.Index)

	r.Route("/audit", func(r chi.Router) {
		r.Get("/", c.Audit.List)
		r.Get("/stats", c.Audit.Stats)
		r.Get("/export", c.Audit.Export)
		r.Post("/retention", c.Audit.Sweep)
		r.Get("/{id}", c.Audit.Show)
	})

	r.Route("/processos", func(r chi.Router) {
		r.Get("/", c.Processo.Index)
		r.Post("/", c.Processo.Create)
		r.Get("/{id}", c.Processo.Show)
		r.Put("/{id}", c.Processo.Update)
		r.Delete("/{id}", c.Processo.Delete)
	})

	r.Route("/referencias/{kind}", func(r chi.Router) {
		r.Get("/", c.Reference.Index)
		r.Post("/", c.Reference.Create)
		r.Put("/{id}", c.Reference.Rename)
		r.Delete("/{id}", c.Reference.Delete)
	})
}
