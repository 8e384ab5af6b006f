package controllers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/blogem/licitacoes/models"
	"github.com/blogem/licitacoes/services"
)

// AuditController serves the audit trail over HTTP
type AuditController struct {
	audit     services.AuditService
	retention services.RetentionService
	limiter   *rate.Limiter
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewAuditController creates a new audit controller. The limiter throttles
// CSV exports across all clients.
func NewAuditController(audit services.AuditService, retention services.RetentionService, limiter *rate.Limiter, logger logrus.FieldLogger) *AuditController {
	return &AuditController{
		audit:     audit,
		retention: retention,
		limiter:   limiter,
		logger:    logger,
		now:       time.Now,
	}
}

// parseFilter reads the list filters from the query string
func parseFilter(q url.Values) (models.AuditFilter, error) {
	var (
		filter models.AuditFilter
		errs   models.ValidationErrors
	)

	filter.ActorID = strings.TrimSpace(q.Get("actor_id"))
	filter.Table = models.AffectedTable(strings.TrimSpace(q.Get("table")))

	if v := q.Get("operation"); v != "" {
		op, err := models.ParseOperation(v)
		if err != nil {
			errs = append(errs, models.ValidationError{Field: "operation", Message: err.Error()})
		}
		filter.Operation = op
	}

	if v := q.Get("record_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, models.ValidationError{Field: "record_id", Message: "must be an integer"})
		} else {
			filter.RecordID = &id
		}
	}

	for _, bound := range []struct {
		name string
		end  bool
		dst  **time.Time
	}{
		{"start", false, &filter.Start},
		{"end", true, &filter.End},
	} {
		v := q.Get(bound.name)
		if v == "" {
			continue
		}
		t, err := models.ParseDateBound(v, bound.end)
		if err != nil {
			errs = append(errs, models.ValidationError{Field: bound.name, Message: err.Error()})
			continue
		}
		*bound.dst = &t
	}

	if errs.HasErrors() {
		return filter, errs
	}
	return filter, nil
}

// parsePage reads page and page_size, falling back to defaults
func parsePage(q url.Values) models.Page {
	number, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	return models.NewPage(number, size)
}

// List handles GET /api/audit
func (c *AuditController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseFilter(q)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	page, err := c.audit.List(r.Context(), filter, parsePage(q))
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	writeData(w, http.StatusOK, page)
}

// Show handles GET /api/audit/{id}
func (c *AuditController) Show(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	view, err := c.audit.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	writeData(w, http.StatusOK, view)
}

// Stats handles GET /api/audit/stats
func (c *AuditController) Stats(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	stats, err := c.audit.Stats(r.Context(), filter)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	writeData(w, http.StatusOK, stats)
}

// csvResponse sets the download headers on the first write, so a failure
// before any row can still be answered with a JSON error.
type csvResponse struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (c *csvResponse) Write(p []byte) (int, error) {
	if !c.started {
		c.started = true
		c.w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		c.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", c.filename))
		c.w.WriteHeader(http.StatusOK)
	}
	return c.w.Write(p)
}

// Export handles GET /api/audit/export
func (c *AuditController) Export(w http.ResponseWriter, r *http.Request) {
	if c.limiter != nil && !c.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeError(w, r, c.logger, errRateLimited)
		return
	}

	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	out := &csvResponse{
		w:        w,
		filename: "audit_logs_" + models.FormatDate(c.now().UTC()) + ".csv",
	}

	rows, err := c.audit.Export(r.Context(), filter, out)
	if err != nil {
		if !out.started {
			writeError(w, r, c.logger, err)
			return
		}
		// Headers are gone; the client sees a truncated file.
		c.logger.WithError(err).WithField("rows", rows).Error("Export aborted mid-stream")
		return
	}

	c.logger.WithField("rows", rows).Info("Audit log exported")
}

// Sweep handles POST /api/audit/retention
func (c *AuditController) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := c.retention.Sweep(r.Context())
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	writeData(w, http.StatusOK, result)
}
