package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blogem/licitacoes/changeset"
	"github.com/blogem/licitacoes/metrics"
	"github.com/blogem/licitacoes/models"
	"github.com/blogem/licitacoes/repositories"
)

// TopActorsLimit caps the actor ranking in statistics
const TopActorsLimit = 10

// ExportColumns is the fixed column order of audit exports
var ExportColumns = []string{
	"ID", "Timestamp", "Actor", "Actor Email", "Table", "Operation",
	"Record ID", "Changed Fields", "Source IP", "User Agent",
}

// AuditView is an entry rendered for readers, with its diff
type AuditView struct {
	models.AuditLogEntry
	ActorLabel string           `json:"actor_label"`
	Diff       changeset.Result `json:"diff"`
}

// AuditPage is one page of rendered entries
type AuditPage struct {
	Entries    []AuditView `json:"entries"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// AuditService is the read side of the audit log
type AuditService interface {
	List(ctx context.Context, filter models.AuditFilter, page models.Page) (*AuditPage, error)
	Get(ctx context.Context, id int64) (*AuditView, error)
	Stats(ctx context.Context, filter models.AuditFilter) (*models.AuditStats, error)
	Export(ctx context.Context, filter models.AuditFilter, w io.Writer) (int, error)
}

// AuditServiceConfig tunes rendering and export
type AuditServiceConfig struct {
	ExportMaxRows int
	Location      *time.Location
}

type auditService struct {
	auditRepo repositories.AuditRepository
	refRepo   repositories.ReferenceRepository
	differ    *changeset.Differ
	cfg       AuditServiceConfig
	metrics   *metrics.Metrics
	logger    logrus.FieldLogger
}

// NewAuditService creates the query and export service
func NewAuditService(
	auditRepo repositories.AuditRepository,
	refRepo repositories.ReferenceRepository,
	differ *changeset.Differ,
	cfg AuditServiceConfig,
	m *metrics.Metrics,
	logger logrus.FieldLogger,
) AuditService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if differ == nil {
		differ = changeset.NewDiffer(nil)
	}
	return &auditService{
		auditRepo: auditRepo,
		refRepo:   refRepo,
		differ:    differ,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}
}

// List returns one page of entries, newest first, each with its diff
func (s *auditService) List(ctx context.Context, filter models.AuditFilter, page models.Page) (*AuditPage, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	page = models.NewPage(page.Number, page.Size)

	total, err := s.auditRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	entries, err := s.auditRepo.List(ctx, filter, page)
	if err != nil {
		return nil, err
	}

	resolver := s.newResolver(ctx)
	views := make([]AuditView, 0, len(entries))
	for i := range entries {
		views = append(views, s.render(&entries[i], resolver))
	}

	totalPages := int((total + int64(page.Size) - 1) / int64(page.Size))
	return &AuditPage{
		Entries:    views,
		Total:      total,
		Page:       page.Number,
		PageSize:   page.Size,
		TotalPages: totalPages,
	}, nil
}

// Get returns one entry with its full diff
func (s *auditService) Get(ctx context.Context, id int64) (*AuditView, error) {
	if id <= 0 {
		return nil, models.ValidationErrors{{Field: "id", Message: "ID must be positive"}}
	}

	entry, err := s.auditRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := s.render(entry, s.newResolver(ctx))
	return &view, nil
}

// Stats aggregates entries over the filtered window
func (s *auditService) Stats(ctx context.Context, filter models.AuditFilter) (*models.AuditStats, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.auditRepo.Stats(ctx, filter, TopActorsLimit)
}

// Export writes every matching entry to w as CSV and returns the number of
// data rows. Nothing is written when the match count exceeds the limit.
func (s *auditService) Export(ctx context.Context, filter models.AuditFilter, w io.Writer) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	count, err := s.auditRepo.Count(ctx, filter)
	if err != nil {
		return 0, err
	}
	if s.cfg.ExportMaxRows > 0 && count > int64(s.cfg.ExportMaxRows) {
		return 0, &models.ExportLimitError{Limit: s.cfg.ExportMaxRows, Count: count}
	}

	resolver := s.newResolver(ctx)
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return 0, fmt.Errorf("failed to write export header: %w", err)
	}

	rows := 0
	err = s.auditRepo.Iterate(ctx, filter, func(entry *models.AuditLogEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := cw.Write(s.exportRow(entry, resolver)); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
		rows++
		if rows%500 == 0 {
			cw.Flush()
			return cw.Error()
		}
		return nil
	})
	cw.Flush()
	if err == nil {
		err = cw.Error()
	}

	if s.metrics != nil {
		s.metrics.AuditExportRowsTotal.Add(float64(rows))
	}
	if err != nil {
		return rows, err
	}

	s.logger.WithFields(logrus.Fields{
		"rows":       rows,
		"unresolved": len(resolver.Unresolved()),
	}).Info("audit export completed")
	return rows, nil
}

func (s *auditService) exportRow(entry *models.AuditLogEntry, resolver *changeset.Resolver) []string {
	recordID := ""
	if entry.RecordID != nil {
		recordID = strconv.FormatInt(*entry.RecordID, 10)
	}

	diff := s.differ.Diff(entry.Before, entry.After, resolver)
	return []string{
		strconv.FormatInt(entry.ID, 10),
		models.FormatDateTime(entry.Timestamp.In(s.cfg.Location)),
		entry.Actor.Label(),
		entry.Actor.Email,
		string(entry.Table),
		string(entry.Operation),
		recordID,
		diff.Summary(),
		entry.SourceIP,
		entry.UserAgent,
	}
}

func (s *auditService) render(entry *models.AuditLogEntry, resolver *changeset.Resolver) AuditView {
	return AuditView{
		AuditLogEntry: *entry,
		ActorLabel:    entry.Actor.Label(),
		Diff:          s.differ.Diff(entry.Before, entry.After, resolver),
	}
}

// newResolver loads the reference tables once for a render pass. When they
// cannot be read every key renders as a placeholder.
func (s *auditService) newResolver(ctx context.Context) *changeset.Resolver {
	refs, err := s.refRepo.LoadSet(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("reference tables unavailable, rendering placeholders")
		refs = models.NewReferenceSet()
	}
	return changeset.NewResolver(refs, s.logger)
}
