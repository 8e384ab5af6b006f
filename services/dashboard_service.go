package services

import (
	"context"
	"time"

	"github.com/blogem/licitacoes/models"
	"github.com/blogem/licitacoes/repositories"
)

var timeNow = func() time.Time {
	return time.Now()
}

// DashboardDays is the window summarized on the dashboard
const DashboardDays = 30

// DashboardData represents data for the dashboard view
type DashboardData struct {
	Range          models.DateRange   `json:"range"`
	ProcessoCount  int64              `json:"processo_count"`
	Stats          *models.AuditStats `json:"stats"`
	RecentActivity []AuditView        `json:"recent_activity"`
}

// DashboardService builds the landing page summary
type DashboardService interface {
	GetDashboardData(ctx context.Context) (*DashboardData, error)
}

type dashboardService struct {
	audit        AuditService
	processoRepo repositories.ProcessoRepository
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(audit AuditService, processoRepo repositories.ProcessoRepository) DashboardService {
	return &dashboardService{audit: audit, processoRepo: processoRepo}
}

// GetDashboardData summarizes the last DashboardDays days of audit activity
func (s *dashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	window := models.LastDays(timeNow(), DashboardDays)
	filter := models.AuditFilter{Start: &window.Start, End: &window.End}

	stats, err := s.audit.Stats(ctx, filter)
	if err != nil {
		return nil, err
	}

	recent, err := s.audit.List(ctx, filter, models.NewPage(1, 10))
	if err != nil {
		return nil, err
	}

	count, err := s.processoRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &DashboardData{
		Range:          window,
		ProcessoCount:  count,
		Stats:          stats,
		RecentActivity: recent.Entries,
	}, nil
}
