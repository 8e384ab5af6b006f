package controllers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/blogem/licitacoes/services"
)

// DashboardController handles dashboard-related requests
type DashboardController struct {
	dashboard services.DashboardService
	logger    logrus.FieldLogger
}

// NewDashboardController creates a new dashboard controller
func NewDashboardController(dashboard services.DashboardService, logger logrus.FieldLogger) *DashboardController {
	return &DashboardController{dashboard: dashboard, logger: logger}
}

// Index handles GET /api/dashboard
func (c *DashboardController) Index(w http.ResponseWriter, r *http.Request) {
	data, err := c.dashboard.GetDashboardData(r.Context())
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	writeData(w, http.StatusOK, data)
}
