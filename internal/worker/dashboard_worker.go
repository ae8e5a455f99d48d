package worker

import (
	"github.com/spec-kit/trader-console/internal/service"
)

// StartDashboardWorker registers dashboard handlers. It must run before the
// session service loads the stored credential so the restored session is seen.
func StartDashboardWorker(dashboardService *service.DashboardService) {
	if dashboardService == nil {
		return
	}
	dashboardService.RegisterHandlers()
}
