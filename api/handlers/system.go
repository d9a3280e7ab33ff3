package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/parceltrace/parceltrace/internal/cron"
	"github.com/parceltrace/parceltrace/modules/registry"
	"github.com/parceltrace/parceltrace/services/imapwatch"
)

type scheduledJob struct {
	Description     string     `json:"description"`
	IntervalSeconds int        `json:"intervalSeconds"`
	LastRunAt       *time.Time `json:"lastRunAt"`
	NextRunAt       *time.Time `json:"nextRunAt"`
	LastStatus      string     `json:"lastStatus"`
}

// SystemStatus reports the scheduler jobs, the live watcher states and the
// module listing in one payload.
func SystemStatus(cronManager *cron.CronManager, supervisor *imapwatch.Supervisor, moduleRegistry *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobs := map[string]scheduledJob{}
		for name, meta := range cronManager.Jobs() {
			job := scheduledJob{
				Description:     meta.Description,
				IntervalSeconds: meta.IntervalSeconds,
				LastRunAt:       meta.LastRunAt,
				LastStatus:      meta.LastStatus,
			}
			if meta.LastRunAt != nil {
				next := meta.LastRunAt.Add(time.Duration(meta.IntervalSeconds) * time.Second)
				job.NextRunAt = &next
			}
			jobs[name] = job
		}

		c.JSON(http.StatusOK, gin.H{
			"scheduler": jobs,
			"watchers":  supervisor.Status(),
			"modules":   moduleRegistry.StatusReport(c.Request.Context()),
		})
	}
}
