package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"WerchterMonitor/internal/ports"
)

var _ ports.Schedule = (cron.Schedule)(nil)

// NewSchedule returns the schedule that decides how long to wait after a
// successful cycle. A cron expression wins over the plain interval.
func NewSchedule(expr string, interval time.Duration, loc *time.Location) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		if interval <= 0 {
			return nil, fmt.Errorf("check interval must be positive, got %s", interval)
		}
		return cron.Every(interval), nil
	}

	if loc != nil && !strings.HasPrefix(expr, "CRON_TZ=") && !strings.HasPrefix(expr, "TZ=") {
		expr = "CRON_TZ=" + loc.String() + " " + expr
	}

	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return schedule, nil
}
