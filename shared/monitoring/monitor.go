package monitoring

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type checkResult struct {
	ok   bool
	err  string
	when time.Time
}

// Monitor tracks pipeline run outcomes and the latest result of each
// scheduled health check. Only health checks decide IsHealthy: a failed run
// usually means a provider failed, not that the service is down.
type Monitor struct {
	mu sync.RWMutex

	runsSucceeded  int
	runsFailed     int
	runsPartial    int
	lastRunSuccess bool
	lastRunTime    time.Time

	checks map[string]checkResult

	log *logrus.Logger
}

func NewMonitor(log *logrus.Logger) *Monitor {
	return &Monitor{
		checks: make(map[string]checkResult),
		log:    log,
	}
}

func (m *Monitor) RecordSuccess(summary string, duration time.Duration) {
	m.mu.Lock()
	m.runsSucceeded++
	m.lastRunSuccess = true
	m.lastRunTime = time.Now()
	m.mu.Unlock()

	m.log.WithField("duration", duration.String()).Infof("Run completed successfully - %s", summary)
}

// RecordPartialFailure notes a run that completed with some output dropped.
// It counts as a success for the last-run outcome.
func (m *Monitor) RecordPartialFailure(err error, duration time.Duration) {
	m.mu.Lock()
	m.runsPartial++
	m.mu.Unlock()

	m.log.WithError(err).WithField("duration", duration.String()).Warn("Partial failure")
}

func (m *Monitor) RecordFailure(err error, duration time.Duration) {
	m.mu.Lock()
	m.runsFailed++
	m.lastRunSuccess = false
	m.lastRunTime = time.Now()
	m.mu.Unlock()

	m.log.WithError(err).WithField("duration", duration.String()).Error("Run failed")
}

// RecordCheck stores the outcome of one health check run. err is nil on
// success.
func (m *Monitor) RecordCheck(name string, err error, duration time.Duration) {
	result := checkResult{ok: err == nil, when: time.Now()}
	if err != nil {
		result.err = err.Error()
	}

	m.mu.Lock()
	prev, seen := m.checks[name]
	m.checks[name] = result
	m.mu.Unlock()

	entry := m.log.WithFields(logrus.Fields{"check": name, "duration": duration.String()})
	switch {
	case err != nil:
		entry.WithError(err).Error("Health check failed")
	case seen && !prev.ok:
		entry.Info("Health check recovered")
	default:
		entry.Debug("Health check passed")
	}
}

// IsHealthy reports whether every health check passed on its latest run.
// With no checks recorded yet the service is assumed healthy.
func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.checks {
		if !c.ok {
			return false
		}
	}
	return true
}

func (m *Monitor) GetStatusSummary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	if m.lastRunTime.IsZero() {
		b.WriteString("No runs yet")
	} else if m.lastRunSuccess {
		fmt.Fprintf(&b, "Last run: %s", m.lastRunTime.Format("Jan 2 15:04"))
	} else {
		fmt.Fprintf(&b, "Last run failed: %s", m.lastRunTime.Format("Jan 2 15:04"))
	}
	fmt.Fprintf(&b, " (succeeded %d, partial %d, failed %d)", m.runsSucceeded, m.runsPartial, m.runsFailed)

	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := m.checks[name]
		if c.ok {
			fmt.Fprintf(&b, "\n%s: ok at %s", name, c.when.Format("Jan 2 15:04:05"))
		} else {
			fmt.Fprintf(&b, "\n%s: failed at %s: %s", name, c.when.Format("Jan 2 15:04:05"), c.err)
		}
	}
	return b.String()
}
