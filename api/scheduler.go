/*
scheduler.go - Balance cache audit

PURPOSE:
  Child.TotalPoints is a cache of the ledger sum. The Recorder refreshes
  it after every write, but a failed refresh, a second process or a
  manual database edit can leave it stale. The audit walks every child,
  compares the cache with the ledger and rewrites the ones that drifted.

DESIGN:
  - gocron runs the job every Interval, first run immediately on start
  - Singleton mode: a slow run is never overlapped by the next one
  - RunNow serves the manual trigger (POST /api/admin/audit) and tests
  - A failure on one child is logged and counted; the run goes on

CONFIGURATION:
  - Interval: KIDPOINTS_AUDIT_INTERVAL (default 1 hour, 0 disables)

USAGE:
  audit := NewBalanceAudit(store, recorder.Balances, time.Hour)
  audit.Observer = metrics
  if err := audit.Start(); err != nil { ... }
  defer audit.Stop()

SEE ALSO:
  - points/balance.go: Verify, Refresh
  - metrics/prometheus.go: AuditCompleted
*/
package api

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/warp/kidpoints/points"
)

// AuditObserver receives one call per completed run.
type AuditObserver interface {
	AuditCompleted(checked, drifted int, took time.Duration)
}

// AuditReport describes one run.
type AuditReport struct {
	Checked  int              `json:"checked"`
	Drifted  int              `json:"drifted"`
	Failed   int              `json:"failed"`
	Repaired []points.ChildID `json:"repaired"`
	Took     time.Duration    `json:"-"`
}

// BalanceAudit repairs drifted balance caches.
type BalanceAudit struct {
	Families points.FamilyStore
	Balances *points.BalanceCalculator
	Interval time.Duration
	Observer AuditObserver

	mu    sync.Mutex // one run at a time, scheduled or manual
	sched gocron.Scheduler
}

func NewBalanceAudit(families points.FamilyStore, balances *points.BalanceCalculator, interval time.Duration) *BalanceAudit {
	return &BalanceAudit{
		Families: families,
		Balances: balances,
		Interval: interval,
	}
}

// Start schedules the audit. A non-positive Interval leaves it disabled.
func (a *BalanceAudit) Start() error {
	if a.Interval <= 0 {
		log.Println("[Audit] Disabled, not starting")
		return nil
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(a.Interval),
		gocron.NewTask(func() {
			if _, err := a.RunNow(context.Background()); err != nil {
				log.Printf("[Audit] Run failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule audit: %w", err)
	}

	s.Start()
	a.sched = s
	log.Printf("[Audit] Started with interval: %v", a.Interval)
	return nil
}

// Stop waits for a running audit to finish and shuts the scheduler down.
func (a *BalanceAudit) Stop() {
	if a.sched == nil {
		return
	}
	if err := a.sched.Shutdown(); err != nil {
		log.Printf("[Audit] Shutdown: %v", err)
	}
	a.sched = nil
	log.Println("[Audit] Stopped")
}

// RunNow audits every child once. The error is non-nil only when the
// children can't be listed at all.
func (a *BalanceAudit) RunNow(ctx context.Context) (AuditReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	children, err := a.Families.Children(ctx, "")
	if err != nil {
		return AuditReport{}, fmt.Errorf("list children: %w", err)
	}

	report := AuditReport{Repaired: []points.ChildID{}}
	for _, c := range children {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		check, err := a.Balances.Verify(ctx, c.ID)
		if err != nil {
			log.Printf("[Audit] Error verifying child %s: %v", c.ID, err)
			report.Failed++
			continue
		}
		if !check.Drifted() {
			continue
		}

		report.Drifted++
		log.Printf("[Audit] Child %s cached %d, ledger %d", c.ID, check.Cached, check.Derived)
		if _, err := a.Balances.Refresh(ctx, c.ID); err != nil {
			log.Printf("[Audit] Error repairing child %s: %v", c.ID, err)
			report.Failed++
			continue
		}
		report.Repaired = append(report.Repaired, c.ID)
	}

	report.Took = time.Since(start)
	log.Printf("[Audit] Completed: %d checked, %d drifted, %d failed in %v",
		report.Checked, report.Drifted, report.Failed, report.Took)
	if a.Observer != nil {
		a.Observer.AuditCompleted(report.Checked, report.Drifted, report.Took)
	}
	return report, nil
}
