/*
Package metrics exposes engine activity as Prometheus metrics.

PURPOSE:
  Prometheus implements points.Observer (recorded / rejected activities)
  and the audit observer used by api.BalanceAudit. It owns its registry so
  tests can create as many as they like.

METRICS:
  kidpoints_activities_recorded_total{type,status}
  kidpoints_activities_rejected_total{kind,reason}
  kidpoints_points_awarded_total{type}        absolute points per type
  kidpoints_balance_audit_runs_total
  kidpoints_balance_cache_drift_total         children repaired by the audit
  kidpoints_balance_audit_duration_seconds

USAGE:
  m := metrics.New()
  recorder.Observer = m
  r.Handle("/metrics", m.Handler())
*/
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/kidpoints/points"
)

const namespace = "kidpoints"

type Prometheus struct {
	registry *prometheus.Registry

	recorded      *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	awarded       *prometheus.CounterVec
	auditRuns     prometheus.Counter
	drift         prometheus.Counter
	auditDuration prometheus.Histogram
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on a fresh registry.
func New() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		recorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_recorded_total",
			Help:      "Activities written to the ledger or decided, by type and status.",
		}, []string{"type", "status"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_rejected_total",
			Help:      "Record, redeem and approve calls that failed, by error kind and eligibility reason.",
		}, []string{"kind", "reason"}),
		awarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Absolute points moved by approved activities, by type.",
		}, []string{"type"}),
		auditRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_audit_runs_total",
			Help:      "Completed balance cache audits.",
		}),
		drift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_cache_drift_total",
			Help:      "Children whose cached balance disagreed with the ledger.",
		}),
		auditDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "balance_audit_duration_seconds",
			Help:      "Time taken by a balance cache audit.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	p.registry.MustRegister(
		p.recorded, p.rejected, p.awarded,
		p.auditRuns, p.drift, p.auditDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// ActivityRecorded implements points.Observer.
func (p *Prometheus) ActivityRecorded(a points.Activity) {
	p.recorded.WithLabelValues(string(a.Type), string(a.Status)).Inc()
	if a.Status != points.StatusApproved {
		return
	}
	amount := a.EarnedPoints
	if amount < 0 {
		amount = -amount
	}
	p.awarded.WithLabelValues(string(a.Type)).Add(float64(amount))
}

// ActivityRejected implements points.Observer. reason is empty for
// anything but eligibility failures.
func (p *Prometheus) ActivityRejected(kind string, reason points.Reason) {
	p.rejected.WithLabelValues(kind, string(reason)).Inc()
}

// AuditCompleted records one balance cache audit.
func (p *Prometheus) AuditCompleted(checked, drifted int, took time.Duration) {
	p.auditRuns.Inc()
	p.drift.Add(float64(drifted))
	p.auditDuration.Observe(took.Seconds())
}

func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
