package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snowball_api_request_duration_seconds",
		Help:    "API request duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	RequestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snowball_api_request_errors_total",
		Help: "Total API request errors",
	}, []string{"op"})
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snowball_cache_hits_total",
		Help: "Total fresh cache hits",
	})
	CacheFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snowball_cache_fetches_total",
		Help: "Total fetches issued per entity",
	}, []string{"entity"})
	StalePutsDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snowball_cache_stale_puts_discarded_total",
		Help: "Late responses discarded by the start-timestamp guard",
	})
	MutationRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snowball_mutations_total",
		Help: "Total mutations by command",
	}, []string{"command"})
	MutationErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snowball_mutation_errors_total",
		Help: "Total mutation failures by command",
	}, []string{"command"})
	OptimisticRollbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snowball_optimistic_rollbacks_total",
		Help: "Optimistic updates rolled back after failure",
	})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snowball_command_runs_total",
		Help: "CLI command runs",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snowball_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestErrors,
		CacheHits, CacheFetches, StalePutsDiscarded,
		MutationRuns, MutationErrors, OptimisticRollbacks,
		CommandRuns, CommandErrors,
	)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("SNOWBALL_METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObserveRequestDuration records one API round-trip.
func ObserveRequestDuration(op string, start time.Time) {
	RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func IncRequestError(op string) { RequestErrors.WithLabelValues(op).Inc() }

func IncFetch(entity string) { CacheFetches.WithLabelValues(entity).Inc() }

func IncMutation(command string) { MutationRuns.WithLabelValues(command).Inc() }

func IncMutationError(command string) { MutationErrors.WithLabelValues(command).Inc() }

func IncCommandRun(cmd string) { CommandRuns.WithLabelValues(cmd).Inc() }

func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
