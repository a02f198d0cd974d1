// Package health runs liveness and readiness probes and serves their results
// over HTTP and the gRPC health protocol.
package health

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lewisedginton/gemini_relay/pkg/logger"
)

// Probe is a single named health check.
type Probe interface {
	Name() string
	// Check returns nil when healthy.
	Check(ctx context.Context) error
}

// ProbeFunc adapts a plain function to the Probe interface.
type ProbeFunc struct {
	name string
	fn   func(context.Context) error
}

// NewProbeFunc creates a ProbeFunc with the given name and function.
func NewProbeFunc(name string, fn func(context.Context) error) *ProbeFunc {
	return &ProbeFunc{name: name, fn: fn}
}

// Name returns the probe name.
func (p *ProbeFunc) Name() string {
	return p.name
}

// Check executes the probe function.
func (p *ProbeFunc) Check(ctx context.Context) error {
	return p.fn(ctx)
}

// Result is the outcome of one probe execution.
type Result struct {
	Name    string
	Healthy bool
	Error   string
	Latency time.Duration
}

// Report aggregates the results of a probe set.
type Report struct {
	Healthy bool
	Results []Result
}

// Checker holds the liveness and readiness probe sets of a process.
// A probe is only reported unhealthy after failureThreshold consecutive failures.
type Checker struct {
	liveness         []Probe
	readiness        []Probe
	timeout          time.Duration
	failureThreshold int
	failures         map[string]int
	gauge            *prometheus.GaugeVec
	log              logger.Logger
	mu               sync.RWMutex
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout bounds each probe execution. Default 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used to report probe failures.
func WithLogger(l logger.Logger) Option {
	return func(c *Checker) {
		c.log = l
	}
}

// WithFailureThreshold sets how many consecutive failures mark a probe unhealthy. Default 3.
func WithFailureThreshold(threshold int) Option {
	return func(c *Checker) {
		if threshold > 0 {
			c.failureThreshold = threshold
		}
	}
}

// WithGauge records 1 (healthy) or 0 (unhealthy) per probe name on the given gauge.
// The gauge must have a single "probe" label.
func WithGauge(g *prometheus.GaugeVec) Option {
	return func(c *Checker) {
		c.gauge = g
	}
}

// NewProbeGauge builds a gauge suitable for WithGauge.
func NewProbeGauge(subsystem string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: subsystem,
		Name:      "health_probe_up",
		Help:      "Whether a health probe is currently passing (1) or failing (0)",
	}, []string{"probe"})
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{
		timeout:          5 * time.Second,
		failureThreshold: 3,
		failures:         make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddLivenessProbe registers a probe deciding whether the process should be restarted.
func (c *Checker) AddLivenessProbe(p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveness = append(c.liveness, p)
}

// AddReadinessProbe registers a probe deciding whether the process can take traffic.
func (c *Checker) AddReadinessProbe(p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readiness = append(c.readiness, p)
}

// Liveness runs the liveness probes.
func (c *Checker) Liveness(ctx context.Context) (*Report, error) {
	c.mu.RLock()
	probes := c.liveness
	c.mu.RUnlock()
	return c.run(ctx, probes)
}

// Readiness runs the readiness probes.
func (c *Checker) Readiness(ctx context.Context) (*Report, error) {
	c.mu.RLock()
	probes := c.readiness
	c.mu.RUnlock()
	return c.run(ctx, probes)
}

// run executes probes concurrently. An empty set is healthy.
func (c *Checker) run(ctx context.Context, probes []Probe) (*Report, error) {
	report := &Report{Healthy: true, Results: make([]Result, len(probes))}
	if len(probes) == 0 {
		return report, nil
	}

	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(idx int, probe Probe) {
			defer wg.Done()
			report.Results[idx] = c.execute(ctx, probe)
		}(i, p)
	}
	wg.Wait()

	var result *multierror.Error
	for _, r := range report.Results {
		if !r.Healthy {
			report.Healthy = false
			result = multierror.Append(result, fmt.Errorf("%s: %s", r.Name, r.Error))
		}
	}
	if result != nil {
		result.ErrorFormat = joinProbeErrors
	}
	return report, result.ErrorOrNil()
}

func joinProbeErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return "health probes failed: " + strings.Join(msgs, "; ")
}

func (c *Checker) execute(parent context.Context, p Probe) Result {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	start := time.Now()
	err := p.Check(ctx)
	latency := time.Since(start)

	res := Result{Name: p.Name(), Latency: latency, Healthy: true}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.failures[p.Name()] = 0
		c.setGauge(p.Name(), true)
		c.debug("Health probe passed", logger.StringField("probe", p.Name()), logger.DurationField("latency", latency))
		return res
	}

	c.failures[p.Name()]++
	count := c.failures[p.Name()]
	if count < c.failureThreshold {
		c.debug("Health probe failed below threshold",
			logger.StringField("probe", p.Name()),
			logger.ErrorField(err),
			logger.IntField("failures", count),
			logger.IntField("threshold", c.failureThreshold),
		)
		return res
	}

	res.Healthy = false
	res.Error = err.Error()
	c.setGauge(p.Name(), false)
	if c.log != nil {
		c.log.Warn("Health probe failed",
			logger.StringField("probe", p.Name()),
			logger.ErrorField(err),
			logger.IntField("failures", count),
			logger.DurationField("latency", latency),
		)
	}
	return res
}

func (c *Checker) setGauge(name string, up bool) {
	if c.gauge == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	c.gauge.WithLabelValues(name).Set(v)
}

func (c *Checker) debug(msg string, fields ...logger.LogField) {
	if c.log != nil {
		c.log.Debug(msg, fields...)
	}
}
