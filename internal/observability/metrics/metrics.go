// Package metrics keeps in-process counters for HTTP traffic and payment
// execution, rendered in the Prometheus text exposition format. The engine
// deliberately avoids a metrics client dependency; the collector is a mutex
// guarded map and the /metrics handler renders it on demand.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type requestKey struct {
	handler string
	method  string
	code    string
}

type executionKey struct {
	mode   string
	result string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type collector struct {
	mu         sync.Mutex
	requests   map[requestKey]uint64
	executions map[executionKey]uint64
	latency    map[string]*histogram
	scans      uint64
	dispatched uint64
}

var defaultCollector = &collector{
	requests:   make(map[requestKey]uint64),
	executions: make(map[executionKey]uint64),
	latency:    make(map[string]*histogram),
}

// 支付执行的模式标签。
const (
	ModeScheduled = "scheduled"
	ModeImmediate = "immediate"
)

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	defaultCollector.observeHTTP(handler, method, status, duration)
}

// ObservePaymentExecution records the outcome and duration of one on-chain
// transfer attempt. Mode is ModeScheduled or ModeImmediate.
func ObservePaymentExecution(mode string, success bool, duration time.Duration) {
	defaultCollector.observeExecution(mode, success, duration)
}

// ObserveScan records one due-payment scan round and how many records it
// dispatched.
func ObserveScan(dispatched int) {
	defaultCollector.observeScan(dispatched)
}

func (c *collector) observeHTTP(handler, method string, status int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := requestKey{handler: handler, method: method, code: strconv.Itoa(status)}
	c.requests[key]++
	c.observeLatencyLocked("http_"+handler, duration)
}

func (c *collector) observeExecution(mode string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := "success"
	if !success {
		result = "failure"
	}
	c.executions[executionKey{mode: mode, result: result}]++
	c.observeLatencyLocked("execution_"+mode, duration)
}

func (c *collector) observeScan(dispatched int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scans++
	if dispatched > 0 {
		c.dispatched += uint64(dispatched)
	}
}

func (c *collector) observeLatencyLocked(name string, duration time.Duration) {
	hist := c.latency[name]
	if hist == nil {
		hist = newHistogram()
		c.latency[name] = hist
	}
	hist.observe(duration.Seconds())
}

func newHistogram() *histogram {
	buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for idx, bound := range h.buckets {
		if value <= bound {
			for i := idx; i < len(h.counts); i++ {
				h.counts[i]++
			}
			break
		}
	}
	// Values above the last bucket only land in the implicit +Inf bucket.
}

// Middleware wraps a handler and records request counts and latency under the
// given handler label.
func Middleware(label string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		ObserveHTTPRequest(label, r.Method, recorder.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, defaultCollector.render())
	})
}

func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	type requestMetric struct {
		requestKey
		value uint64
	}
	type executionMetric struct {
		executionKey
		value uint64
	}
	type latencyMetric struct {
		name    string
		buckets []float64
		counts  []uint64
		sum     float64
		count   uint64
	}

	reqs := make([]requestMetric, 0, len(c.requests))
	for key, value := range c.requests {
		reqs = append(reqs, requestMetric{requestKey: key, value: value})
	}
	execs := make([]executionMetric, 0, len(c.executions))
	for key, value := range c.executions {
		execs = append(execs, executionMetric{executionKey: key, value: value})
	}
	lats := make([]latencyMetric, 0, len(c.latency))
	for name, hist := range c.latency {
		lats = append(lats, latencyMetric{
			name:    name,
			buckets: append([]float64(nil), hist.buckets...),
			counts:  append([]uint64(nil), hist.counts...),
			sum:     hist.sum,
			count:   hist.count,
		})
	}

	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].handler == reqs[j].handler {
			if reqs[i].method == reqs[j].method {
				return reqs[i].code < reqs[j].code
			}
			return reqs[i].method < reqs[j].method
		}
		return reqs[i].handler < reqs[j].handler
	})
	sort.Slice(execs, func(i, j int) bool {
		if execs[i].mode == execs[j].mode {
			return execs[i].result < execs[j].result
		}
		return execs[i].mode < execs[j].mode
	})
	sort.Slice(lats, func(i, j int) bool { return lats[i].name < lats[j].name })

	var builder strings.Builder
	builder.Grow(1024)

	builder.WriteString("# HELP paybot_http_requests_total Total number of HTTP requests processed.\n")
	builder.WriteString("# TYPE paybot_http_requests_total counter\n")
	for _, metric := range reqs {
		builder.WriteString(fmt.Sprintf("paybot_http_requests_total{handler=%q,method=%q,code=%q} %d\n",
			metric.handler, metric.method, metric.code, metric.value))
	}

	builder.WriteString("# HELP paybot_payment_executions_total Total number of on-chain transfer attempts.\n")
	builder.WriteString("# TYPE paybot_payment_executions_total counter\n")
	for _, metric := range execs {
		builder.WriteString(fmt.Sprintf("paybot_payment_executions_total{mode=%q,result=%q} %d\n",
			metric.mode, metric.result, metric.value))
	}

	builder.WriteString("# HELP paybot_scan_rounds_total Total number of due-payment scan rounds.\n")
	builder.WriteString("# TYPE paybot_scan_rounds_total counter\n")
	builder.WriteString(fmt.Sprintf("paybot_scan_rounds_total %d\n", c.scans))

	builder.WriteString("# HELP paybot_scan_dispatched_total Total number of payments dispatched by scan rounds.\n")
	builder.WriteString("# TYPE paybot_scan_dispatched_total counter\n")
	builder.WriteString(fmt.Sprintf("paybot_scan_dispatched_total %d\n", c.dispatched))

	builder.WriteString("# HELP paybot_duration_seconds Operation duration in seconds.\n")
	builder.WriteString("# TYPE paybot_duration_seconds histogram\n")
	for _, metric := range lats {
		for idx, bound := range metric.buckets {
			builder.WriteString(fmt.Sprintf("paybot_duration_seconds_bucket{op=%q,le=%q} %d\n",
				metric.name, formatFloat(bound), metric.counts[idx]))
		}
		builder.WriteString(fmt.Sprintf("paybot_duration_seconds_bucket{op=%q,le=\"+Inf\"} %d\n",
			metric.name, metric.count))
		builder.WriteString(fmt.Sprintf("paybot_duration_seconds_sum{op=%q} %s\n",
			metric.name, formatFloat(metric.sum)))
		builder.WriteString(fmt.Sprintf("paybot_duration_seconds_count{op=%q} %d\n",
			metric.name, metric.count))
	}

	return builder.String()
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// StartServer launches a standalone HTTP server exposing the /metrics endpoint.
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
