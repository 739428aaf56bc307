package finsight

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Call outcomes recorded per SDK method.
const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeInvalid  = "invalid"
	outcomeError    = "error"
)

// outcomeOf maps an error onto a bounded label set. Caller mistakes are kept
// apart from backend failures so alerts can target the latter.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrTickerNotFound):
		return outcomeNotFound
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidFilter):
		return outcomeInvalid
	default:
		return outcomeError
	}
}

type callMetrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func newCallMetrics(reg prometheus.Registerer) (*callMetrics, error) {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finsight",
		Subsystem: "sdk",
		Name:      "operations_total",
		Help:      "SDK calls by method and outcome.",
	}, []string{"operation", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "finsight",
		Subsystem: "sdk",
		Name:      "operation_duration_seconds",
		Help:      "SDK call latency in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
	}, []string{"operation"})

	var err error
	if calls, err = register(reg, calls); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	return &callMetrics{calls: calls, latency: latency}, nil
}

// register returns the collector already on reg when an identical one exists,
// so two clients can share a registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("finsight: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(C)
	if !ok {
		return c, fmt.Errorf("finsight: metric already registered as %T", are.ExistingCollector)
	}
	return existing, nil
}

// observer records each SDK call. A nil observer, logger or metrics set is skipped.
type observer struct {
	logger  *zap.Logger
	metrics *callMetrics
}

func newObserver(logger *zap.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newCallMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	outcome := outcomeOf(err)

	if o.metrics != nil {
		o.metrics.calls.WithLabelValues(op, outcome).Inc()
		o.metrics.latency.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}

	level := zapcore.DebugLevel
	msg := "operation completed"
	switch outcome {
	case outcomeError:
		level, msg = zapcore.WarnLevel, "operation failed"
	case outcomeNotFound, outcomeInvalid:
		level, msg = zapcore.InfoLevel, "operation rejected"
	}
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("outcome", outcome),
		zap.Duration("duration", elapsed),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	o.logger.Log(level, msg, fields...)
}
