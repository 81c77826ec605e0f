package task

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analysis",
		Subsystem: "worker",
		Name:      "tasks_dispatched_total",
		Help:      "Tasks handed to the processor, partitioned by dispatch lane.",
	}, []string{"lane"})

	tasksSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analysis",
		Subsystem: "worker",
		Name:      "tasks_settled_total",
		Help:      "Task attempt outcomes: completed, retried, failed or skipped.",
	}, []string{"outcome"})

	tasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "analysis",
		Subsystem: "worker",
		Name:      "tasks_in_flight",
		Help:      "Tasks currently being processed.",
	})

	tasksReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "analysis",
		Subsystem: "worker",
		Name:      "tasks_reclaimed_total",
		Help:      "Stuck processing tasks swept back to pending.",
	})

	inferenceGateOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "analysis",
		Subsystem: "worker",
		Name:      "inference_gate_open",
		Help:      "1 while the inference health gate permits text-lane dispatch.",
	})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "analysis",
		Subsystem: "worker",
		Name:      "task_duration_seconds",
		Help:      "Wall time of a single processing attempt.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"task_type"})
)

const (
	outcomeCompleted = "completed"
	outcomeRetried   = "retried"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
)
