package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framepipe",
			Subsystem: "channel",
			Name:      "frames_read_total",
			Help:      "Frames read from the input stream.",
		},
		[]string{"session"},
	)
	framesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framepipe",
			Subsystem: "channel",
			Name:      "frames_written_total",
			Help:      "Frames written to the output stream.",
		},
		[]string{"session"},
	)
	bytesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framepipe",
			Subsystem: "channel",
			Name:      "payload_bytes_read_total",
			Help:      "Payload bytes read from the input stream.",
		},
		[]string{"session"},
	)
	bytesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framepipe",
			Subsystem: "channel",
			Name:      "payload_bytes_written_total",
			Help:      "Payload bytes written to the output stream.",
		},
		[]string{"session"},
	)
	sessionsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framepipe",
			Subsystem: "channel",
			Name:      "sessions_ended_total",
			Help:      "Channel sessions by terminal outcome.",
		},
		[]string{"session", "outcome"},
	)
	debugRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "framepipe",
			Subsystem: "debug",
			Name:      "requests_total",
			Help:      "Requests served by the debug side-channel listener.",
		},
		[]string{"path", "status"},
	)
	handlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "framepipe",
			Subsystem: "channel",
			Name:      "handler_duration_seconds",
			Help:      "Handler dispatch duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"session"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesRead, framesWritten,
			bytesRead, bytesWritten,
			sessionsEnded, handlerDuration,
			debugRequests,
		)
	})
}

func RecordFrameRead(session string, payloadBytes int) {
	RegisterMetrics()
	framesRead.WithLabelValues(session).Inc()
	bytesRead.WithLabelValues(session).Add(float64(payloadBytes))
}

func RecordFrameWritten(session string, payloadBytes int) {
	RegisterMetrics()
	framesWritten.WithLabelValues(session).Inc()
	bytesWritten.WithLabelValues(session).Add(float64(payloadBytes))
}

func RecordSessionEnd(session, outcome string) {
	RegisterMetrics()
	sessionsEnded.WithLabelValues(session, outcome).Inc()
}

func RecordDebugRequest(path string, status int) {
	RegisterMetrics()
	debugRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
}

func RecordHandlerDispatch(session string, duration time.Duration) {
	RegisterMetrics()
	handlerDuration.WithLabelValues(session).Observe(duration.Seconds())
}
