package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricChunksForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_chunks_forwarded_total",
		Help: "Audio chunks successfully delivered to the transcription endpoint",
	})

	metricChunksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_chunks_dropped_total",
		Help: "Audio chunks dropped after a failed delivery attempt",
	})

	metricDecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_decode_failures_total",
		Help: "Page payloads that could not be decoded into audio chunks",
	})
)
