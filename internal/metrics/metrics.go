package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hunty_client"

// Gauges
var (
	PlaybackQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "playback_queue_depth",
		Help:      "Number of audio blocks waiting to be played",
	})
	VoiceConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "voice_connected",
		Help:      "1 while the voice socket is open",
	})
	MicLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mic_level",
		Help:      "Smoothed microphone RMS level",
	})
)

// Counters
var (
	PlaybackBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_blocks_total",
		Help:      "Audio blocks scheduled on the output device",
	})
	FramesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "voice_frames_received_total",
		Help:      "Frames received on the voice socket by kind",
	}, []string{"kind"})
	EnvelopeHeadersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "envelope_headers_total",
		Help:      "Decoded binary frames by header prefix length",
	}, []string{"prefix"})
	FallbackTonesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fallback_tones_total",
		Help:      "Fallback tones substituted for audio with an unsupported codec",
	}, []string{"codec"})
	ReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "voice_reconnects_total",
		Help:      "Voice socket reconnect attempts",
	})
	ConnectivityLostTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "voice_connectivity_lost_total",
		Help:      "Voice sessions abandoned after exhausting retries",
	})
	ChunksSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capture_chunks_sent_total",
		Help:      "Captured chunks sent by kind",
	}, []string{"kind"})
	ChunkBytesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capture_chunk_bytes_sent_total",
		Help:      "Captured bytes sent by kind",
	}, []string{"kind"})
	LifecycleErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lifecycle_errors_total",
		Help:      "Failed meeting lifecycle requests by operation",
	}, []string{"op"})
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Transcript and lifecycle events published by outcome",
	}, []string{"outcome"})
)

// Histograms
var (
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "Meeting API request latency by operation and outcome",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op", "outcome"})
)
