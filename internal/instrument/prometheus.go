// Package instrument exposes Prometheus counters for the signaling client.
package instrument

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector of this package.
var Registry = prometheus.NewRegistry()

var (
	messagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saltyrtc_messages_received_total",
			Help: "Number of signaling messages received, by type",
		},
		[]string{"type"},
	)
	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saltyrtc_messages_sent_total",
			Help: "Number of signaling messages sent, by type",
		},
		[]string{"type"},
	)
	handshakeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saltyrtc_handshake_failures_total",
			Help: "Number of failed handshakes, by partner and close code",
		},
		[]string{"peer", "code"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saltyrtc_state_transitions_total",
			Help: "Number of signaling state transitions, by target state",
		},
		[]string{"state"},
	)
	pingsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "saltyrtc_pings_sent_total",
			Help: "Number of WebSocket pings sent",
		},
	)
	pongTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "saltyrtc_pong_timeouts_total",
			Help: "Number of connections closed because no pong arrived",
		},
	)
	outgoingQueueDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "saltyrtc_outgoing_queue_rejected_total",
			Help: "Number of task messages rejected because the outgoing queue was full",
		},
	)
)

func init() {
	Registry.MustRegister(
		messagesReceived,
		messagesSent,
		handshakeFailures,
		stateTransitions,
		pingsSent,
		pongTimeouts,
		outgoingQueueDropped,
	)
}

func MessageReceived(typ string) { messagesReceived.WithLabelValues(typ).Inc() }

func MessageSent(typ string) { messagesSent.WithLabelValues(typ).Inc() }

func HandshakeFailure(peer string, code uint16) {
	handshakeFailures.WithLabelValues(peer, fmt.Sprintf("%d", code)).Inc()
}

func StateTransition(state string) { stateTransitions.WithLabelValues(state).Inc() }

func PingSent() { pingsSent.Inc() }

func PongTimeout() { pongTimeouts.Inc() }

func QueueRejected() { outgoingQueueDropped.Inc() }

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, errorLog *log.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("instrument: %w", err)
	}
	return serve(ctx, ln, errorLog)
}

func serve(ctx context.Context, ln net.Listener, errorLog *log.Logger) error {
	mux := http.NewServeMux()
	opts := promhttp.HandlerOpts{}
	if errorLog != nil {
		opts.ErrorLog = errorLog
	}
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, opts))
	srv := &http.Server{
		Handler:           mux,
		ErrorLog:          errorLog,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
