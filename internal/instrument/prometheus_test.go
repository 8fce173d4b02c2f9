package instrument

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter returns the value of the counter name carrying label=value.
func counter(t *testing.T, name, label, value string) float64 {
	t.Helper()
	families, err := Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == label && l.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCounters(t *testing.T) {
	before := counter(t, "saltyrtc_messages_received_total", "type", "server-hello")
	MessageReceived("server-hello")
	assert.Equal(t, before+1, counter(t, "saltyrtc_messages_received_total", "type", "server-hello"))

	HandshakeFailure("initiator", 3001)
	assert.Equal(t, 1.0, counter(t, "saltyrtc_handshake_failures_total", "code", "3001"))
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, nil) }()

	PingSent()
	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "saltyrtc_pings_sent_total")

	cancel()
	assert.NoError(t, <-done)
}
