package relay_test

import (
	"chatrelay/internal/relay"
	"chatrelay/pkg/content"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/metrics"
	"chatrelay/pkg/tracing"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.TestEnvironment)
	m.Run()
}

func testOptions() relay.Options {
	return relay.Options{
		MaxMessageSize: 16 * 1024,
		SendBuffer:     16,
		WriteWait:      time.Second,
		PongWait:       5 * time.Second,
		PingPeriod:     time.Second,
		AllowedOrigins: []string{"*"},
	}
}

type testRelay struct {
	hub *relay.Hub
	srv *httptest.Server
	url string
}

func startRelay(t *testing.T, deps relay.Deps, opts relay.Options) *testRelay {
	t.Helper()

	hub := relay.NewHub(deps, opts)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		_ = hub.Shutdown(time.Second)
		cancel()
		srv.Close()
	})

	return &testRelay{hub: hub, srv: srv, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (r *testRelay) dial(t *testing.T, clients int) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(r.url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return r.hub.ClientCount() == clients }, 2*time.Second, 5*time.Millisecond)

	return conn
}

// readPayloads reads frames until n payloads have arrived. Payloads queued
// together arrive in one frame separated by newlines.
func readPayloads(t *testing.T, conn *websocket.Conn, n int) []string {
	t.Helper()

	var out []string
	for len(out) < n {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		msgType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.TextMessage, msgType)
		out = append(out, strings.Split(string(data), "\n")...)
	}

	return out
}

func TestHub_BroadcastsToEveryClientIncludingSender(t *testing.T) {
	r := startRelay(t, relay.Deps{}, testOptions())
	alice := r.dial(t, 1)
	bob := r.dial(t, 2)

	raw := `{"mensaje":"hola https://evil.example/x.png","nombre":"<b>Ana</b>","color":"#fff"}`
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(raw)))

	want := content.ValidateMessage(raw)
	require.Equal(t, []string{want}, readPayloads(t, alice, 1))
	require.Equal(t, []string{want}, readPayloads(t, bob, 1))
	require.Contains(t, want, `"nombre":"&lt;b&gt;Ana&lt;&#x2F;b&gt;"`)
}

func TestHub_PreservesOrderPerSender(t *testing.T) {
	r := startRelay(t, relay.Deps{}, testOptions())
	sender := r.dial(t, 1)
	receiver := r.dial(t, 2)

	raws := []string{
		`{"mensaje":"uno"}`,
		`{"mensaje":"<script>alert(1)</script>"}`,
		`{"mensaje":"https://www.youtube.com/watch?v=dQw4w9WgXcQ"}`,
		`not json`,
	}
	want := make([]string, 0, len(raws))
	for _, raw := range raws {
		require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(raw)))
		want = append(want, content.ValidateMessage(raw))
	}

	require.Equal(t, want, readPayloads(t, receiver, len(raws)))
}

func TestHub_BinaryFrameIsRejected(t *testing.T) {
	r := startRelay(t, relay.Deps{}, testOptions())
	conn := r.dial(t, 1)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte(`{"mensaje":"hola"}`)))
	require.Equal(t, []string{content.Validate([]byte("x")).Payload}, readPayloads(t, conn, 1))
}

func TestHub_RejectsDisallowedOrigin(t *testing.T) {
	opts := testOptions()
	opts.AllowedOrigins = []string{"https://chat.example.org"}
	r := startRelay(t, relay.Deps{}, opts)

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(r.url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	header.Set("Origin", "https://chat.example.org")
	conn, resp, err := websocket.DefaultDialer.Dial(r.url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	_ = conn.Close()
}

func TestHub_MethodNotAllowed(t *testing.T) {
	r := startRelay(t, relay.Deps{}, testOptions())

	resp, err := http.Post(r.srv.URL, "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHub_DisconnectsOversizedFrames(t *testing.T) {
	opts := testOptions()
	opts.MaxMessageSize = 64
	r := startRelay(t, relay.Deps{}, opts)
	conn := r.dial(t, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("a", 128))))
	require.Eventually(t, func() bool { return r.hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestHub_ClientLeaving(t *testing.T) {
	r := startRelay(t, relay.Deps{}, testOptions())
	stays := r.dial(t, 1)
	leaves := r.dial(t, 2)

	require.NoError(t, leaves.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	require.Eventually(t, func() bool { return r.hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, stays.WriteMessage(websocket.TextMessage, []byte(`{"mensaje":"sigo aqui"}`)))
	require.Equal(t, []string{`{"mensaje":"sigo aqui"}`}, readPayloads(t, stays, 1))
}

func TestHub_Shutdown(t *testing.T) {
	r := startRelay(t, relay.Deps{}, testOptions())
	conn := r.dial(t, 1)

	require.NoError(t, r.hub.Shutdown(2*time.Second))
	require.Equal(t, 0, r.hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	// a closed hub hangs up on new connections
	late, resp, err := websocket.DefaultDialer.Dial(r.url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	require.Error(t, err)
	_ = late.Close()

	// shutting down twice is fine
	require.NoError(t, r.hub.Shutdown(time.Second))
}

func TestHub_RecordsMetricsAndSpans(t *testing.T) {
	collector, err := metrics.New()
	require.NoError(t, err)
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := tracing.NewWithExporter(context.Background(), tracing.Config{ServiceName: "test", SampleRatio: 1}, exporter)
	require.NoError(t, err)
	defer func() {
		_ = tracer.Shutdown(context.Background())
	}()

	r := startRelay(t, relay.Deps{Pipeline: content.NewPipeline(nil), Metrics: collector, Tracer: tracer}, testOptions())
	conn := r.dial(t, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"mensaje":"https://www.w3.org/Icons/w3c_home.png"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{}`)))
	readPayloads(t, conn, 2)

	expected := `
# HELP chat_messages_total Total number of chat messages by classification
# TYPE chat_messages_total counter
chat_messages_total{kind="image",validated="true"} 1
chat_messages_total{kind="rejected",validated="false"} 1
`
	require.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "chat_messages_total"))

	expectedSockets := `
# HELP socket_active_connections Number of currently connected WebSocket clients
# TYPE socket_active_connections gauge
socket_active_connections 1
`
	require.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expectedSockets),
		"socket_active_connections"))

	require.NoError(t, tracer.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	for _, s := range spans {
		require.Equal(t, relay.ValidateSpanName, s.Name)
	}
	require.Contains(t, spans[0].Attributes, attribute.String("chat.kind", "image"))
	require.Contains(t, spans[1].Attributes, attribute.String("chat.kind", "rejected"))
	require.NotEmpty(t, spans[1].Events, "rejections are recorded as span errors")
}
