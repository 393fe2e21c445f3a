package web

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/replayscope/scope"
	"github.com/ftl/replayscope/settings"
)

type memoryGeometry struct {
	lock     sync.Mutex
	geometry settings.Geometry
}

func (m *memoryGeometry) Geometry() (settings.Geometry, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.geometry, m.geometry.Valid()
}

func (m *memoryGeometry) SetGeometry(geometry settings.Geometry) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.geometry = geometry
}

type fakeSnapshotter struct {
	filenames []string
}

func (f *fakeSnapshotter) Snapshot() ([]string, error) {
	return f.filenames, nil
}

var testPanels = []scope.Panel{
	{Stream: "sym", Kind: scope.TimePanel, Title: "sym"},
	{Stream: "in", Kind: scope.FrequencyPanel, Title: "in"},
}

func startServer(t *testing.T, geometry GeometryStore, snapshotter Snapshotter) *Server {
	t.Helper()
	server := NewServer("localhost:0", testPanels, geometry, snapshotter)
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Stop(ctx)
	})
	return server
}

func readMessage(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var result message
	require.NoError(t, conn.ReadJSON(&result))
	return result
}

func TestStaticRoutes(t *testing.T) {
	server := NewServer("localhost:0", testPanels, nil, nil)
	handler := server.Handler()

	tt := []struct {
		method       string
		path         string
		expectedCode int
		expectedBody string
	}{
		{method: http.MethodGet, path: "/healthz", expectedCode: http.StatusOK, expectedBody: "ok"},
		{method: http.MethodGet, path: "/", expectedCode: http.StatusOK, expectedBody: "<title>replayscope</title>"},
		{method: http.MethodGet, path: "/panels", expectedCode: http.StatusOK, expectedBody: `"stream":"sym"`},
		{method: http.MethodPost, path: "/snapshot", expectedCode: http.StatusNotImplemented},
	}
	for _, tc := range tt {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, httptest.NewRequest(tc.method, tc.path, nil))

			assert.Equal(t, tc.expectedCode, recorder.Code)
			assert.Contains(t, recorder.Body.String(), tc.expectedBody)
		})
	}
}

func TestSnapshotRoute(t *testing.T) {
	server := startServer(t, nil, &fakeSnapshotter{filenames: []string{"a.npy", "b.npy"}})

	response, err := http.Post("http://"+server.Addr().String()+"/snapshot", "", nil)
	require.NoError(t, err)
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	var filenames []string
	require.NoError(t, json.Unmarshal(body, &filenames))
	assert.Equal(t, []string{"a.npy", "b.npy"}, filenames)
}

func TestPageReceivesGreetingAndFrames(t *testing.T) {
	geometry := &memoryGeometry{geometry: settings.Geometry{X: 1, Y: 2, Width: 640, Height: 480}}
	server := startServer(t, geometry, nil)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+server.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	session := readMessage(t, conn)
	assert.Equal(t, sessionMessage, session.Type)
	assert.Len(t, session.Session, 26)

	panels := readMessage(t, conn)
	assert.Equal(t, panelsMessage, panels.Type)
	assert.Equal(t, testPanels, panels.Panels)

	restored := readMessage(t, conn)
	assert.Equal(t, geometryMessage, restored.Type)
	require.NotNil(t, restored.Geometry)
	assert.Equal(t, settings.Geometry{X: 1, Y: 2, Width: 640, Height: 480}, *restored.Geometry)

	received := make(chan string, 100)
	conn.SetReadDeadline(time.Time{})
	go func() {
		defer close(received)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(raw)
		}
	}()

	// the page is registered at the hub shortly after the greeting
	assert.Eventually(t, func() bool {
		server.ShowTimeFrame(&scope.TimeFrame{
			Frame:      scope.Frame{Stream: "sym", Timestamp: time.Now()},
			SampleRate: 48000,
			YMin:       -1,
			YMax:       1,
			Lines:      [][]float64{{0.25, -0.25}},
		})
		select {
		case raw := <-received:
			return strings.Contains(raw, `"lines":[[0.25,-0.25]]`)
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(message{
		Type:     geometryMessage,
		Geometry: &settings.Geometry{X: 10, Y: 20, Width: 1024, Height: 768},
	}))
	assert.Eventually(t, func() bool {
		actual, _ := geometry.Geometry()
		return actual == settings.Geometry{X: 10, Y: 20, Width: 1024, Height: 768}
	}, time.Second, 10*time.Millisecond)
}

func TestStopClosesPages(t *testing.T) {
	server := NewServer("localhost:0", testPanels, nil, nil)
	require.NoError(t, server.Start())

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+server.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	readMessage(t, conn)
	readMessage(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))
	assert.Nil(t, server.Addr())

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestHubDropsSlowStreams(t *testing.T) {
	h := newHub(1)
	go h.run()
	defer h.stop()

	out := h.stream()
	h.send([]byte("1"))
	h.send([]byte("2"))

	message, open := <-out
	assert.True(t, open)
	assert.Equal(t, []byte("1"), message)

	_, open = <-out
	assert.False(t, open)
}

type frameCollector struct {
	timeFrame     *scope.TimeFrame
	spectralFrame *scope.SpectralFrame
}

func (c *frameCollector) ShowTimeFrame(frame *scope.TimeFrame)         { c.timeFrame = frame }
func (c *frameCollector) ShowSpectralFrame(frame *scope.SpectralFrame) { c.spectralFrame = frame }
func (c *frameCollector) ShowWaterfallFrame(*scope.WaterfallFrame)     {}

func TestFramesWithNonFiniteSamplesCanBeEncoded(t *testing.T) {
	const size = 1024
	samples := make([]float32, size)
	samples[100] = float32(math.NaN())
	iq := make([]complex64, size)
	iq[100] = complex(float32(math.NaN()), 0)

	timeConfig := scope.DefaultTimeConfig("sym")
	timeConfig.Size = size
	timeSink, err := scope.NewTimeSink[float32]("sym-time", 48000, timeConfig)
	require.NoError(t, err)
	frequencyConfig := scope.DefaultFrequencyConfig("in")
	frequencyConfig.Size = size
	frequencySink, err := scope.NewFrequencySink[complex64]("in-frequency", 48000, frequencyConfig)
	require.NoError(t, err)
	collector := &frameCollector{}

	timeSink.Consume(samples)
	frequencySink.Consume(iq)
	require.True(t, timeSink.Refresh(time.Now(), collector))
	require.True(t, frequencySink.Refresh(time.Now(), collector))

	_, err = encodeTimeFrame(collector.timeFrame)
	assert.NoError(t, err)
	_, err = encodeSpectralFrame(collector.spectralFrame)
	assert.NoError(t, err)
}
