package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/muurk/onvif-discover/internal/discovery"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverCounters(t *testing.T) {
	m := New()
	onvif := discovery.ModeONVIF

	m.RunStarted(onvif, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeRuns))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sockets.WithLabelValues("onvif")))

	m.ProbeSent(onvif, "239.255.255.250:3702")
	m.ProbeSent(onvif, "192.168.1.255:3702")
	m.ProbeFailed(onvif, "10.0.0.255:3702", errors.New("network is unreachable"))
	m.ResponseReceived(onvif, 900)
	m.ResponseReceived(onvif, 1200)
	m.ResponseRejected(onvif)
	m.DeviceDiscovered(onvif)
	m.RunCompleted(onvif, 1, 3*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.probesSent.WithLabelValues("onvif")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.probeFailures.WithLabelValues("onvif")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.responses.WithLabelValues("onvif")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("onvif")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.devices.WithLabelValues("onvif")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("onvif")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lastDevices.WithLabelValues("onvif")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeRuns))
}

func TestModesAreSeparateSeries(t *testing.T) {
	m := New()

	m.DeviceDiscovered(discovery.ModeONVIF)
	m.DeviceDiscovered(discovery.ModeHikVision)
	m.DeviceDiscovered(discovery.ModeHikVision)

	assert.Equal(t, 2, testutil.CollectAndCount(m.devices))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.devices.WithLabelValues("hikvision")))
}

func TestHTTPAndFeedMetrics(t *testing.T) {
	m := New()

	m.ObserveHTTP(http.MethodGet, "/api/devices", http.StatusOK, 5*time.Millisecond)
	m.ObserveHTTP(http.MethodPost, "/api/discover", http.StatusConflict, time.Millisecond)
	m.FeedConnected(1)
	m.FeedConnected(1)
	m.FeedConnected(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/devices", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/discover", "409")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.feedClients))
}

func TestHandlerServes(t *testing.T) {
	m := New()
	m.RunStarted(discovery.ModeUPnP, 1)
	m.RunCompleted(discovery.ModeUPnP, 4, time.Second)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.True(t, strings.Contains(text, `onvif_discover_run_total{mode="upnp"} 1`), "run counter missing")
	assert.True(t, strings.Contains(text, `onvif_discover_run_devices{mode="upnp"} 4`), "device gauge missing")
	assert.True(t, strings.Contains(text, "go_goroutines"), "go collector missing")
}
