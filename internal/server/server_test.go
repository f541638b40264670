package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/stasis/internal/config"
	"github.com/conneroisu/stasis/internal/logging"
	"github.com/conneroisu/stasis/internal/reload"
	"github.com/conneroisu/stasis/internal/testutils"
)

func testConfig(liveReload bool) *config.Config {
	cfg := testutils.CreateTestConfig("site", root)
	cfg.Server.LiveReload = liveReload
	return cfg
}

func TestServerInjectsReloadScript(t *testing.T) {
	srv := New(testConfig(true), logging.Discard(), WithFs(newSite(t)))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<head><script data-stasis-reload>")
	assert.Contains(t, string(body), ReloadPath)
	assert.Contains(t, string(body), "var poll=250,")
	assert.True(t, strings.HasSuffix(string(body), "<body>hi</body></html>"))
}

func TestServerWithoutLiveReload(t *testing.T) {
	srv := New(testConfig(false), logging.Discard(), WithFs(newSite(t)))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, indexPage, string(body))

	// Without a hub the reload path is just a missing file.
	resp, err = http.Get(ts.URL + ReloadPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestServerRequestSink(t *testing.T) {
	sink := &recordingSink{}
	srv := New(testConfig(false), logging.Discard(), WithFs(newSite(t)), WithRequestSink(sink))

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/css/site.css", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	ev := sink.last(t)
	assert.Equal(t, "/css/site.css", ev.Route)
	assert.Equal(t, int64(len("body{color:red}")), ev.Bytes)
}

func TestServerBroadcastsReload(t *testing.T) {
	srv := New(testConfig(true), logging.Discard(), WithFs(newSite(t)))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+ReloadPath, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool {
		return srv.hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	srv.Reload(ctx, []string{"/index.html"})

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg reload.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "reload", msg.Type)
	assert.Equal(t, []string{"/index.html"}, msg.Paths)
}

func TestServeAndShutdown(t *testing.T) {
	srv := New(testConfig(true), logging.Discard(), WithFs(newSite(t)))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(context.Background(), ln)
	}()

	require.Eventually(t, func() bool {
		return srv.Addr() != ""
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/css/site.css")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestListenReportsBoundPort(t *testing.T) {
	srv := New(testConfig(false), logging.Discard(), WithFs(newSite(t)))

	ln, err := srv.Listen()
	require.NoError(t, err)
	defer ln.Close()

	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	assert.NotEqual(t, "0", port)
}

func TestListenFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := testConfig(false)
	cfg.Server.Port = busy.Addr().(*net.TCPAddr).Port
	_, err = New(cfg, logging.Discard()).Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen on")
}

func TestReloadScriptDefaults(t *testing.T) {
	script := string(ReloadScript("/ws", 0))
	assert.True(t, strings.HasPrefix(script, "<script data-stasis-reload>"))
	assert.True(t, strings.HasSuffix(script, "</script>"))
	assert.Contains(t, script, "var poll=1000,")
	assert.Contains(t, script, `"/ws"`)
	assert.Contains(t, script, "If-Modified-Since")
}
