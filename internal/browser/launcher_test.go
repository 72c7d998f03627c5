package browser

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs(t *testing.T) {
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: 9222, ProfileDir: "/tmp/p", StartURL: "http://127.0.0.1:8188/"})
	args := l.Args()
	assert.Contains(t, args, "--remote-debugging-port=9222")
	assert.Contains(t, args, "--user-data-dir=/tmp/p")
	assert.Equal(t, "http://127.0.0.1:8188/", args[len(args)-1])
}

func splitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestLaunchSkipsWhenPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	host, port := splitAddr(t, ln.Addr().String())
	l := NewLauncher(Config{CDPAddress: host, CDPPort: port, Binary: "/nonexistent/browser"})
	require.NoError(t, l.Launch(context.Background()))
	assert.False(t, l.Running())
	l.Stop()
}

func TestWaitForCDP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/json/version" {
			w.Write([]byte(`{"Browser":"Chrome"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	host, port := splitAddr(t, srv.Listener.Addr().String())
	l := NewLauncher(Config{CDPAddress: host, CDPPort: port})
	assert.NoError(t, l.waitForCDP(context.Background(), 2*time.Second))
}

func TestWaitForCDPTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port := splitAddr(t, ln.Addr().String())
	ln.Close()

	l := NewLauncher(Config{CDPAddress: host, CDPPort: port})
	assert.Error(t, l.waitForCDP(context.Background(), 600*time.Millisecond))
}
