package serve_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/husk/internal/testutil"
	"github.com/meigma/husk/serve"
)

func newTestServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	srv, err := serve.New(serve.Config{
		Addr:    ":0",
		Archive: testutil.LoadArchive(t, testutil.PackTree(t, files)),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestServerRootFallback(t *testing.T) {
	t.Parallel()

	body := []byte("<html>Hi</html>")
	ts := newTestServer(t, map[string][]byte{"index.html": body})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, fmt.Sprintf("%d", len(body)), resp.Header.Get("Content-Length"))

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestServerNotFound(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, map[string][]byte{"index.html": []byte("<html>Hi</html>")})

	resp, err := http.Get(ts.URL + "/missing.txt")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerMethodNotAllowed(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, map[string][]byte{"index.html": []byte("<html>Hi</html>")})

	resp, err := http.Post(ts.URL+"/index.html", "text/plain", bytes.NewReader([]byte("data")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET, HEAD", resp.Header.Get("Allow"))
}

func TestServerHead(t *testing.T) {
	t.Parallel()

	body := []byte("<html>Hi</html>")
	ts := newTestServer(t, map[string][]byte{"index.html": body})

	resp, err := http.Head(ts.URL + "/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("%d", len(body)), resp.Header.Get("Content-Length"))

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestServerRedirectsDirectory(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, map[string][]byte{"docs/index.html": []byte("<html>docs</html>")})

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(ts.URL + "/docs")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/docs/", resp.Header.Get("Location"))
}

func TestServerConditionalRequests(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, map[string][]byte{"index.html": []byte("<html>Hi</html>")})

	resp, err := http.Get(ts.URL + "/index.html")
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	etag := resp.Header.Get("ETag")
	lastModified := resp.Header.Get("Last-Modified")
	require.NotEmpty(t, etag)
	require.NotEmpty(t, lastModified)

	t.Run("if-none-match", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/index.html", nil)
		req.Header.Set("If-None-Match", etag)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	})

	t.Run("if-modified-since", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/index.html", nil)
		req.Header.Set("If-Modified-Since", lastModified)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	})

	t.Run("stale etag", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/index.html", nil)
		req.Header.Set("If-None-Match", `"00000000-0"`)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestServerConcurrentLargeBody(t *testing.T) {
	t.Parallel()

	// Incompressible 10MB payload served to 50 concurrent readers; every
	// response must be byte-identical to the input.
	payload := make([]byte, 10<<20)
	_, err := rand.New(rand.NewSource(42)).Read(payload)
	require.NoError(t, err)

	ts := newTestServer(t, map[string][]byte{"big.bin": payload})

	var g errgroup.Group
	for range 50 {
		g.Go(func() error {
			resp, err := http.Get(ts.URL + "/big.bin")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status %d", resp.StatusCode)
			}
			got, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if !bytes.Equal(payload, got) {
				return fmt.Errorf("body mismatch: got %d bytes", len(got))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()

	srv, err := serve.New(serve.Config{
		Addr:            "127.0.0.1:0",
		Archive:         testutil.LoadArchive(t, testutil.PackTree(t, map[string][]byte{"index.html": []byte("<html>Hi</html>")})),
		ShutdownTimeout: time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	select {
	case <-srv.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/")
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server never shut down")
	}
}

func TestServerConfigValidation(t *testing.T) {
	t.Parallel()

	_, err := serve.New(serve.Config{Archive: nil, Addr: ":0"})
	require.Error(t, err)

	_, err = serve.New(serve.Config{
		Archive: testutil.LoadArchive(t, testutil.PackTree(t, map[string][]byte{"a.txt": []byte("a")})),
	})
	require.Error(t, err)
}
