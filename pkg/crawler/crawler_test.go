package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title> Acme Anvils </title>
  <meta name="description" content="Anvils for   every workshop">
  <style>body { color: red; }</style>
  <script>var tracking = "ignore me";</script>
</head>
<body>
  <header><nav>Home | Shop</nav></header>
  <h1>Forged in Ohio</h1>
  <p>We have made   anvils since 1921.</p>
  <noscript>Enable JavaScript</noscript>
  <ul><li>Free shipping</li><li>Lifetime warranty</li></ul>
</body>
</html>`

func TestExtract(t *testing.T) {
	page, err := Extract(strings.NewReader(samplePage))
	require.NoError(t, err)
	require.Equal(t, "Acme Anvils", page.Title)
	require.Equal(t, "Anvils for every workshop", page.Description)
	require.Contains(t, page.Text, "Forged in Ohio")
	require.Contains(t, page.Text, "We have made anvils since 1921.")
	require.Contains(t, page.Text, "Lifetime warranty")
	require.NotContains(t, page.Text, "ignore me")
	require.NotContains(t, page.Text, "color: red")
	require.NotContains(t, page.Text, "Enable JavaScript")
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	c := New(time.Second, AllowPrivateNetworks())
	page, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, srv.URL, page.URL)
	require.Contains(t, page.Prompt(), "Title: Acme Anvils")

	_, err = c.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)

	_, err = c.Fetch(context.Background(), "ftp://example.com")
	require.Error(t, err)
	_, err = c.Fetch(context.Background(), "  ")
	require.Error(t, err)
}

func TestExtractTruncatesLongPages(t *testing.T) {
	body := "<p>" + strings.Repeat("word ", MaxTextChars) + "</p>"
	page, err := Extract(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, []rune(page.Text), MaxTextChars)
}

func TestFetchRefusesNonPublicAddresses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	c := New(time.Second)
	for _, target := range []string{
		srv.URL,
		"http://localhost:8080/admin",
		"http://169.254.169.254/latest/meta-data/",
		"10.0.0.7",
		"http://[::1]:9000",
		"http://100.64.1.1",
	} {
		_, err := c.Fetch(context.Background(), target)
		require.ErrorIs(t, err, ErrBlockedAddress, target)
	}
	require.Zero(t, hits.Load())
}

func TestGuardDialChecksResolvedAddress(t *testing.T) {
	require.ErrorIs(t, guardDial("tcp", "127.0.0.1:443", nil), ErrBlockedAddress)
	require.ErrorIs(t, guardDial("tcp", "192.168.1.20:80", nil), ErrBlockedAddress)
	require.ErrorIs(t, guardDial("tcp6", "[fe80::1]:80", nil), ErrBlockedAddress)
	require.ErrorIs(t, guardDial("tcp", "[::ffff:127.0.0.1]:80", nil), ErrBlockedAddress)
	require.NoError(t, guardDial("tcp", "93.184.216.34:443", nil))
	require.NoError(t, guardDial("tcp6", "[2606:2800:220:1::1]:443", nil))
}
