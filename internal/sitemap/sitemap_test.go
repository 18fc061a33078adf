package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDiscoverer(t *testing.T) *Discoverer {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return NewDiscoverer(Config{UserAgent: "seoscope"}, logger)
}

func urlsetXML(locs ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, loc := range locs {
		body += "<url><loc>" + loc + "</loc></url>"
	}
	return body + "</urlset>"
}

func TestDiscoverFromWellKnownPath(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlsetXML(server.URL+"/a", server.URL+"/b"))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	got := newTestDiscoverer(t).Discover(context.Background(), server.URL+"/")
	require.Equal(t, []string{server.URL + "/a", server.URL + "/b"}, got)
}

func TestDiscoverFromRobotsDirective(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nSitemap: %s/custom-map.xml\n", server.URL)
	})
	mux.HandleFunc("/custom-map.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlsetXML(server.URL+"/from-custom"))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	got := newTestDiscoverer(t).Discover(context.Background(), server.URL+"/")
	require.Equal(t, []string{server.URL + "/from-custom"}, got)
}

func TestDiscoverRecursesSitemapIndex(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?><sitemapindex><sitemap><loc>%s/pages.xml</loc></sitemap><sitemap><loc>%s/posts.xml</loc></sitemap></sitemapindex>`, server.URL, server.URL)
	})
	mux.HandleFunc("/pages.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlsetXML(server.URL+"/page-1"))
	})
	mux.HandleFunc("/posts.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlsetXML(server.URL+"/post-1"))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	got := newTestDiscoverer(t).Discover(context.Background(), server.URL+"/")
	require.Equal(t, []string{server.URL + "/page-1", server.URL + "/post-1"}, got)
}

func TestDiscoverGzippedSitemap(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		gz.Write([]byte(urlsetXML(server.URL + "/zipped")))
		gz.Close()
		w.Write(buf.Bytes())
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	got := newTestDiscoverer(t).Discover(context.Background(), server.URL+"/")
	require.Equal(t, []string{server.URL + "/zipped"}, got)
}

func TestDiscoverDropsForeignOrigins(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlsetXML(server.URL+"/mine", "https://elsewhere.example.net/theirs"))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	got := newTestDiscoverer(t).Discover(context.Background(), server.URL+"/")
	require.Equal(t, []string{server.URL + "/mine"}, got)
}

func TestDiscoverNoSitemapsYieldsNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer server.Close()

	got := newTestDiscoverer(t).Discover(context.Background(), server.URL+"/")
	require.Empty(t, got)
}
