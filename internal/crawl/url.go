package crawl

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeURL standardizes a URL so it can serve as a dedup key. It
// lowercases the scheme and host, removes default ports and fragments, and
// strips a trailing slash from non-root paths.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String(), nil
}

// SameOrigin reports whether two URLs share a host, ignoring a leading "www."
// so that www and bare-domain variants crawl as one site.
func SameOrigin(a, b string) bool {
	return originHost(a) != "" && originHost(a) == originHost(b)
}

func originHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// RegistrableDomain returns the eTLD+1 for a URL's host, falling back to the
// bare hostname when the public suffix list cannot resolve it (IPs,
// localhost, test hosts with ports). IP literals are returned as-is; the
// suffix list would otherwise split their trailing octets into a bogus eTLD+1.
func RegistrableDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if net.ParseIP(host) != nil {
		return host
	}
	etld, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return etld
}

// skipExtensions lists path suffixes that never yield HTML worth crawling.
var skipExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".pdf": {}, ".zip": {},
	".exe": {}, ".dmg": {}, ".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {},
	".css": {}, ".js": {}, ".ico": {}, ".xml": {}, ".txt": {}, ".doc": {},
	".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
}

// CrawlablePath reports whether the URL path looks like an HTML resource
// rather than a binary or asset download.
func CrawlablePath(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	_, skip := skipExtensions[ext]
	return !skip
}
