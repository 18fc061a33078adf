package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/seoscope/crawler/internal/crawl"
)

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetryable
	outcomeFatal
)

// attemptOutcome tags one attempt so the retry loop never inspects raw
// transport errors itself.
type attemptOutcome struct {
	kind outcomeKind
	page responsePage
	err  error
}

// responsePage carries what the transport produced, which may be partial on
// error statuses.
type responsePage struct {
	finalURL    string
	statusCode  int
	headers     http.Header
	body        []byte
	contentType string
}

func classify(pg responsePage, err error) attemptOutcome {
	if err != nil {
		switch {
		case errors.Is(err, crawl.ErrRedirectLimit):
			// The chain was cut mid-flight; whatever 3xx the transport last
			// saw is not a fetched page.
			return attemptOutcome{kind: outcomeFatal, page: pg, err: crawl.ErrRedirectLimit}
		case isTimeout(err):
			return attemptOutcome{kind: outcomeRetryable, page: pg, err: crawl.ErrFetchTimeout}
		case isTLSFailure(err):
			return attemptOutcome{kind: outcomeFatal, page: pg, err: crawl.ErrTLSFailure}
		case isDNSFailure(err):
			return attemptOutcome{kind: outcomeFatal, page: pg, err: crawl.ErrConnectionFailure}
		default:
			return attemptOutcome{kind: outcomeRetryable, page: pg, err: crawl.ErrConnectionFailure}
		}
	}
	switch {
	case pg.statusCode >= 200 && pg.statusCode < 400:
		return attemptOutcome{kind: outcomeSuccess, page: pg}
	case pg.statusCode == http.StatusTooManyRequests || pg.statusCode >= 500:
		return attemptOutcome{kind: outcomeRetryable, page: pg, err: &crawl.HTTPError{StatusCode: pg.statusCode}}
	default:
		return attemptOutcome{kind: outcomeFatal, page: pg, err: &crawl.HTTPError{StatusCode: pg.statusCode}}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "Client.Timeout")
}

func isTLSFailure(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostname         x509.HostnameError
		invalid          x509.CertificateInvalidError
		recordHeader     tls.RecordHeaderError
	)
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostname) ||
		errors.As(err, &invalid) || errors.As(err, &recordHeader) {
		return true
	}
	var verify *tls.CertificateVerificationError
	if errors.As(err, &verify) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "certificate") || strings.Contains(msg, "tls:")
}

// DNS failures are terminal, the name will not start resolving between
// attempts. Resets and refusals stay retryable via the default branch.
func isDNSFailure(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
