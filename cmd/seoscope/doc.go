// Package main hosts the seoscope crawl engine entrypoint.
//
// Architecture overview:
//   - Scheduler: internal/crawl.Scheduler owns the breadth-first frontier and
//     the session record. URL normalization and dedup happen before enqueue,
//     so each page is fetched at most once per session and recorded at its
//     shallowest discovery depth.
//   - Fetch pipeline: internal/fetch.Client wraps Colly with browser-like
//     headers, a shared cookie jar, bounded redirects, and up to three
//     attempts with jittered exponential backoff. TLS failures get one
//     relaxed-verification retry; pages fetched that way are flagged as
//     degraded.
//   - Politeness: internal/robots.Controller caches robots.txt per origin,
//     fails open on unreachable or unparseable files, and paces requests per
//     origin honoring Crawl-delay.
//   - Extraction: internal/extract parses each HTML body with goquery and
//     records titles, meta directives, heading structure, canonical targets,
//     structured-data types, link graphs, and Flesch readability.
//   - Rendering: when enabled, internal/render escalates pages that look
//     client-side rendered to headless Chrome via chromedp, bounded by a
//     semaphore and per-domain rate limits.
//   - Persistence & fanout: raw HTML is archived to the configured backend
//     (memory/local/GCS), finished sessions are written to Postgres via pgx,
//     and a completion event is published to Pub/Sub when a topic is
//     configured.
//   - Observability: zap provides structured logging, Prometheus counters and
//     histograms track crawl activity, and internal/api serves /healthz,
//     /metrics, live progress, and the finished session report.
//
// Run locally: go run ./cmd/seoscope crawl --config config.yaml, or rely on
// SEOSCOPE_* env overrides (SEOSCOPE_CRAWL_SEED_URL at minimum). The process
// reacts to SIGINT/SIGTERM by draining in-flight fetches and finalizing the
// session.
package main
