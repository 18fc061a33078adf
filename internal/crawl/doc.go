// Package crawl implements the crawl engine: the breadth-first frontier, the
// session aggregate holding page records and the inlink graph, and the
// scheduler that drives fetch, extraction, and link discovery under depth,
// page-count, and politeness constraints.
package crawl
