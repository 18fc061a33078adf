package crawl

// frontier is a breadth-first work queue: FIFO within each depth, shallower
// depths drained first. It remembers every URL ever offered, so a URL that
// has been queued or dispatched is never accepted again. Only the scheduler
// goroutine touches it.
type frontier struct {
	buckets  map[int][]FrontierEntry
	seen     map[string]struct{}
	minDepth int
	maxDepth int
	size     int
}

func newFrontier() *frontier {
	return &frontier{
		buckets: make(map[int][]FrontierEntry),
		seen:    make(map[string]struct{}),
	}
}

// Push offers an entry. It returns false when entry.URL has been seen before;
// the first offer fixes the URL's depth for the whole session.
func (f *frontier) Push(entry FrontierEntry) bool {
	if entry.URL == "" {
		return false
	}
	if _, dup := f.seen[entry.URL]; dup {
		return false
	}
	f.seen[entry.URL] = struct{}{}
	f.buckets[entry.Depth] = append(f.buckets[entry.Depth], entry)
	if f.size == 0 || entry.Depth < f.minDepth {
		f.minDepth = entry.Depth
	}
	if entry.Depth > f.maxDepth {
		f.maxDepth = entry.Depth
	}
	f.size++
	return true
}

// Pop removes the oldest entry at the shallowest populated depth.
func (f *frontier) Pop() (FrontierEntry, bool) {
	if f.size == 0 {
		return FrontierEntry{}, false
	}
	for d := f.minDepth; d <= f.maxDepth; d++ {
		bucket := f.buckets[d]
		if len(bucket) == 0 {
			continue
		}
		entry := bucket[0]
		f.buckets[d] = bucket[1:]
		f.minDepth = d
		f.size--
		return entry, true
	}
	return FrontierEntry{}, false
}

// Seen reports whether the URL was ever queued.
func (f *frontier) Seen(url string) bool {
	_, ok := f.seen[url]
	return ok
}

// MarkSeen registers a URL without queuing it, e.g. a redirect target that
// was recorded under its final address.
func (f *frontier) MarkSeen(url string) {
	if url != "" {
		f.seen[url] = struct{}{}
	}
}

// Len returns the number of entries awaiting dispatch.
func (f *frontier) Len() int {
	return f.size
}
