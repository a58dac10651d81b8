package pipeline

// recentResults remembers the results of the last n observations that
// carried a client ID, evicting the oldest first.
type recentResults struct {
	ids     []string
	next    int
	results map[string]Result
}

func newRecentResults(n int) *recentResults {
	if n <= 0 {
		return nil
	}
	return &recentResults{ids: make([]string, n), results: make(map[string]Result, n)}
}

func (r *recentResults) get(id string) (Result, bool) {
	if r == nil {
		return Result{}, false
	}
	res, ok := r.results[id]
	return res, ok
}

func (r *recentResults) put(id string, res Result) {
	if r == nil {
		return
	}
	if old := r.ids[r.next]; old != "" {
		delete(r.results, old)
	}
	r.ids[r.next] = id
	r.results[id] = res
	r.next = (r.next + 1) % len(r.ids)
}
