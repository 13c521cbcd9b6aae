package evaluator

import "github.com/coursewatch/coursewatch/internal/types"

// Result is the derived status of one tracked key for the current cycle.
type Result struct {
	Key    types.ResourceKey
	Status types.Status
}

// Diff compares the tracked keys against a closures snapshot. A key that is
// not listed in closed is open. Results keep the order of tracked.
func Diff(tracked []types.ResourceKey, closed types.ClosedSet) []Result {
	results := make([]Result, 0, len(tracked))
	for _, key := range tracked {
		status := types.StatusOpen
		if closed.Contains(key) {
			status = types.StatusClosed
		}
		results = append(results, Result{Key: key, Status: status})
	}
	return results
}

// OpenKeys returns the keys of open results, in order.
func OpenKeys(results []Result) []types.ResourceKey {
	var open []types.ResourceKey
	for _, r := range results {
		if r.Status == types.StatusOpen {
			open = append(open, r.Key)
		}
	}
	return open
}
