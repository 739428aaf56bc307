// Package batch holds per-passage outcomes for bulk loads and deletes.
package batch

// Result is the outcome for one passage. Err is nil on success.
type Result struct {
	ID  string
	Err error
}

func Succeeded(id string) Result { return Result{ID: id} }

func Failed(id string, err error) Result { return Result{ID: id, Err: err} }

func (r Result) OK() bool { return r.Err == nil }

// FailAll gives every id the same error, for batch-level rejections.
func FailAll(ids []string, err error) []Result {
	out := make([]Result, len(ids))
	for i, id := range ids {
		out[i] = Failed(id, err)
	}
	return out
}

// Summary counts a batch's outcomes.
type Summary struct {
	OK     int
	Failed int
}

func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		if r.OK() {
			s.OK++
		} else {
			s.Failed++
		}
	}
	return s
}
