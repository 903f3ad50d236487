package harness

import (
	"github.com/roach88/atomicfu/internal/store"
	"github.com/roach88/atomicfu/internal/transform"
)

// Result is the outcome of one scenario.
type Result struct {
	Pass bool `json:"pass"`

	// Output is the rendered unit, compared against the golden file.
	// It stays empty when the pass failed.
	Output string `json:"output,omitempty"`

	Code    string          `json:"code,omitempty"`
	Failure string          `json:"failure,omitempty"`
	Stats   transform.Stats `json:"stats"`
	Run     store.Run       `json:"run"`

	Errors []string `json:"errors,omitempty"`
}

func newResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

func (r *Result) fail(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}
