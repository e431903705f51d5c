package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuery marks a query rejected by Validate.
var ErrInvalidQuery = errors.New("invalid query")

// AnalogyQuery asks "A is to B as C is to ?".
type AnalogyQuery struct {
	A    string `json:"a"`
	B    string `json:"b"`
	C    string `json:"c"`
	TopK int    `json:"top_k,omitempty"`
}

// Validate ensures all three words are present and normalizes TopK.
// A TopK of zero is left for the engine to default.
func (q *AnalogyQuery) Validate() error {
	q.A = strings.TrimSpace(q.A)
	q.B = strings.TrimSpace(q.B)
	q.C = strings.TrimSpace(q.C)
	var missing []string
	for _, p := range []struct{ name, value string }{{"A", q.A}, {"B", q.B}, {"C", q.C}} {
		if p.value == "" {
			missing = append(missing, p.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing parameter(s): %s", ErrInvalidQuery, strings.Join(missing, ", "))
	}
	if q.TopK < 0 {
		q.TopK = 0
	}
	if q.TopK > 100 {
		q.TopK = 100
	}
	return nil
}

// NeighborsQuery asks for the words closest to Word.
type NeighborsQuery struct {
	Word string `json:"word"`
	N    int    `json:"n,omitempty"`
}

// Validate ensures the word is present and sets the default count.
func (q *NeighborsQuery) Validate() error {
	q.Word = strings.TrimSpace(q.Word)
	if q.Word == "" {
		return fmt.Errorf("%w: word cannot be empty", ErrInvalidQuery)
	}
	if q.N <= 0 {
		q.N = 10
	}
	if q.N > 100 {
		q.N = 100
	}
	return nil
}
