package analogy

import (
	"fmt"
	"strings"
)

// UnknownWordError names the operand words missing from the vocabulary, in
// argument order and as the caller spelled them.
type UnknownWordError struct {
	Words []string
	// Suggestions maps an unknown word to close vocabulary words, when available.
	Suggestions map[string][]string
}

func (e *UnknownWordError) Error() string {
	return fmt.Sprintf("unknown word(s): %s", strings.Join(e.Words, ", "))
}
