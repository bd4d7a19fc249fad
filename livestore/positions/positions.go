package positions

import (
	"fmt"
	"strings"
)

// alphabet is the digit set for position keys, in ASCII (and therefore
// lexicographic) order.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const base = len(alphabet)

// Compare returns the sign of the lexicographic ordering of a and b:
// -1 if a < b, 0 if equal, +1 if a > b. The empty string sorts before
// everything; Between handles an empty upper bound separately, as
// unbounded above.
func Compare(a, b string) int {
	return strings.Compare(a, b)
}

// First returns the key minted into an empty list. It is a constant so
// that independent replicas inserting into the same empty list produce
// the same key.
func First() string {
	mid, _ := Between("", "")
	return mid
}

// Between returns a key strictly greater than before and strictly less
// than after. An empty bound means unbounded on that side. It fails if
// before >= after (with both present) or if either bound is malformed.
func Between(before, after string) (string, error) {
	if err := checkKey(before); err != nil {
		return "", fmt.Errorf("invalid lower bound: %w", err)
	}
	if err := checkKey(after); err != nil {
		return "", fmt.Errorf("invalid upper bound: %w", err)
	}
	if before != "" && after != "" && Compare(before, after) >= 0 {
		return "", fmt.Errorf("bounds out of order: %q >= %q", before, after)
	}
	return midpoint(before, after), nil
}

// checkKey rejects keys that would break density: a trailing minimum
// digit, or a character outside the alphabet.
func checkKey(key string) error {
	if key == "" {
		return nil
	}
	if key[len(key)-1] == alphabet[0] {
		return fmt.Errorf("key %q ends in the minimum digit", key)
	}
	for i := 0; i < len(key); i++ {
		if digit(key[i]) < 0 {
			return fmt.Errorf("key %q has character %q outside the alphabet", key, key[i])
		}
	}
	return nil
}

func digit(c byte) int {
	return strings.IndexByte(alphabet, c)
}

// midpoint returns a digit string strictly between a and b, where a may
// be empty (meaning zero) and b may be empty (meaning one, exclusive
// top). Both are interpreted as fractions 0.d1d2... in base 62.
// Preconditions (checked by Between): a < b when both present, and
// neither ends in the minimum digit.
func midpoint(a, b string) string {
	if b != "" {
		// Consume the common prefix; the midpoint shares it.
		n := 0
		for n < len(a) && n < len(b) && a[n] == b[n] {
			n++
		}
		if n > 0 {
			return b[:n] + midpoint(a[n:], b[n:])
		}
	}
	// First digits differ (or a bound is exhausted).
	da := 0
	if a != "" {
		da = digit(a[0])
	}
	db := base
	if b != "" {
		db = digit(b[0])
	}
	if db-da > 1 {
		return string(alphabet[(da+db)/2])
	}
	if db == da {
		// a is exhausted and b starts with the minimum digit: keep that
		// digit and recurse below the rest of b (never empty, since b
		// cannot end in the minimum digit).
		return string(alphabet[db]) + midpoint("", b[1:])
	}
	// Adjacent digits: fix the lower digit and recurse into the open
	// interval (a-without-first-digit, 1).
	rest := ""
	if a != "" {
		rest = a[1:]
	}
	return string(alphabet[da]) + midpoint(rest, "")
}
