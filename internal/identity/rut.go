package identity

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
)

const (
	minIdentifierBody = 10_000_000
	maxIdentifierBody = 25_000_000

	// MaxGenerationAttempts caps every retry-until-unique loop.
	MaxGenerationAttempts = 32
)

// CheckDigit computes the modulo-11 check digit of n: weights 2..7 cycle from
// the least significant digit, 11 maps to "0" and 10 to "K".
func CheckDigit(n int) string {
	sum, weight := 0, 2
	for ; n > 0; n /= 10 {
		sum += (n % 10) * weight
		if weight == 7 {
			weight = 2
		} else {
			weight++
		}
	}
	switch d := 11 - sum%11; d {
	case 11:
		return "0"
	case 10:
		return "K"
	default:
		return strconv.Itoa(d)
	}
}

// FormatIdentifier renders "{n}-{d}".
func FormatIdentifier(n int) string {
	return strconv.Itoa(n) + "-" + CheckDigit(n)
}

// ValidIdentifier reports whether s is "{digits}-{d}" with a matching check digit.
func ValidIdentifier(s string) bool {
	body, dv, ok := strings.Cut(s, "-")
	if !ok || body == "" || len(dv) != 1 {
		return false
	}
	for _, c := range body {
		if c < '0' || c > '9' {
			return false
		}
	}
	n, err := strconv.Atoi(body)
	if err != nil || n <= 0 {
		return false
	}
	return CheckDigit(n) == dv
}

// IdentifierSource yields candidate identifier numbers.
type IdentifierSource func() string

// RandomIdentifiers draws bodies uniformly from [10,000,000, 25,000,000].
// A nil r uses the global generator; a seeded r is serialized by a mutex.
func RandomIdentifiers(r *rand.Rand) IdentifierSource {
	const span = maxIdentifierBody - minIdentifierBody + 1
	if r == nil {
		return func() string { return FormatIdentifier(minIdentifierBody + rand.IntN(span)) }
	}
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		n := minIdentifierBody + r.IntN(span)
		mu.Unlock()
		return FormatIdentifier(n)
	}
}
