// Package base62 implements short code generation and base62 numeric
// encoding for the link shortener. All arithmetic uses big integers because
// intermediate values (millisecond timestamps scaled by the salt range, or
// 62^10 capacity figures) overflow a signed 64-bit integer.
package base62

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Alphabet is the 62-symbol code alphabet: digits first, then lowercase,
// then uppercase. Symbol order defines positional value for Encode/Decode.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const (
	base = 62

	// MinCodeLength and MaxCodeLength bound both generated and custom codes.
	MinCodeLength = 4
	MaxCodeLength = 10

	// DefaultCodeLength is the minimum length of generated codes.
	DefaultCodeLength = 6

	// DefaultMaxAttempts is the retry budget for collision-checked issuance.
	DefaultMaxAttempts = 10

	// saltRange is the random component folded into the timestamp strategy.
	// Two calls in the same millisecond collide with probability 1/saltRange.
	saltRange = 100000

	// retryDelay guarantees the next attempt lands in a different millisecond.
	retryDelay = 2 * time.Millisecond
)

var (
	// ErrInvalidCharacter is returned by Decode for symbols outside the alphabet.
	ErrInvalidCharacter = errors.New("base62: invalid character")

	// ErrInvalidFormat is returned for codes failing length or alphabet validation.
	ErrInvalidFormat = errors.New("base62: invalid code format")

	// ErrGenerationExhausted is returned when collision-checked issuance runs
	// out of attempts. This is fatal for the caller and worth alerting on:
	// it indicates a near-full code space or a broken existence check.
	ErrGenerationExhausted = errors.New("base62: code generation attempts exhausted")
)

var bigBase = big.NewInt(base)

// Encode renders v in base62, most significant symbol first, left-padded
// with the alphabet's zero symbol up to minLength. Zero encodes as
// minLength zero symbols. v must be non-negative.
func Encode(v *big.Int, minLength int) string {
	var sb []byte

	n := new(big.Int).Set(v)
	rem := new(big.Int)
	for n.Sign() > 0 {
		n.QuoRem(n, bigBase, rem)
		sb = append(sb, Alphabet[rem.Int64()])
	}

	for len(sb) < minLength {
		sb = append(sb, Alphabet[0])
	}

	// Symbols were produced least significant first.
	for i, j := 0, len(sb)-1; i < j; i, j = i+1, j-1 {
		sb[i], sb[j] = sb[j], sb[i]
	}
	return string(sb)
}

// Decode is the inverse of Encode: it folds the code left to right into a
// big integer. Leading zero symbols are ignored numerically, so
// Decode(Encode(v, L)) == v for any padding length L.
func Decode(code string) (*big.Int, error) {
	result := new(big.Int)
	for _, c := range code {
		idx := strings.IndexRune(Alphabet, c)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCharacter, c)
		}
		result.Mul(result, bigBase)
		result.Add(result, big.NewInt(int64(idx)))
	}
	return result, nil
}

// FromUUID deterministically derives a code from a UUID by taking the first
// 16 hex characters (64 bits) of its canonical representation. The same
// UUID always yields the same code. No collision avoidance: do not use for
// issuance against concurrent generation from different sources.
func FromUUID(id uuid.UUID) string {
	hexStr := strings.ReplaceAll(id.String(), "-", "")
	v, _ := new(big.Int).SetString(hexStr[:16], 16)
	return Encode(v, DefaultCodeLength)
}

// FromIdentifier is the generic form of FromUUID for any unique identifier
// with a hexadecimal representation (dashes are stripped first). Identifiers
// shorter than 16 hex characters or containing non-hex characters are rejected.
func FromIdentifier(id string) (string, error) {
	hexStr := strings.ReplaceAll(strings.TrimSpace(id), "-", "")
	if len(hexStr) < 16 {
		return "", fmt.Errorf("%w: identifier too short", ErrInvalidFormat)
	}
	v, ok := new(big.Int).SetString(hexStr[:16], 16)
	if !ok {
		return "", fmt.Errorf("%w: identifier is not hexadecimal", ErrInvalidFormat)
	}
	return Encode(v, DefaultCodeLength), nil
}

// FromTimestamp generates a code from the current time in milliseconds
// scaled by the salt range plus a uniformly random salt. Calls in different
// milliseconds never collide; calls within the same millisecond collide
// only on a salt match (1 in 100000). This is the default issuance strategy.
func FromTimestamp() string {
	v := new(big.Int).SetInt64(time.Now().UnixMilli())
	v.Mul(v, big.NewInt(saltRange))
	v.Add(v, big.NewInt(rand.Int64N(saltRange)))
	return Encode(v, DefaultCodeLength)
}

// ValidateCode reports whether code is 4-10 characters of the base62 alphabet.
func ValidateCode(code string) bool {
	if len(code) < MinCodeLength || len(code) > MaxCodeLength {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(Alphabet, c) {
			return false
		}
	}
	return true
}

// NormalizeCustomCode trims surrounding whitespace from a user-supplied code
// and validates the result. Case is preserved: lower-casing would throw away
// half the combination space.
func NormalizeCustomCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if !ValidateCode(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, code)
	}
	return code, nil
}

// ExistsFunc reports whether a candidate code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// GenerateUniqueCode issues a collision-checked code: it generates via the
// timestamp strategy, asks exists, and returns the first free candidate.
// Between attempts it sleeps briefly so the retry lands in a fresh
// millisecond. After maxAttempts (DefaultMaxAttempts when <= 0) it returns
// ErrGenerationExhausted.
func GenerateUniqueCode(ctx context.Context, exists ExistsFunc, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		code := FromTimestamp()
		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code existence: %w", err)
		}
		if !taken {
			return code, nil
		}
	}

	return "", fmt.Errorf("%w after %d attempts", ErrGenerationExhausted, maxAttempts)
}

// Capacity returns the total number of codes of the given length (62^length)
// and the approximate 50%-collision threshold sqrt(62^length), the birthday
// bound. Diagnostic helper for capacity planning, not used at runtime.
func Capacity(length int) (total, threshold *big.Int) {
	total = new(big.Int).Exp(bigBase, big.NewInt(int64(length)), nil)
	threshold = new(big.Int).Sqrt(total)
	return total, threshold
}
