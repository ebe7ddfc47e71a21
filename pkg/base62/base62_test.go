package base62

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []string{
		"0", "1", "61", "62", "3843", "3844",
		"123456789",
		"9223372036854775807",          // max int64
		"18446744073709551615",         // max uint64
		"170141183460469231731687303",  // well past 64 bits
		"1719923456789000000000000000", // timestamp * saltRange scale
	}

	for _, raw := range values {
		v, ok := new(big.Int).SetString(raw, 10)
		require.True(t, ok)

		for _, minLength := range []int{0, 1, 6, 10} {
			code := Encode(v, minLength)
			decoded, err := Decode(code)
			require.NoError(t, err)
			assert.Zero(t, v.Cmp(decoded), "round trip failed for %s with minLength %d", raw, minLength)
		}
	}
}

func TestEncodeMinimumLength(t *testing.T) {
	for _, raw := range []string{"0", "1", "61", "3844", "18446744073709551615"} {
		v, _ := new(big.Int).SetString(raw, 10)
		for _, minLength := range []int{1, 4, 6, 10} {
			assert.GreaterOrEqual(t, len(Encode(v, minLength)), minLength)
		}
	}
}

func TestEncodeZero(t *testing.T) {
	assert.Equal(t, "000000", Encode(big.NewInt(0), 6))
	assert.Equal(t, "", Encode(big.NewInt(0), 0))
}

func TestEncodeAlphabetClosure(t *testing.T) {
	v, _ := new(big.Int).SetString("18446744073709551615", 10)
	code := Encode(v, 6)
	for _, c := range code {
		assert.True(t, strings.ContainsRune(Alphabet, c), "character %q outside alphabet", c)
	}
}

func TestEncodeKnownValues(t *testing.T) {
	assert.Equal(t, "1", Encode(big.NewInt(1), 0))
	assert.Equal(t, "z", Encode(big.NewInt(35), 0))
	assert.Equal(t, "A", Encode(big.NewInt(36), 0))
	assert.Equal(t, "Z", Encode(big.NewInt(61), 0))
	assert.Equal(t, "10", Encode(big.NewInt(62), 0))
}

func TestDecodeInvalidCharacter(t *testing.T) {
	for _, code := range []string{"abc_", "ab-c", "ab c", "abç"} {
		_, err := Decode(code)
		assert.ErrorIs(t, err, ErrInvalidCharacter, "code %q", code)
	}
}

func TestFromUUIDDeterministic(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	first := FromUUID(id)
	second := FromUUID(id)
	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, len(first), DefaultCodeLength)
	assert.True(t, ValidateCode(first))

	other := FromUUID(uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8"))
	assert.NotEqual(t, first, other)
}

func TestFromIdentifier(t *testing.T) {
	code, err := FromIdentifier("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	require.NoError(t, err)
	assert.Equal(t, FromUUID(uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")), code)

	_, err = FromIdentifier("short")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = FromIdentifier("not-hexadecimal-zzzz")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestFromTimestampDiverges(t *testing.T) {
	const trials = 1000

	seen := make(map[string]int)
	for i := 0; i < trials; i++ {
		code := FromTimestamp()
		require.True(t, ValidateCode(code), "generated code %q invalid", code)
		seen[code]++
	}

	// Same-millisecond calls collide only on a salt match; across 1000
	// trials more than a couple of collisions means something is broken.
	assert.GreaterOrEqual(t, len(seen), trials-2)
}

func TestValidateCodeBoundaries(t *testing.T) {
	assert.False(t, ValidateCode("abc"))          // length 3
	assert.False(t, ValidateCode("abcdefghijk"))  // length 11
	assert.True(t, ValidateCode("abcd"))          // length 4
	assert.True(t, ValidateCode("abcDE12345"))    // length 10
	assert.False(t, ValidateCode("ab_d"))
	assert.False(t, ValidateCode("ab-d"))
	assert.False(t, ValidateCode(""))
}

func TestNormalizeCustomCode(t *testing.T) {
	code, err := NormalizeCustomCode("  myCode1 ")
	require.NoError(t, err)
	assert.Equal(t, "myCode1", code, "case must be preserved")

	_, err = NormalizeCustomCode("ab")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = NormalizeCustomCode("bad_code")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestGenerateUniqueCodeRetriesCollisions(t *testing.T) {
	calls := 0
	exists := func(_ context.Context, _ string) (bool, error) {
		calls++
		return calls <= 2, nil
	}

	code, err := GenerateUniqueCode(context.Background(), exists, 10)
	require.NoError(t, err)
	assert.True(t, ValidateCode(code))
	assert.Equal(t, 3, calls, "should return on the third attempt")
}

func TestGenerateUniqueCodeExhaustsAttempts(t *testing.T) {
	calls := 0
	exists := func(_ context.Context, _ string) (bool, error) {
		calls++
		return true, nil
	}

	_, err := GenerateUniqueCode(context.Background(), exists, 5)
	assert.ErrorIs(t, err, ErrGenerationExhausted)
	assert.Equal(t, 5, calls)
}

func TestGenerateUniqueCodePropagatesCheckError(t *testing.T) {
	boom := errors.New("storage down")
	exists := func(_ context.Context, _ string) (bool, error) {
		return false, boom
	}

	_, err := GenerateUniqueCode(context.Background(), exists, 3)
	assert.ErrorIs(t, err, boom)
}

func TestGenerateUniqueCodeHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exists := func(_ context.Context, _ string) (bool, error) {
		return true, nil
	}

	_, err := GenerateUniqueCode(ctx, exists, 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCapacity(t *testing.T) {
	total, threshold := Capacity(6)

	wantTotal, _ := new(big.Int).SetString("56800235584", 10) // 62^6
	assert.Zero(t, total.Cmp(wantTotal))

	// Integer sqrt: threshold^2 <= total < (threshold+1)^2.
	sq := new(big.Int).Mul(threshold, threshold)
	assert.LessOrEqual(t, sq.Cmp(total), 0)
	next := new(big.Int).Add(threshold, big.NewInt(1))
	next.Mul(next, next)
	assert.Positive(t, next.Cmp(total))
}
