package claimcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "ab12-CD34", want: "AB12CD34"},
		{in: "  ab12 cd34 ", want: "AB12CD34"},
		{in: "ab_12.cd/34!", want: "AB12CD34"},
		{in: "äb12", want: "B12"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	normalized := Normalize("ab12-CD34")
	assert.Equal(t, "AB12CD34", normalized)
	assert.Equal(t, "AB12-CD34", Format(normalized))
	assert.Equal(t, normalized, Normalize(Format(normalized)))
}

func TestFormatUnevenGroups(t *testing.T) {
	assert.Equal(t, "ABCD-EFGH-IJ", Format("abcdefghij"))
	assert.Equal(t, "ABC", Format("abc"))
	assert.Equal(t, "ABCD", Format("ab-cd"))
}

func TestIsWellFormed(t *testing.T) {
	assert.True(t, IsWellFormed("AB12-CD34"))
	assert.False(t, IsWellFormed("AB12-CD3"))
	assert.False(t, IsWellFormed("----------"))
}

func TestGenerate(t *testing.T) {
	code, err := Generate(DefaultLength)
	require.NoError(t, err)
	assert.Len(t, code, DefaultLength)
	assert.Equal(t, code, Normalize(code))

	short, err := Generate(3)
	require.NoError(t, err)
	assert.Len(t, short, DefaultLength)

	other, err := Generate(DefaultLength)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}
