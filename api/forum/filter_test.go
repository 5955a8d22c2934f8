package forum

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		err  error
	}{
		{"plain", "hello there", "hello there", nil},
		{"punctuation kept", "this is a kerfuffle!", "this is a kerfuffle!", nil},
		{"masked word", "what a Kerfuffle here", "what a **** here", nil},
		{"multiline", "fornax\nand SHARBERT", "****\nand ****", nil},
		{"trimmed", "  spaced  ", "spaced", nil},
		{"empty", "   ", "", ErrEmptyBody},
		{"too long", strings.Repeat("é", MaxPostLength+1), "", ErrBodyTooLong},
		{"at limit", strings.Repeat("é", MaxPostLength), strings.Repeat("é", MaxPostLength), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := cleanBody(tc.in)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCleanTitle(t *testing.T) {
	_, err := cleanTitle(" ")
	assert.ErrorIs(t, err, ErrEmptyTitle)

	_, err = cleanTitle(strings.Repeat("a", MaxTitleLength+1))
	assert.ErrorIs(t, err, ErrTitleTooLong)

	got, err := cleanTitle("  Welcome  ")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", got)
}
