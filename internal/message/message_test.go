package message

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewShortIsUnchanged(t *testing.T) {
	assert.Equal(t, "hello", Preview("hello", 10))
	assert.Equal(t, "hello", Preview("hello", 5))
}

func TestPreviewCutsOnRuneBoundary(t *testing.T) {
	s := "añb€c" // a(1) ñ(2) b(1) €(3) c(1)
	for n := 0; n < len(s); n++ {
		got := Preview(s, n)
		require.True(t, utf8.ValidString(got), "n=%d got %q", n, got)
		assert.LessOrEqual(t, len(got)-len("…"), n)
	}
	assert.Equal(t, "a…", Preview(s, 2))
	assert.Equal(t, "añb…", Preview(s, 5))
}

func TestValidateRequiresOrigin(t *testing.T) {
	st := ClipboardState{Content: "x"}
	assert.ErrorIs(t, st.Validate(), ErrMalformed)
	st.OriginHost = "a"
	assert.NoError(t, st.Validate())
}
