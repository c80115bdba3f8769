package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutObjectStoresCopy(t *testing.T) {
	t.Parallel()

	b := NewBlobStore()
	data := []byte("<html>page</html>")
	uri, err := b.PutObject(context.Background(), "pages/example.com/1.html", "text/html", data)
	require.NoError(t, err)
	require.Equal(t, "mem://pages/example.com/1.html", uri)

	// Mutating the caller's slice must not affect the stored copy.
	data[0] = 'X'
	stored, ok := b.Object("pages/example.com/1.html")
	require.True(t, ok)
	require.Equal(t, "<html>page</html>", string(stored))
	require.Equal(t, 1, b.Len())

	_, ok = b.Object("missing")
	require.False(t, ok)
}
