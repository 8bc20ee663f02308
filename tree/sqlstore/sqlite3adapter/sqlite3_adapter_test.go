package sqlite3adapter

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AfafAlalwan/arch-forest/tree"
	"github.com/AfafAlalwan/arch-forest/tree/sqlstore"
	"github.com/AfafAlalwan/arch-forest/tree/treetest"
)

func TestSQLite3Store(t *testing.T) {
	ctx := context.Background()
	a, err := New(filepath.Join(t.TempDir(), "forests.db"), 1)
	require.NoError(t, err)
	assert.Equal(t, "?", a.Placeholder(3))

	fs, err := sqlstore.Open(ctx, a, "f1")
	require.NoError(t, err)
	defer fs.Close(ctx)

	h, err := fs.Header(ctx)
	require.NoError(t, err)
	assert.Nil(t, h)

	f := treetest.Forest(rand.New(rand.NewSource(4)), 3, 12, 3)
	require.NoError(t, tree.SaveForest(ctx, fs, f))
	require.NoError(t, tree.SaveForest(ctx, fs, f))
	got, err := tree.LoadForest(ctx, fs)
	require.NoError(t, err)
	assert.Equal(t, f.Header(), got.Header())
	for i, tr := range f.Trees {
		assert.Equal(t, tr.String(), got.Trees[i].String())
	}

	other, err := sqlstore.Open(ctx, FromDB(a.DB()), "f2")
	require.NoError(t, err)
	h, err = other.Header(ctx)
	require.NoError(t, err)
	assert.Nil(t, h)
}
