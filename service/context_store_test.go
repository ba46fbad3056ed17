package service

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/docchat-be/logger"
	"github.com/tieubaoca/docchat-be/types"
)

func TestContextStore_Loaded(t *testing.T) {
	store := NewContextStore("Accessible travel starts with planning.", types.DocumentInfo{Source: "guide.pdf"})

	text, err := store.Text()
	require.NoError(t, err)
	assert.Equal(t, "Accessible travel starts with planning.", text)
	assert.True(t, store.Loaded())
	assert.Equal(t, 39, store.Length())
	assert.Equal(t, "guide.pdf", store.Info().Source)
}

func TestContextStore_Empty(t *testing.T) {
	store := NewContextStore("", types.DocumentInfo{})

	_, err := store.Text()
	assert.ErrorIs(t, err, ErrContextNotLoaded)
	assert.False(t, store.Loaded())
	assert.Zero(t, store.Length())
	assert.Empty(t, store.Preview(500))
}

func TestContextStore_NilIsEmpty(t *testing.T) {
	var store *ContextStore

	_, err := store.Text()
	assert.ErrorIs(t, err, ErrContextNotLoaded)
	assert.False(t, store.Loaded())
	assert.Zero(t, store.Length())
	assert.Empty(t, store.Preview(10))
	assert.Equal(t, types.DocumentInfo{}, store.Info())
}

func TestContextStore_Preview(t *testing.T) {
	store := NewContextStore("áéíóú and more", types.DocumentInfo{})

	assert.Equal(t, "áéíóú...", store.Preview(5))
	assert.Equal(t, "áéíóú and more", store.Preview(100))
	assert.Equal(t, 14, store.Length())
}

func TestLoadContextStore_MissingFileLeavesStoreEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.pdf")

	store := LoadContextStore(NewPDFService(logger.NewNop()), path, logger.NewNop())

	assert.False(t, store.Loaded())
	assert.Equal(t, path, store.Info().Source)
}
