package reldb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRegisterAndResolve(t *testing.T) {
	dir := t.TempDir()
	catalog := NewCatalog()
	bp := NewBufferPool(10, catalog, time.Second)
	hf, err := NewHeapFile(filepath.Join(dir, "t.dat"), testDesc(), bp)
	require.NoError(t, err)
	catalog.AddTable("t", hf, "")

	got, err := catalog.GetTable("t")
	require.NoError(t, err)
	assert.Equal(t, hf, got)

	byId, err := catalog.ResolveTableId(hf.TableId())
	require.NoError(t, err)
	assert.Equal(t, hf, byId)

	_, err = catalog.GetTable("missing")
	require.Error(t, err)
}

func TestCatalogPrimaryKey(t *testing.T) {
	dir := t.TempDir()
	catalog := NewCatalog()
	bp := NewBufferPool(10, catalog, time.Second)
	hf, err := NewHeapFile(filepath.Join(dir, "t.dat"), testDesc(), bp)
	require.NoError(t, err)
	catalog.AddTable("t", hf, "a")

	pk, err := catalog.PrimaryKey("t")
	require.NoError(t, err)
	assert.Equal(t, "a", pk)

	_, err = catalog.PrimaryKey("missing")
	require.Error(t, err)
}

func TestCatalogEstimateJoinCardinality(t *testing.T) {
	catalog := NewCatalog()
	assert.Equal(t, 100, catalog.EstimateJoinCardinality(100, 10, true, true))
	assert.Greater(t, catalog.EstimateJoinCardinality(10, 10, false, false), 0)
}
