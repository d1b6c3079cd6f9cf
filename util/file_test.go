package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteFileAtomic(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	assert.NoError(WriteFileAtomic(path, []byte(`{"a":1}`)))
	assert.NoError(WriteFileAtomic(path, []byte(`{"a":2}`)))
	raw, err := os.ReadFile(path)
	assert.NoError(err)
	assert.Equal(`{"a":2}`, string(raw))

	// no temporary files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	assert.NoError(err)
	assert.Len(entries, 1)
}
