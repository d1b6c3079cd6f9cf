package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/wardenbot/warden/util"
)

// FileBackend stores the settings document as indented JSON on local disk. Writes go to a
// temporary file in the same directory which is then renamed over the target.
type FileBackend struct {
	Path string
}

var _ Backend = (*FileBackend)(nil)

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

func (b *FileBackend) Load(ctx context.Context) (Document, error) {
	raw, err := os.ReadFile(b.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", b.Path, err)
	}
	return doc, nil
}

func (b *FileBackend) Save(ctx context.Context, doc Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(b.Path, raw)
}
