package auditstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/wardenbot/warden/util"
)

// FileAuditStore keeps the full record list in memory and rewrites it as a JSON array on every
// append, replacing the file atomically.
type FileAuditStore struct {
	Path string

	lk      sync.Mutex
	records []Record
	// set when the existing file could not be loaded; it is moved aside before the first write
	unreadable bool
}

var _ AuditStore = (*FileAuditStore)(nil)

// LoadError reports an audit log that exists but could not be read or parsed. The store returned
// alongside it is usable and starts empty.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading audit log %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// CorruptPath is where an unreadable audit log is moved before it gets replaced.
func CorruptPath(path string) string {
	return path + ".corrupt"
}

// NewFileAuditStore loads any existing records from path. A missing file is not an error. Any
// other failure returns an empty, usable store and a *LoadError.
func NewFileAuditStore(path string) (*FileAuditStore, error) {
	s := &FileAuditStore{Path: path, records: []Record{}}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err == nil {
		err = json.Unmarshal(raw, &s.records)
	}
	if err != nil {
		s.records = []Record{}
		s.unreadable = true
		return s, &LoadError{Path: path, Err: err}
	}
	return s, nil
}

// Append keeps the record in memory even when the write fails, so it is included in the next
// successful write.
func (s *FileAuditStore) Append(ctx context.Context, rec Record) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.records = append(s.records, rec)

	if s.unreadable {
		err := os.Rename(s.Path, CorruptPath(s.Path))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("moving unreadable audit log aside: %w", err)
		}
		s.unreadable = false
	}

	raw, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(s.Path, raw)
}

func (s *FileAuditStore) ListActor(ctx context.Context, communityID, actorID string, limit int) ([]Record, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	return filterActor(s.records, communityID, actorID, limit), nil
}
