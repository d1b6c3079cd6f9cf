package settings

import (
	"context"
	"errors"
	"sync"
)

// Backend is durable storage for the whole settings document. Save must replace the stored
// document atomically (no partial writes).
type Backend interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
}

// ErrNoDocument may be returned by Backend.Load when nothing has been stored yet.
var ErrNoDocument = errors.New("no settings document stored")

// MemBackend keeps the document in process memory. Intended for tests and ephemeral runs.
type MemBackend struct {
	lk    sync.Mutex
	doc   Document
	Saves int
	// if set, returned from every Save call
	SaveErr error
}

var _ Backend = (*MemBackend)(nil)

func NewMemBackend() *MemBackend {
	return &MemBackend{}
}

func (b *MemBackend) Load(ctx context.Context) (Document, error) {
	b.lk.Lock()
	defer b.lk.Unlock()
	if b.doc == nil {
		return nil, ErrNoDocument
	}
	return b.doc.clone(), nil
}

func (b *MemBackend) Save(ctx context.Context, doc Document) error {
	b.lk.Lock()
	defer b.lk.Unlock()
	if b.SaveErr != nil {
		return b.SaveErr
	}
	b.doc = doc.clone()
	b.Saves++
	return nil
}
