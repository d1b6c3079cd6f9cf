package auditstore

import (
	"context"
	"sync"
)

type MemAuditStore struct {
	lk      sync.Mutex
	Records []Record
}

var _ AuditStore = (*MemAuditStore)(nil)

func NewMemAuditStore() *MemAuditStore {
	return &MemAuditStore{}
}

func (s *MemAuditStore) Append(ctx context.Context, rec Record) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.Records = append(s.Records, rec)
	return nil
}

func (s *MemAuditStore) ListActor(ctx context.Context, communityID, actorID string, limit int) ([]Record, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	return filterActor(s.Records, communityID, actorID, limit), nil
}

func (s *MemAuditStore) All() []Record {
	s.lk.Lock()
	defer s.lk.Unlock()
	out := make([]Record, len(s.Records))
	copy(out, s.Records)
	return out
}
