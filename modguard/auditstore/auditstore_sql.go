package auditstore

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// AuditRow is the database model for a Record.
type AuditRow struct {
	ID          uint   `gorm:"primarykey"`
	Type        string `gorm:"not null"`
	ActorID     string `gorm:"index:idx_audit_actor;not null"`
	CommunityID string `gorm:"index:idx_audit_actor;not null"`
	ModeratorID string
	Reason      string
	Duration    *int
	Timestamp   int64 `gorm:"index;not null"`
	CreatedAt   time.Time
}

func (AuditRow) TableName() string {
	return "audit_records"
}

func (r AuditRow) record() Record {
	return Record{
		Type:        r.Type,
		ActorID:     r.ActorID,
		ModeratorID: r.ModeratorID,
		CommunityID: r.CommunityID,
		Reason:      r.Reason,
		Duration:    r.Duration,
		Timestamp:   r.Timestamp,
	}
}

type SQLAuditStore struct {
	db *gorm.DB
}

var _ AuditStore = (*SQLAuditStore)(nil)

// NewSQLAuditStore migrates the audit table and returns a store backed by db.
func NewSQLAuditStore(db *gorm.DB) (*SQLAuditStore, error) {
	if err := db.AutoMigrate(&AuditRow{}); err != nil {
		return nil, err
	}
	return &SQLAuditStore{db: db}, nil
}

func (s *SQLAuditStore) Append(ctx context.Context, rec Record) error {
	row := AuditRow{
		Type:        rec.Type,
		ActorID:     rec.ActorID,
		CommunityID: rec.CommunityID,
		ModeratorID: rec.ModeratorID,
		Reason:      rec.Reason,
		Duration:    rec.Duration,
		Timestamp:   rec.Timestamp,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *SQLAuditStore) ListActor(ctx context.Context, communityID, actorID string, limit int) ([]Record, error) {
	q := s.db.WithContext(ctx).Model(&AuditRow{}).Where("actor_id = ?", actorID)
	if communityID != "" {
		q = q.Where("community_id = ?", communityID)
	}
	q = q.Order("timestamp DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []AuditRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}
