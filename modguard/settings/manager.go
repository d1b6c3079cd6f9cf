package settings

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Manager owns the in-memory settings document and keeps the Backend in sync with it.
//
// The in-memory document is the source of truth for the running process: mutations are applied
// first and then written through. A failed write is reported to the caller but not rolled back.
type Manager struct {
	Logger  *slog.Logger
	backend Backend

	// serializes writes to the backend, so documents land in mutation order
	saveLk sync.Mutex
	lk     sync.RWMutex
	doc    Document
}

// Status is the view of one community's configuration returned to the command surface.
type Status struct {
	CommunityID string               `json:"communityId"`
	Effective   Effective            `json:"effective"`
	Overrides   Overrides            `json:"overrides"`
	Channels    map[string]Overrides `json:"channels"`
}

func NewManager(backend Backend, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		Logger:  logger.With("component", "settings"),
		backend: backend,
		doc:     NewDocument(),
	}
}

// Load replaces the in-memory document with the stored one. If nothing is stored yet, the current
// (default) document is written out. On read failure the in-memory document is kept and a
// *PersistenceError is returned.
func (m *Manager) Load(ctx context.Context) error {
	doc, err := m.backend.Load(ctx)
	if errors.Is(err, ErrNoDocument) {
		m.Logger.Info("no stored settings found, writing defaults")
		return m.Flush(ctx)
	}
	if err != nil {
		m.Logger.Error("failed to load settings, continuing with in-memory settings", "err", err)
		return &PersistenceError{Op: "load", Err: err}
	}

	m.lk.Lock()
	m.doc = doc.normalize()
	n := len(m.doc) - 1
	m.lk.Unlock()
	m.Logger.Info("loaded settings", "communities", n)
	return nil
}

// Flush writes the current document to the backend.
func (m *Manager) Flush(ctx context.Context) error {
	return m.mutate(ctx, "flush", func(doc Document) error { return nil })
}

// Resolve computes the effective settings for a channel: the default layer, overlaid with the
// community's explicit settings, overlaid with the channel's explicit settings.
func (m *Manager) Resolve(communityID, channelID string) Effective {
	m.lk.RLock()
	defer m.lk.RUnlock()

	merged := m.doc[DefaultScopeKey].Overrides
	if cs, ok := m.doc[communityID]; ok && communityID != DefaultScopeKey {
		merged = merged.overlay(cs.Overrides)
		if ch, ok := cs.Channels[channelID]; ok && channelID != "" && ch != nil {
			merged = merged.overlay(*ch)
		}
	}
	return merged.effective()
}

// Set validates and stores a single setting at the given scope. A *ValidationError means nothing
// changed; a *PersistenceError means the change is live but was not durably stored.
func (m *Manager) Set(ctx context.Context, scope Scope, field Field, raw string) error {
	if err := scope.validate(); err != nil {
		return &ValidationError{Field: field, Value: scope.String(), Reason: err.Error()}
	}
	// validate against a scratch value before touching the document
	var scratch Overrides
	if err := field.apply(&scratch, raw); err != nil {
		return err
	}

	return m.mutate(ctx, "save", func(doc Document) error {
		target := doc.overridesFor(scope)
		*target = target.overlay(scratch)
		return nil
	})
}

func (m *Manager) Enable(ctx context.Context, communityID string) error {
	return m.Set(ctx, CommunityScope(communityID), FieldEnabled, "true")
}

func (m *Manager) Disable(ctx context.Context, communityID string) error {
	return m.Set(ctx, CommunityScope(communityID), FieldEnabled, "false")
}

// Reset removes the explicit settings for a scope. Resetting a community deletes its entry
// (including channel overrides), so it reverts entirely to the default layer. Resetting the
// default scope restores the built-in defaults.
func (m *Manager) Reset(ctx context.Context, scope Scope) error {
	if err := scope.validate(); err != nil {
		return &ValidationError{Field: "scope", Value: scope.String(), Reason: err.Error()}
	}
	return m.mutate(ctx, "save", func(doc Document) error {
		switch {
		case scope.IsDefault():
			doc[DefaultScopeKey].Overrides = DefaultOverrides()
		case scope.IsChannel():
			if cs, ok := doc[scope.Community]; ok {
				delete(cs.Channels, scope.Channel)
			}
		default:
			delete(doc, scope.Community)
		}
		return nil
	})
}

func (m *Manager) Status(communityID string) Status {
	st := Status{
		CommunityID: communityID,
		Effective:   m.Resolve(communityID, ""),
		Channels:    map[string]Overrides{},
	}

	m.lk.RLock()
	defer m.lk.RUnlock()
	if cs, ok := m.doc[communityID]; ok && communityID != DefaultScopeKey {
		st.Overrides = cs.Overrides.clone()
		for ch, o := range cs.Channels {
			if o != nil {
				st.Channels[ch] = o.clone()
			}
		}
	}
	return st
}

// Snapshot returns a deep copy of the current document.
func (m *Manager) Snapshot() Document {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.doc.clone()
}

func (m *Manager) mutate(ctx context.Context, op string, fn func(doc Document) error) error {
	m.saveLk.Lock()
	defer m.saveLk.Unlock()

	m.lk.Lock()
	if err := fn(m.doc); err != nil {
		m.lk.Unlock()
		return err
	}
	snap := m.doc.clone()
	m.lk.Unlock()

	if err := m.backend.Save(ctx, snap); err != nil {
		m.Logger.Error("failed to persist settings, in-memory settings remain active", "err", err)
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

// overridesFor returns the (possibly newly created) explicit overrides for a scope.
func (d Document) overridesFor(scope Scope) *Overrides {
	if scope.IsDefault() {
		return &d[DefaultScopeKey].Overrides
	}
	cs, ok := d[scope.Community]
	if !ok {
		cs = &CommunitySettings{Channels: map[string]*Overrides{}}
		d[scope.Community] = cs
	}
	if !scope.IsChannel() {
		return &cs.Overrides
	}
	ch, ok := cs.Channels[scope.Channel]
	if !ok || ch == nil {
		ch = &Overrides{}
		cs.Channels[scope.Channel] = ch
	}
	return ch
}
