package settings

import (
	"fmt"
)

type Action string

const (
	ActionMute Action = "mute"
	ActionWarn Action = "warn"
)

// DefaultScopeKey is the top-level document key holding the global defaults.
const DefaultScopeKey = "default"

// Overrides is a sparse set of settings. A nil field is inherited from the enclosing scope.
type Overrides struct {
	Enabled             *bool   `json:"enabled,omitempty"`
	MessagesPerInterval *int    `json:"messagesPerInterval,omitempty"`
	IntervalSeconds     *int    `json:"intervalSeconds,omitempty"`
	WarningThreshold    *int    `json:"warningThreshold,omitempty"`
	MuteDurationMinutes *int    `json:"muteDurationMinutes,omitempty"`
	Action              *Action `json:"action,omitempty"`
	ClearMessagesOnMute *bool   `json:"clearMessagesOnMute,omitempty"`
}

// CommunitySettings is one top-level entry of the settings document: the community (or default)
// overrides, plus per-channel overrides.
type CommunitySettings struct {
	Overrides
	Channels map[string]*Overrides `json:"channels"`
}

// Document is the persisted form of all settings, keyed by community ID (and DefaultScopeKey).
type Document map[string]*CommunitySettings

// Effective is the fully merged configuration for a community/channel pair.
type Effective struct {
	Enabled             bool   `json:"enabled"`
	MessagesPerInterval int    `json:"messagesPerInterval"`
	IntervalSeconds     int    `json:"intervalSeconds"`
	WarningThreshold    int    `json:"warningThreshold"`
	MuteDurationMinutes int    `json:"muteDurationMinutes"`
	Action              Action `json:"action"`
	ClearMessagesOnMute bool   `json:"clearMessagesOnMute"`
}

func ptr[T any](v T) *T {
	return &v
}

// Built-in defaults, used when the document has no usable "default" entry.
func DefaultOverrides() Overrides {
	return Overrides{
		Enabled:             ptr(false),
		MessagesPerInterval: ptr(1),
		IntervalSeconds:     ptr(3),
		WarningThreshold:    ptr(3),
		MuteDurationMinutes: ptr(5),
		Action:              ptr(ActionMute),
		ClearMessagesOnMute: ptr(false),
	}
}

func NewDocument() Document {
	return Document{
		DefaultScopeKey: &CommunitySettings{
			Overrides: DefaultOverrides(),
			Channels:  map[string]*Overrides{},
		},
	}
}

// normalize fills in a missing default entry and missing channel maps, so a hand-edited or
// partially written document is still usable.
func (d Document) normalize() Document {
	if d == nil {
		return NewDocument()
	}
	def, ok := d[DefaultScopeKey]
	if !ok || def == nil {
		def = &CommunitySettings{}
		d[DefaultScopeKey] = def
	}
	// every default field must be set, since it is the base layer of resolution
	def.Overrides = DefaultOverrides().overlay(def.Overrides)
	for k, cs := range d {
		if cs == nil {
			delete(d, k)
			continue
		}
		if cs.Channels == nil {
			cs.Channels = map[string]*Overrides{}
		}
	}
	return d
}

// clone deep-copies the document so callers never share mutable pointers with the Manager.
func (d Document) clone() Document {
	out := make(Document, len(d))
	for k, cs := range d {
		c := &CommunitySettings{
			Overrides: cs.Overrides.clone(),
			Channels:  make(map[string]*Overrides, len(cs.Channels)),
		}
		for ch, o := range cs.Channels {
			if o == nil {
				continue
			}
			oc := o.clone()
			c.Channels[ch] = &oc
		}
		out[k] = c
	}
	return out
}

func cloneP[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (o Overrides) clone() Overrides {
	return Overrides{
		Enabled:             cloneP(o.Enabled),
		MessagesPerInterval: cloneP(o.MessagesPerInterval),
		IntervalSeconds:     cloneP(o.IntervalSeconds),
		WarningThreshold:    cloneP(o.WarningThreshold),
		MuteDurationMinutes: cloneP(o.MuteDurationMinutes),
		Action:              cloneP(o.Action),
		ClearMessagesOnMute: cloneP(o.ClearMessagesOnMute),
	}
}

// overlay returns a copy of o with every field explicitly set in top replacing the value in o.
func (o Overrides) overlay(top Overrides) Overrides {
	out := o.clone()
	if top.Enabled != nil {
		out.Enabled = cloneP(top.Enabled)
	}
	if top.MessagesPerInterval != nil {
		out.MessagesPerInterval = cloneP(top.MessagesPerInterval)
	}
	if top.IntervalSeconds != nil {
		out.IntervalSeconds = cloneP(top.IntervalSeconds)
	}
	if top.WarningThreshold != nil {
		out.WarningThreshold = cloneP(top.WarningThreshold)
	}
	if top.MuteDurationMinutes != nil {
		out.MuteDurationMinutes = cloneP(top.MuteDurationMinutes)
	}
	if top.Action != nil {
		out.Action = cloneP(top.Action)
	}
	if top.ClearMessagesOnMute != nil {
		out.ClearMessagesOnMute = cloneP(top.ClearMessagesOnMute)
	}
	return out
}

// IsEmpty reports whether no field is explicitly set.
func (o Overrides) IsEmpty() bool {
	return o == Overrides{}
}

// effective converts a fully populated set of overrides to an Effective value. Any field which is
// still nil (which should not happen after normalize) falls back to the built-in default.
func (o Overrides) effective() Effective {
	full := DefaultOverrides().overlay(o)
	return Effective{
		Enabled:             *full.Enabled,
		MessagesPerInterval: *full.MessagesPerInterval,
		IntervalSeconds:     *full.IntervalSeconds,
		WarningThreshold:    *full.WarningThreshold,
		MuteDurationMinutes: *full.MuteDurationMinutes,
		Action:              *full.Action,
		ClearMessagesOnMute: *full.ClearMessagesOnMute,
	}
}

// Validate checks the invariant that every numeric field is positive when enabled.
func (e Effective) Validate() error {
	if !e.Enabled {
		return nil
	}
	if e.MessagesPerInterval <= 0 || e.IntervalSeconds <= 0 || e.WarningThreshold <= 0 || e.MuteDurationMinutes <= 0 {
		return fmt.Errorf("enabled settings have non-positive numeric field: %+v", e)
	}
	if e.Action != ActionMute && e.Action != ActionWarn {
		return fmt.Errorf("unknown mitigation action: %q", e.Action)
	}
	return nil
}
