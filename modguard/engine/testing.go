package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wardenbot/warden/modguard/auditstore"
	"github.com/wardenbot/warden/modguard/countstore"
	"github.com/wardenbot/warden/modguard/platform"
	"github.com/wardenbot/warden/modguard/presence"
	"github.com/wardenbot/warden/modguard/ratestore"
	"github.com/wardenbot/warden/modguard/schedule"
	"github.com/wardenbot/warden/modguard/settings"
)

// PlatformCall is one recorded call against a MockPlatform.
type PlatformCall struct {
	Method    string
	Community string
	Channel   string
	Actor     string
	Text      string
	Duration  time.Duration
}

// MockPlatform is an in-memory platform for tests. It records every action, and can be told to
// fail a given method.
type MockPlatform struct {
	lk          sync.Mutex
	Calls       []PlatformCall
	Fail        map[string]error
	Communities map[string]*platform.Community
	Members     map[string]*platform.Member
	msgSeq      int
	// message IDs currently visible
	Messages map[string]string
}

var (
	_ platform.ActionExecutor = (*MockPlatform)(nil)
	_ platform.Messenger      = (*MockPlatform)(nil)
	_ platform.Directory      = (*MockPlatform)(nil)
)

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		Fail:        make(map[string]error),
		Communities: make(map[string]*platform.Community),
		Members:     make(map[string]*platform.Member),
		Messages:    make(map[string]string),
	}
}

func (p *MockPlatform) record(c PlatformCall) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	p.Calls = append(p.Calls, c)
	return p.Fail[c.Method]
}

// CallsTo returns the recorded calls of one method.
func (p *MockPlatform) CallsTo(method string) []PlatformCall {
	p.lk.Lock()
	defer p.lk.Unlock()
	var out []PlatformCall
	for _, c := range p.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (p *MockPlatform) SetFail(method string, err error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	if err == nil {
		delete(p.Fail, method)
		return
	}
	p.Fail[method] = err
}

func (p *MockPlatform) VisibleMessages() int {
	p.lk.Lock()
	defer p.lk.Unlock()
	return len(p.Messages)
}

func (p *MockPlatform) Timeout(ctx context.Context, communityID, actorID string, d time.Duration, reason string) error {
	return p.record(PlatformCall{Method: "Timeout", Community: communityID, Actor: actorID, Duration: d, Text: reason})
}

func (p *MockPlatform) RemoveTimeout(ctx context.Context, communityID, actorID, reason string) error {
	return p.record(PlatformCall{Method: "RemoveTimeout", Community: communityID, Actor: actorID, Text: reason})
}

func (p *MockPlatform) PurgeMessages(ctx context.Context, channelID, actorID string, since time.Time, limit int) (int, error) {
	if err := p.record(PlatformCall{Method: "PurgeMessages", Channel: channelID, Actor: actorID}); err != nil {
		return 0, err
	}
	return limit, nil
}

func (p *MockPlatform) Move(ctx context.Context, communityID, actorID, channelID, reason string) error {
	if err := p.record(PlatformCall{Method: "Move", Community: communityID, Actor: actorID, Channel: channelID, Text: reason}); err != nil {
		return err
	}
	p.lk.Lock()
	defer p.lk.Unlock()
	if m, ok := p.Members[communityID+"/"+actorID]; ok {
		m.ChannelID = channelID
	}
	return nil
}

func (p *MockPlatform) SendChannelMessage(ctx context.Context, channelID, content string) (string, error) {
	if err := p.record(PlatformCall{Method: "SendChannelMessage", Channel: channelID, Text: content}); err != nil {
		return "", err
	}
	p.lk.Lock()
	defer p.lk.Unlock()
	p.msgSeq++
	id := fmt.Sprintf("msg%d", p.msgSeq)
	p.Messages[id] = content
	return id, nil
}

func (p *MockPlatform) DeleteChannelMessage(ctx context.Context, channelID, messageID string) error {
	if err := p.record(PlatformCall{Method: "DeleteChannelMessage", Channel: channelID, Text: messageID}); err != nil {
		return err
	}
	p.lk.Lock()
	defer p.lk.Unlock()
	if _, ok := p.Messages[messageID]; !ok {
		return platform.ErrNotFound
	}
	delete(p.Messages, messageID)
	return nil
}

func (p *MockPlatform) LookupCommunity(ctx context.Context, communityID string) (*platform.Community, error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	c, ok := p.Communities[communityID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (p *MockPlatform) LookupMember(ctx context.Context, communityID, actorID string) (*platform.Member, error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	if err := p.Fail["LookupMember"]; err != nil {
		return nil, err
	}
	m, ok := p.Members[communityID+"/"+actorID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	out := *m
	return &out, nil
}

func (p *MockPlatform) SetMember(m platform.Member) {
	p.lk.Lock()
	defer p.lk.Unlock()
	p.Members[m.CommunityID+"/"+m.ActorID] = &m
}

// RecordingNotifier keeps every alert it is sent.
type RecordingNotifier struct {
	lk      sync.Mutex
	Notices []MuteNotice
	Err     error
}

func (n *RecordingNotifier) SendMute(ctx context.Context, mn *MuteNotice) error {
	n.lk.Lock()
	defer n.lk.Unlock()
	n.Notices = append(n.Notices, *mn)
	return n.Err
}

// EngineTestFixture returns an engine backed entirely by in-memory stores, a MockPlatform with one
// community ("c1", owned by "owner", idle channel "afk"), and a manual scheduler whose clock also
// drives the engine. Anti-spam is enabled for "c1" with otherwise default settings.
func EngineTestFixture() (*Engine, *MockPlatform, *schedule.ManualScheduler) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sched := schedule.NewManualScheduler(start)
	mock := NewMockPlatform()
	mock.Communities["c1"] = &platform.Community{ID: "c1", OwnerID: "owner", IdleChannelID: "afk"}

	mgr := settings.NewManager(settings.NewMemBackend(), slog.Default())
	if err := mgr.Enable(context.Background(), "c1"); err != nil {
		panic(err)
	}

	eng := Engine{
		Logger:    slog.Default(),
		Settings:  mgr,
		Rates:     ratestore.NewTracker(),
		Presence:  presence.NewTracker(slog.Default()),
		Directory: mock,
		Actions:   mock,
		Messenger: mock,
		Audit:     auditstore.NewMemAuditStore(),
		Counters:  countstore.NewMemCountStore(),
		Scheduler: sched,
		SelfID:    "warden",
		Clock:     sched.Now,
	}
	return &eng, mock, sched
}
