package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenbot/warden/modguard/auditstore"
	"github.com/wardenbot/warden/modguard/engine"
	"github.com/wardenbot/warden/modguard/schedule"
	"github.com/wardenbot/warden/modguard/settings"
)

func testServer(adminToken string, queue int) (*Server, *engine.MockPlatform, *schedule.ManualScheduler) {
	eng, mock, sched := engine.EngineTestFixture()
	s := &Server{
		logger:     slog.Default(),
		engine:     eng,
		events:     make(chan *engine.Event, queue),
		adminToken: adminToken,
	}
	s.echo = s.newEcho()
	return s, mock, sched
}

func doRequest(s *Server, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	s, _, _ := testServer("", 1)
	rec := doRequest(s, "GET", "/_health", "", nil)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestConfigEndpoints(t *testing.T) {
	assert := assert.New(t)
	s, _, _ := testServer("", 1)

	rec := doRequest(s, "POST", "/config/c1/set", `{"field":"messages","value":4}`, nil)
	assert.Equal(200, rec.Code)
	rec = doRequest(s, "POST", "/config/c1/set", `{"field":"clearMessages","value":true}`, nil)
	assert.Equal(200, rec.Code)
	rec = doRequest(s, "POST", "/config/c1/set", `{"field":"interval","value":"10","channel":"ch9"}`, nil)
	assert.Equal(200, rec.Code)

	rec = doRequest(s, "GET", "/config/c1", "", nil)
	require.Equal(t, 200, rec.Code)
	var status engine.CommunityStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(status.Effective.Enabled)
	assert.Equal(4, status.Effective.MessagesPerInterval)
	assert.True(status.Effective.ClearMessagesOnMute)
	assert.Equal(3, status.Effective.IntervalSeconds)
	if assert.Contains(status.Channels, "ch9") {
		assert.Equal(10, *status.Channels["ch9"].IntervalSeconds)
	}
	assert.Equal(10, s.engine.Settings.Resolve("c1", "ch9").IntervalSeconds)

	// rejected input leaves settings alone
	for _, body := range []string{
		`{"field":"messages","value":51}`,
		`{"field":"messages","value":2.5}`,
		`{"field":"action","value":"ban"}`,
		`{"field":"bogus","value":1}`,
		`{"field":"messages"}`,
	} {
		rec = doRequest(s, "POST", "/config/c1/set", body, nil)
		assert.Equal(400, rec.Code, body)
	}
	assert.Equal(4, s.engine.Settings.Resolve("c1", "").MessagesPerInterval)

	rec = doRequest(s, "POST", "/config/c1/disable", "", nil)
	assert.Equal(200, rec.Code)
	assert.False(s.engine.Settings.Resolve("c1", "").Enabled)
	rec = doRequest(s, "POST", "/config/c1/enable", "", nil)
	assert.Equal(200, rec.Code)
	assert.True(s.engine.Settings.Resolve("c1", "").Enabled)

	rec = doRequest(s, "POST", "/config/c1/reset", `{"channel":"ch9"}`, nil)
	assert.Equal(200, rec.Code)
	assert.Equal(3, s.engine.Settings.Resolve("c1", "ch9").IntervalSeconds)
	assert.Equal(4, s.engine.Settings.Resolve("c1", "ch9").MessagesPerInterval)

	rec = doRequest(s, "POST", "/config/c1/reset", "", nil)
	assert.Equal(200, rec.Code)
	assert.False(s.engine.Settings.Resolve("c1", "").Enabled)
	assert.Equal(1, s.engine.Settings.Resolve("c1", "").MessagesPerInterval)
}

func TestConfigDefaultScope(t *testing.T) {
	assert := assert.New(t)
	s, _, _ := testServer("", 1)

	rec := doRequest(s, "POST", "/config/default/set", `{"field":"warnings","value":5}`, nil)
	assert.Equal(200, rec.Code)
	assert.Equal(5, s.engine.Settings.Resolve("c1", "").WarningThreshold)
	assert.Equal(5, s.engine.Settings.Resolve("other", "").WarningThreshold)

	rec = doRequest(s, "POST", "/config/default/enable", "", nil)
	assert.Equal(200, rec.Code)
	assert.True(s.engine.Settings.Resolve("other", "").Enabled)

	// the default layer has no channels
	rec = doRequest(s, "POST", "/config/default/set", `{"field":"warnings","value":2,"channel":"ch1"}`, nil)
	assert.Equal(400, rec.Code)

	rec = doRequest(s, "POST", "/config/default/reset", "", nil)
	assert.Equal(200, rec.Code)
	assert.Equal(3, s.engine.Settings.Resolve("other", "").WarningThreshold)
	assert.False(s.engine.Settings.Resolve("other", "").Enabled)
}

func TestEventIntake(t *testing.T) {
	assert := assert.New(t)
	s, _, _ := testServer("", 2)

	msg := `{"communityId":"c1","channelId":"ch1","actorId":"a1"}`
	assert.Equal(202, doRequest(s, "POST", "/events/message", msg, nil).Code)
	assert.Equal(202, doRequest(s, "POST", "/events/voice", `{"communityId":"c1","actorId":"a1","after":"v1"}`, nil).Code)
	assert.Equal(503, doRequest(s, "POST", "/events/message", msg, nil).Code)

	assert.Equal(400, doRequest(s, "POST", "/events/message", `{"communityId":"c1","channelId":"ch1"}`, nil).Code)
	assert.Equal(400, doRequest(s, "POST", "/events/voice", `{"actorId":"a1"}`, nil).Code)

	evt := <-s.events
	if assert.NotNil(evt.Message) {
		assert.Equal("a1", evt.Message.ActorID)
	}
	evt = <-s.events
	if assert.NotNil(evt.ChannelState) {
		assert.Equal("v1", evt.ChannelState.After)
	}
}

func TestUnmuteEndpoint(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, mock, sched := testServer("", 1)

	for i := 0; i < 5; i++ {
		assert.NoError(s.engine.ProcessMessage(ctx, &engine.MessageEvent{CommunityID: "c1", ChannelID: "ch1", ActorID: "a1", At: sched.Now()}))
	}
	st, ok := s.engine.Rates.Get("ch1", "a1")
	require.True(t, ok)
	require.True(t, st.Muted)

	assert.Equal(400, doRequest(s, "POST", "/moderation/c1/unmute", `{"actorId":"a1"}`, nil).Code)

	mock.SetFail("RemoveTimeout", errors.New("missing permissions"))
	rec := doRequest(s, "POST", "/moderation/c1/unmute", `{"actorId":"a1","moderatorId":"mod1"}`, nil)
	assert.Equal(502, rec.Code)
	st, _ = s.engine.Rates.Get("ch1", "a1")
	assert.True(st.Muted)

	mock.SetFail("RemoveTimeout", nil)
	rec = doRequest(s, "POST", "/moderation/c1/unmute", `{"actorId":"a1","moderatorId":"mod1","channelId":"ch1"}`, nil)
	assert.Equal(200, rec.Code)
	_, ok = s.engine.Rates.Get("ch1", "a1")
	assert.False(ok)

	rec = doRequest(s, "GET", "/moderation/c1/log/a1?limit=5", "", nil)
	require.Equal(t, 200, rec.Code)
	var out modLogResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	if assert.Len(out.Records, 2) {
		assert.Equal(auditstore.TypeUntimeout, out.Records[0].Type)
		assert.Equal("mod1", out.Records[0].ModeratorID)
		assert.Equal(auditstore.TypeTimeout, out.Records[1].Type)
		assert.Equal("warden", out.Records[1].ModeratorID)
	}

	rec = doRequest(s, "GET", "/moderation/c1/log/a1?limit=1", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(out.Records, 1)

	for _, q := range []string{"0", "101", "x"} {
		assert.Equal(400, doRequest(s, "GET", "/moderation/c1/log/a1?limit="+q, "", nil).Code)
	}
}

func TestPresenceEndpoints(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, _, sched := testServer("", 1)

	assert.NoError(s.engine.ProcessChannelState(ctx, &engine.ChannelStateEvent{CommunityID: "c1", ActorID: "a1", After: "v1", At: sched.Now()}))
	sched.Advance(12 * time.Minute)

	rec := doRequest(s, "GET", "/presence/c1/actors/a1", "", nil)
	require.Equal(t, 200, rec.Code)
	var out presenceActorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal("v1", out.ChannelID)
	assert.Equal(int64(720), out.InactiveSeconds)
	assert.True(out.Idle)

	assert.Equal(404, doRequest(s, "GET", "/presence/c1/actors/nobody", "", nil).Code)
	assert.Equal(404, doRequest(s, "GET", "/presence/c2/actors/a1", "", nil).Code)

	rec = doRequest(s, "GET", "/presence/c1", "", nil)
	assert.Equal(200, rec.Code)
	assert.Contains(rec.Body.String(), `"idleActors":1`)

	assert.Equal(400, doRequest(s, "PUT", "/presence/idle-threshold", `{"minutes":0}`, nil).Code)
	assert.Equal(400, doRequest(s, "PUT", "/presence/idle-threshold", `{"minutes":61}`, nil).Code)
	rec = doRequest(s, "PUT", "/presence/idle-threshold", `{"minutes":15}`, nil)
	assert.Equal(200, rec.Code)
	assert.Contains(rec.Body.String(), `"minutes":15`)

	rec = doRequest(s, "GET", "/presence/c1/actors/a1", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.False(out.Idle)
}

func TestAdminToken(t *testing.T) {
	assert := assert.New(t)
	s, _, _ := testServer("sekrit", 1)

	assert.Equal(200, doRequest(s, "GET", "/_health", "", nil).Code)
	assert.NotEqual(200, doRequest(s, "GET", "/config/c1", "", nil).Code)
	assert.Equal(401, doRequest(s, "GET", "/config/c1", "", map[string]string{"Authorization": "Bearer wrong"}).Code)
	assert.Equal(200, doRequest(s, "GET", "/config/c1", "", map[string]string{"Authorization": "Bearer sekrit"}).Code)
}

func TestConfigPersistenceWarning(t *testing.T) {
	assert := assert.New(t)
	s, _, _ := testServer("", 1)
	backend := settings.NewMemBackend()
	backend.SaveErr = errors.New("disk full")
	s.engine.Settings = settings.NewManager(backend, nil)
	var logs bytes.Buffer
	s.logger = slog.New(slog.NewTextHandler(&logs, nil))

	rec := doRequest(s, "POST", "/config/c9/set", `{"field":"messages","value":8}`, nil)
	assert.Equal(200, rec.Code)
	assert.Contains(rec.Body.String(), `"warning"`)
	assert.Equal(8, s.engine.Settings.Resolve("c9", "").MessagesPerInterval)
	// logged through the server's logger, not the process default
	assert.Contains(logs.String(), "settings change not persisted")
	assert.Contains(logs.String(), "disk full")
}
