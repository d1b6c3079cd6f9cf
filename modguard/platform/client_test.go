package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wardenbot/warden/modguard/cachestore"
	"github.com/wardenbot/warden/modguard/presence"
)

type fakeBridge struct {
	lk       sync.Mutex
	requests []string
	bodies   []map[string]any
	lookups  int
}

func (b *fakeBridge) record(r *http.Request) {
	b.lk.Lock()
	defer b.lk.Unlock()
	b.requests = append(b.requests, r.Method+" "+r.URL.Path)
	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	b.bodies = append(b.bodies, body)
}

func (b *fakeBridge) lookupCount() int {
	b.lk.Lock()
	defer b.lk.Unlock()
	return b.lookups
}

func (b *fakeBridge) request(i int) (string, map[string]any) {
	b.lk.Lock()
	defer b.lk.Unlock()
	return b.requests[i], b.bodies[i]
}

func (b *fakeBridge) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /communities/{cid}/members/{aid}/timeout", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		if r.PathValue("aid") == "owner" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /communities/{cid}/members/{aid}/timeout/remove", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /communities/{cid}/members/{aid}/move", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /channels/{ch}/purge", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		_ = json.NewEncoder(w).Encode(map[string]int{"deleted": 4})
	})
	mux.HandleFunc("POST /channels/{ch}/messages", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "m1"})
	})
	mux.HandleFunc("DELETE /channels/{ch}/messages/{mid}", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		if r.PathValue("mid") == "gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /communities/{cid}", func(w http.ResponseWriter, r *http.Request) {
		b.lk.Lock()
		b.lookups++
		b.lk.Unlock()
		if r.PathValue("cid") != "c1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(Community{ID: "c1", OwnerID: "owner", IdleChannelID: "afk"})
	})
	mux.HandleFunc("GET /communities/{cid}/members/{aid}", func(w http.ResponseWriter, r *http.Request) {
		b.lk.Lock()
		b.lookups++
		b.lk.Unlock()
		switch r.PathValue("aid") {
		case "a1":
			_ = json.NewEncoder(w).Encode(Member{CommunityID: "c1", ActorID: "a1", ChannelID: "v1"})
		case "idle":
			_ = json.NewEncoder(w).Encode(Member{CommunityID: "c1", ActorID: "idle"})
		case "teapot":
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte(`{"error":"Teapot","message":"short and stout"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		mux.ServeHTTP(w, r)
	})
}

func testClient(t *testing.T) (*Client, *fakeBridge) {
	bridge := &fakeBridge{}
	srv := httptest.NewServer(bridge.handler(t))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "secret", 0, nil)
	// no retries in tests
	c.Client = srv.Client()
	return c, bridge
}

func TestClientActions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c, bridge := testClient(t)

	assert.NoError(c.Timeout(ctx, "c1", "a1", 5*time.Minute, "Anti-spam: Exceeded message limit"))
	assert.ErrorIs(c.Timeout(ctx, "c1", "owner", time.Minute, "nope"), ErrPermission)
	assert.NoError(c.RemoveTimeout(ctx, "c1", "a1", "Manual unmute"))
	assert.NoError(c.Move(ctx, "c1", "a1", "afk", "idle"))

	n, err := c.PurgeMessages(ctx, "ch1", "a1", time.UnixMilli(1000), 10)
	assert.NoError(err)
	assert.Equal(4, n)

	id, err := c.SendChannelMessage(ctx, "ch1", "slow down")
	assert.NoError(err)
	assert.Equal("m1", id)
	assert.NoError(c.DeleteChannelMessage(ctx, "ch1", id))
	assert.ErrorIs(c.DeleteChannelMessage(ctx, "ch1", "gone"), ErrNotFound)

	req, body := bridge.request(0)
	assert.Equal("POST /communities/c1/members/a1/timeout", req)
	assert.Equal(float64(300), body["durationSeconds"])
	_, body = bridge.request(4)
	assert.Equal(map[string]any{"actorId": "a1", "since": float64(1000), "limit": float64(10)}, body)
}

func TestClientLookups(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c, _ := testClient(t)

	comm, err := c.LookupCommunity(ctx, "c1")
	assert.NoError(err)
	assert.Equal("owner", comm.OwnerID)
	_, err = c.LookupCommunity(ctx, "c9")
	assert.ErrorIs(err, ErrNotFound)

	m, err := c.LookupMember(ctx, "c1", "a1")
	assert.NoError(err)
	assert.Equal("v1", m.ChannelID)

	_, err = c.LookupMember(ctx, "c1", "teapot")
	var ae *APIError
	if assert.ErrorAs(err, &ae) {
		assert.Equal(http.StatusTeapot, ae.StatusCode)
		assert.Equal("short and stout", ae.Message)
	}
}

func TestCachedDirectory(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c, bridge := testClient(t)
	dir := NewCachedDirectory(c, cachestore.NewMemCacheStore(100, time.Hour), nil)

	for i := 0; i < 3; i++ {
		comm, err := dir.LookupCommunity(ctx, "c1")
		assert.NoError(err)
		assert.Equal("afk", comm.IdleChannelID)
		_, err = dir.LookupMember(ctx, "c1", "a1")
		assert.NoError(err)
	}
	assert.Equal(2, bridge.lookupCount())

	assert.NoError(dir.PurgeMember(ctx, "c1", "a1"))
	_, err := dir.LookupMember(ctx, "c1", "a1")
	assert.NoError(err)
	assert.Equal(3, bridge.lookupCount())

	// errors are not cached
	_, err = dir.LookupCommunity(ctx, "c9")
	assert.ErrorIs(err, ErrNotFound)
	_, err = dir.LookupCommunity(ctx, "c9")
	assert.ErrorIs(err, ErrNotFound)
	assert.Equal(5, bridge.lookupCount())
}

func TestVoiceAdapter(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c, bridge := testClient(t)
	v := &Voice{Directory: NewCachedDirectory(c, cachestore.NewMemCacheStore(100, time.Hour), nil), Actions: c}

	idle, err := v.IdleChannel(ctx, "c1")
	assert.NoError(err)
	assert.Equal("afk", idle)

	ch, err := v.CurrentChannel(ctx, "c1", "a1")
	assert.NoError(err)
	assert.Equal("v1", ch)
	_, err = v.CurrentChannel(ctx, "c1", "idle")
	assert.ErrorIs(err, presence.ErrNotConnected)
	_, err = v.CurrentChannel(ctx, "c1", "unknown")
	assert.ErrorIs(err, presence.ErrNotConnected)
	_, err = v.CurrentChannel(ctx, "c1", "teapot")
	assert.Error(err)
	assert.False(errors.Is(err, presence.ErrNotConnected))

	// membership lookups bypass the cache
	before := bridge.lookupCount()
	_, _ = v.CurrentChannel(ctx, "c1", "a1")
	assert.Equal(before+1, bridge.lookupCount())
}

func TestLogExecutor(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	e := NewLogExecutor(nil)

	assert.NoError(e.Timeout(ctx, "c1", "a1", time.Minute, "reason"))
	n, err := e.PurgeMessages(ctx, "ch1", "a1", time.Now(), 10)
	assert.NoError(err)
	assert.Equal(0, n)
	id1, _ := e.SendChannelMessage(ctx, "ch1", "hi")
	id2, _ := e.SendChannelMessage(ctx, "ch1", "hi")
	assert.NotEqual(id1, id2)
}
