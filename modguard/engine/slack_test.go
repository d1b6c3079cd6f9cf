package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlackNotifier(t *testing.T) {
	assert := assert.New(t)

	bodies := make(chan SlackMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body SlackMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies <- body
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := &SlackNotifier{WebhookURL: srv.URL, Client: srv.Client()}
	notice := &MuteNotice{
		CommunityID: "c1",
		ChannelID:   "ch1",
		ActorID:     "a1",
		Duration:    5 * time.Minute,
		Until:       time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC),
		Reason:      MuteReason,
		Purged:      3,
	}
	assert.NoError(n.SendMute(context.Background(), notice))
	got := <-bodies
	assert.Contains(got.Text, "Muted `a1` in `c1` for 5m0s")
	if assert.Len(got.Blocks, 2) {
		var fields []string
		for _, f := range got.Blocks[1].Fields {
			fields = append(fields, f.Text)
		}
		assert.Contains(strings.Join(fields, "\n"), "2024-03-01T12:05:00Z")
		assert.Contains(strings.Join(fields, "\n"), "Purged 3 messages")
	}
}

func TestSlackNotifierFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	n := &SlackNotifier{WebhookURL: srv.URL, Client: srv.Client()}
	err := n.SendMute(context.Background(), &MuteNotice{ActorID: "a1"})
	assert.ErrorContains(t, err, "invalid_token")
}
