package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SlackNotifier posts mute alerts to a Slack incoming webhook, which must already be configured
// for the workspace.
type SlackNotifier struct {
	WebhookURL string
	Client     *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

// SlackMessage is the webhook payload. Text is shown in notifications and by clients that can't
// render blocks.
type SlackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks,omitempty"`
}

func mrkdwn(s string) slackText {
	return slackText{Type: "mrkdwn", Text: s}
}

func muteMessage(mn *MuteNotice) SlackMessage {
	fields := []slackText{
		mrkdwn(fmt.Sprintf("*Actor*\n`%s`", mn.ActorID)),
		mrkdwn(fmt.Sprintf("*Community*\n`%s`", mn.CommunityID)),
		mrkdwn(fmt.Sprintf("*Channel*\n`%s`", mn.ChannelID)),
		mrkdwn(fmt.Sprintf("*Duration*\n%s (until %s)", mn.Duration, mn.Until.UTC().Format(time.RFC3339))),
	}
	if mn.Purged > 0 {
		fields = append(fields, mrkdwn(fmt.Sprintf("*Cleanup*\nPurged %d messages", mn.Purged)))
	}

	var summary strings.Builder
	fmt.Fprintf(&summary, "Muted `%s` in `%s` for %s", mn.ActorID, mn.CommunityID, mn.Duration)
	if mn.Reason != "" {
		fmt.Fprintf(&summary, ": %s", mn.Reason)
	}
	return SlackMessage{
		Text: summary.String(),
		Blocks: []slackBlock{
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: ":mute: *Warden mute*\n" + summary.String()}},
			{Type: "section", Fields: fields},
		},
	}
}

func (n *SlackNotifier) SendMute(ctx context.Context, mn *MuteNotice) error {
	return n.post(ctx, muteMessage(mn))
}

func (n *SlackNotifier) post(ctx context.Context, msg SlackMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	defer resp.Body.Close()

	// webhooks answer a plain "ok" on success, and a short error code otherwise
	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK || string(reply) != "ok" {
		return fmt.Errorf("slack webhook: status %d: %s", resp.StatusCode, strings.TrimSpace(string(reply)))
	}
	return nil
}
