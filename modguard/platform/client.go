package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/wardenbot/warden/util"
)

var tracer = otel.Tracer("platform")

// Client talks to the platform bridge over HTTP. The bridge is a small service holding the
// platform session; all requests are JSON and authenticated with a bearer token.
type Client struct {
	Host      string
	Token     string
	UserAgent string
	Client    *http.Client
	// outbound request rate limit; nil means unlimited
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

var (
	_ ActionExecutor = (*Client)(nil)
	_ Messenger      = (*Client)(nil)
	_ Directory      = (*Client)(nil)
)

func NewClient(host, token string, rps float64, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		Host:      strings.TrimRight(host, "/"),
		Token:     token,
		UserAgent: "warden/" + versioninfo.Short(),
		Client:    util.RobustHTTPClient(logger, util.DefaultHTTPTimeout),
		Logger:    logger.With("component", "platform"),
	}
	if rps > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return c
}

// APIError is any unexpected non-2xx response from the bridge.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform bridge error %d", e.StatusCode)
	}
	return fmt.Sprintf("platform bridge error %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

func errorFromResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		return ErrPermission
	}
	ae := &APIError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && len(body) > 0 {
		_ = json.Unmarshal(body, ae)
	}
	return ae
}

func (c *Client) do(ctx context.Context, spanName, method, path string, bodyobj, out any) error {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("bridge.path", path))

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for platform rate limit: %w", err)
		}
	}

	var body io.Reader
	if bodyobj != nil {
		b, err := json.Marshal(bodyobj)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Host+path, body)
	if err != nil {
		return err
	}
	if bodyobj != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := errorFromResponse(resp)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding platform response: %w", err)
		}
	}
	return nil
}

func memberPath(communityID, actorID string) string {
	return "/communities/" + url.PathEscape(communityID) + "/members/" + url.PathEscape(actorID)
}

type timeoutRequest struct {
	DurationSeconds int64  `json:"durationSeconds"`
	Reason          string `json:"reason"`
}

func (c *Client) Timeout(ctx context.Context, communityID, actorID string, d time.Duration, reason string) error {
	body := timeoutRequest{DurationSeconds: int64(d / time.Second), Reason: reason}
	return c.do(ctx, "Timeout", http.MethodPost, memberPath(communityID, actorID)+"/timeout", body, nil)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (c *Client) RemoveTimeout(ctx context.Context, communityID, actorID, reason string) error {
	return c.do(ctx, "RemoveTimeout", http.MethodPost, memberPath(communityID, actorID)+"/timeout/remove", reasonRequest{Reason: reason}, nil)
}

type purgeRequest struct {
	ActorID string `json:"actorId"`
	// unix milliseconds
	Since int64 `json:"since"`
	Limit int   `json:"limit"`
}

type purgeResponse struct {
	Deleted int `json:"deleted"`
}

func (c *Client) PurgeMessages(ctx context.Context, channelID, actorID string, since time.Time, limit int) (int, error) {
	var out purgeResponse
	body := purgeRequest{ActorID: actorID, Since: since.UnixMilli(), Limit: limit}
	if err := c.do(ctx, "PurgeMessages", http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/purge", body, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

type moveRequest struct {
	ChannelID string `json:"channelId"`
	Reason    string `json:"reason"`
}

func (c *Client) Move(ctx context.Context, communityID, actorID, channelID, reason string) error {
	return c.do(ctx, "Move", http.MethodPost, memberPath(communityID, actorID)+"/move", moveRequest{ChannelID: channelID, Reason: reason}, nil)
}

type messageRequest struct {
	Content string `json:"content"`
}

type messageResponse struct {
	ID string `json:"id"`
}

func (c *Client) SendChannelMessage(ctx context.Context, channelID, content string) (string, error) {
	var out messageResponse
	if err := c.do(ctx, "SendChannelMessage", http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/messages", messageRequest{Content: content}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) DeleteChannelMessage(ctx context.Context, channelID, messageID string) error {
	return c.do(ctx, "DeleteChannelMessage", http.MethodDelete, "/channels/"+url.PathEscape(channelID)+"/messages/"+url.PathEscape(messageID), nil, nil)
}

func (c *Client) LookupCommunity(ctx context.Context, communityID string) (*Community, error) {
	var out Community
	if err := c.do(ctx, "LookupCommunity", http.MethodGet, "/communities/"+url.PathEscape(communityID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LookupMember(ctx context.Context, communityID, actorID string) (*Member, error) {
	var out Member
	if err := c.do(ctx, "LookupMember", http.MethodGet, memberPath(communityID, actorID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
