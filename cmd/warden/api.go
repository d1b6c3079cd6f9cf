package main

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"

	"github.com/wardenbot/warden/modguard/auditstore"
	"github.com/wardenbot/warden/modguard/engine"
	"github.com/wardenbot/warden/modguard/presence"
	"github.com/wardenbot/warden/modguard/settings"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
	// set when a change is live but could not be persisted
	Warning string `json:"warning,omitempty"`
}

// the prometheus middleware registers its collectors globally, so it can only be built once
var promMiddleware = sync.OnceValue(func() echo.MiddlewareFunc {
	return echoprometheus.NewMiddleware("warden")
})

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(slogecho.New(s.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(promMiddleware())
	e.HTTPErrorHandler = s.errorHandler
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))

	e.GET("/_health", s.HandleHealthCheck)

	g := e.Group("")
	if s.adminToken != "" {
		g.Use(middleware.KeyAuth(func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(s.adminToken)) == 1, nil
		}))
	}

	g.GET("/config/:community", s.HandleGetConfig)
	g.POST("/config/:community/enable", s.HandleEnable)
	g.POST("/config/:community/disable", s.HandleDisable)
	g.POST("/config/:community/set", s.HandleSetConfig)
	g.POST("/config/:community/reset", s.HandleResetConfig)

	g.POST("/events/message", s.HandleMessageEvent)
	g.POST("/events/voice", s.HandleVoiceEvent)

	g.POST("/moderation/:community/unmute", s.HandleUnmute)
	g.GET("/moderation/:community/log/:actor", s.HandleModLog)

	g.GET("/presence/:community", s.HandlePresenceStats)
	g.GET("/presence/:community/actors/:actor", s.HandlePresenceActor)
	g.PUT("/presence/idle-threshold", s.HandleSetIdleThreshold)

	return e
}

func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	errorMessage := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		s.logger.Warn("warden-http-internal-error", "err", err)
	}
	if !c.Response().Committed {
		c.JSON(code, GenericError{Error: http.StatusText(code), Message: errorMessage})
	}
}

func (s *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "warden"})
}

// settingsResult turns the outcome of a settings mutation into a response
func (s *Server) settingsResult(c echo.Context, err error) error {
	switch {
	case err == nil:
		return c.JSON(200, GenericStatus{Status: "ok", Daemon: "warden"})
	case settings.IsValidationError(err):
		return c.JSON(400, GenericError{Error: "InvalidSetting", Message: err.Error()})
	case settings.IsPersistenceError(err):
		s.logger.Warn("settings change not persisted", "err", err)
		return c.JSON(200, GenericStatus{Status: "ok", Daemon: "warden", Warning: err.Error()})
	default:
		return err
	}
}

// scopeFor maps a path community (or "default") and optional channel onto a settings scope
func scopeFor(community, channel string) settings.Scope {
	if community == settings.DefaultScopeKey {
		return settings.Scope{Channel: channel}
	}
	if channel != "" {
		return settings.ChannelScope(community, channel)
	}
	return settings.CommunityScope(community)
}

func (s *Server) HandleGetConfig(c echo.Context) error {
	return c.JSON(200, s.engine.Status(c.Request().Context(), c.Param("community")))
}

func (s *Server) HandleEnable(c echo.Context) error {
	return s.setEnabled(c, true)
}

func (s *Server) HandleDisable(c echo.Context) error {
	return s.setEnabled(c, false)
}

func (s *Server) setEnabled(c echo.Context, enabled bool) error {
	ctx := c.Request().Context()
	community := c.Param("community")
	var err error
	switch {
	case community == settings.DefaultScopeKey:
		err = s.engine.Settings.Set(ctx, settings.DefaultScope, settings.FieldEnabled, strconv.FormatBool(enabled))
	case enabled:
		err = s.engine.Settings.Enable(ctx, community)
	default:
		err = s.engine.Settings.Disable(ctx, community)
	}
	return s.settingsResult(c, err)
}

type setConfigRequest struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Channel string `json:"channel,omitempty"`
}

func (s *Server) HandleSetConfig(c echo.Context) error {
	var req setConfigRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{Error: "BadRequest", Message: err.Error()})
	}
	field, err := settings.ParseField(req.Field)
	if err != nil {
		return s.settingsResult(c, err)
	}
	if req.Value == nil {
		return c.JSON(400, GenericError{Error: "BadRequest", Message: "value is required"})
	}
	scope := scopeFor(c.Param("community"), req.Channel)
	return s.settingsResult(c, s.engine.Settings.Set(c.Request().Context(), scope, field, fmt.Sprint(req.Value)))
}

type resetConfigRequest struct {
	Channel string `json:"channel,omitempty"`
}

func (s *Server) HandleResetConfig(c echo.Context) error {
	var req resetConfigRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{Error: "BadRequest", Message: err.Error()})
	}
	scope := scopeFor(c.Param("community"), req.Channel)
	return s.settingsResult(c, s.engine.Settings.Reset(c.Request().Context(), scope))
}

func (s *Server) accept(c echo.Context, evt *engine.Event) error {
	eventsReceived.WithLabelValues("http", evt.Kind()).Inc()
	if !s.enqueue(evt) {
		return c.JSON(503, GenericError{Error: "QueueFull", Message: "event queue is full, try again later"})
	}
	return c.JSON(202, GenericStatus{Status: "accepted", Daemon: "warden"})
}

func (s *Server) HandleMessageEvent(c echo.Context) error {
	var msg engine.MessageEvent
	if err := c.Bind(&msg); err != nil {
		return c.JSON(400, GenericError{Error: "BadRequest", Message: err.Error()})
	}
	if msg.CommunityID == "" || msg.ChannelID == "" || msg.ActorID == "" {
		return c.JSON(400, GenericError{Error: "BadRequest", Message: "communityId, channelId and actorId are required"})
	}
	return s.accept(c, &engine.Event{Message: &msg})
}

func (s *Server) HandleVoiceEvent(c echo.Context) error {
	var cs engine.ChannelStateEvent
	if err := c.Bind(&cs); err != nil {
		return c.JSON(400, GenericError{Error: "BadRequest", Message: err.Error()})
	}
	if cs.CommunityID == "" || cs.ActorID == "" {
		return c.JSON(400, GenericError{Error: "BadRequest", Message: "communityId and actorId are required"})
	}
	return s.accept(c, &engine.Event{ChannelState: &cs})
}

type unmuteRequest struct {
	ActorID     string `json:"actorId"`
	ChannelID   string `json:"channelId,omitempty"`
	ModeratorID string `json:"moderatorId"`
}

func (s *Server) HandleUnmute(c echo.Context) error {
	var req unmuteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{Error: "BadRequest", Message: err.Error()})
	}
	if req.ActorID == "" || req.ModeratorID == "" {
		return c.JSON(400, GenericError{Error: "BadRequest", Message: "actorId and moderatorId are required"})
	}
	err := s.engine.Unmute(c.Request().Context(), c.Param("community"), req.ChannelID, req.ActorID, req.ModeratorID)
	if engine.IsActionError(err) {
		return c.JSON(502, GenericError{Error: "PlatformError", Message: err.Error()})
	} else if err != nil {
		return err
	}
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "warden"})
}

type modLogResponse struct {
	ActorID string              `json:"actorId"`
	Records []auditstore.Record `json:"records"`
}

func (s *Server) HandleModLog(c echo.Context) error {
	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			return c.JSON(400, GenericError{Error: "BadRequest", Message: "limit must be between 1 and 100"})
		}
		limit = n
	}
	actor := c.Param("actor")
	recs, err := s.engine.History(c.Request().Context(), c.Param("community"), actor, limit)
	if err != nil {
		return err
	}
	return c.JSON(200, modLogResponse{ActorID: actor, Records: recs})
}

func (s *Server) HandlePresenceStats(c echo.Context) error {
	return c.JSON(200, s.engine.Presence.Stats(c.Param("community"), s.engine.Now()))
}

type presenceActorResponse struct {
	presence.State
	ActorID         string `json:"actorId"`
	InactiveSeconds int64  `json:"inactiveSeconds"`
	Idle            bool   `json:"idle"`
}

func (s *Server) HandlePresenceActor(c echo.Context) error {
	actor := c.Param("actor")
	st, ok := s.engine.Presence.Get(actor)
	if !ok || st.CommunityID != c.Param("community") {
		return c.JSON(404, GenericError{Error: "NotFound", Message: "actor is not tracked in a voice channel"})
	}
	now := s.engine.Now()
	inactive, _ := s.engine.Presence.InactiveFor(actor, now)
	return c.JSON(200, presenceActorResponse{
		State:           st,
		ActorID:         actor,
		InactiveSeconds: int64(inactive / time.Second),
		Idle:            s.engine.Presence.IsIdle(actor, now),
	})
}

type idleThresholdRequest struct {
	Minutes int `json:"minutes"`
}

func (s *Server) HandleSetIdleThreshold(c echo.Context) error {
	var req idleThresholdRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, GenericError{Error: "BadRequest", Message: err.Error()})
	}
	err := s.engine.Presence.SetIdleThreshold(req.Minutes)
	var te *presence.ThresholdError
	if errors.As(err, &te) {
		return c.JSON(400, GenericError{Error: "InvalidThreshold", Message: err.Error()})
	} else if err != nil {
		return err
	}
	return c.JSON(200, idleThresholdRequest{Minutes: int(s.engine.Presence.IdleThreshold() / time.Minute)})
}
