package modguard

import (
	"github.com/wardenbot/warden/modguard/countstore"
	"github.com/wardenbot/warden/modguard/engine"
	"github.com/wardenbot/warden/modguard/settings"
)

type Engine = engine.Engine
type Event = engine.Event
type MessageEvent = engine.MessageEvent
type ChannelStateEvent = engine.ChannelStateEvent

type Notifier = engine.Notifier
type SlackNotifier = engine.SlackNotifier

type Scope = settings.Scope
type Effective = settings.Effective

var (
	PeriodTotal = countstore.PeriodTotal
	PeriodDay   = countstore.PeriodDay
	PeriodHour  = countstore.PeriodHour

	ActionMute = settings.ActionMute
	ActionWarn = settings.ActionWarn
)
