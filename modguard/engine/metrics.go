package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "warden_event_duration_sec",
	Help: "Total duration of event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_event_processed",
	Help: "Number of events processed",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_event_errors",
	Help: "Number of events which failed processing",
}, []string{"type"})

var exemptCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_exempt_messages",
	Help: "Number of messages skipped because the author is exempt",
}, []string{"reason"})

var violationCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_rate_violations",
	Help: "Number of messages which exceeded the rate limit",
})

var warningCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_warnings",
	Help: "Number of warnings issued",
})

var muteCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_mutes",
	Help: "Number of automatic mutes applied",
})

var unmuteCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_unmutes",
	Help: "Number of mutes lifted, by timer or by hand",
}, []string{"source"})

var purgedMessageCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_purged_messages",
	Help: "Number of messages deleted after a mute",
})

var actionErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_action_errors",
	Help: "Number of platform actions which failed",
}, []string{"action"})

var notifyErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_notify_errors",
	Help: "Number of notices or alerts which could not be delivered",
}, []string{"kind"})

var auditErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_audit_errors",
	Help: "Number of moderation records which could not be persisted",
})

var modActionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_mod_actions",
	Help: "Number of moderation records persisted",
}, []string{"type"})

var voiceTransitionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_voice_transitions",
	Help: "Number of voice state changes, by transition",
}, []string{"transition"})

var idleMoveCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_idle_moves",
	Help: "Number of idle actors relocated",
})

var sweepRemovedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_sweep_removed",
	Help: "Number of state entries removed by the sweeper",
}, []string{"kind"})

var trackedEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "warden_tracked_entries",
	Help: "Number of live state entries, as of the last sweep",
}, []string{"kind"})
