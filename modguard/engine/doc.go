// Package engine is the mitigation coordinator: it runs activity events through exemption checks,
// per-channel rate tracking and warn/mute escalation, carries out the resulting actions on the
// platform, and keeps voice presence and idle relocation going.
//
// The Engine struct holds all collaborators as exported fields; see EngineTestFixture for a fully
// in-memory setup.
package engine
