// Package cachestore caches platform lookups (community metadata, member voice state) as JSON
// strings with a fixed TTL.
//
// Includes an interface and implementations using redis and in-process memory. Purge is used
// when an event tells us a cached answer went stale.
package cachestore
