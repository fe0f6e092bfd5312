// Package ratelimit paces outgoing requests to the beatmap mirror and the
// osu! API. It adapts golang.org/x/time/rate to a small Limiter interface so
// callers and tests can substitute their own implementation.
package ratelimit
