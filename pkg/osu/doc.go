// Package osu is a minimal osu! API client covering the two calls the
// watcher needs: resolving a display name (v1 get_user) and listing a
// user's recent scores (v2 /users/{id}/scores/recent).
package osu
