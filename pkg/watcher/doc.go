// Package watcher runs the poll loop.
//
// Each round resolves any players still pending, fetches recent scores for
// every resolved player, reserves the beatmap sets not seen yet and
// downloads them. Between rounds the loop sleeps for PacingPerPlayer times
// the number of resolved players, which keeps the request rate against the
// osu! API roughly constant as the watch list grows.
//
// The loop moves through INIT, RESOLVING, FETCHING, DOWNLOADING and WAITING,
// and ends in SHUTDOWN where the identity cache is flushed and the HTTP
// clients are closed. Cancelling the context is a clean shutdown: requests
// already sent are allowed to complete.
package watcher
