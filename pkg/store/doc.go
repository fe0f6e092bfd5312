// Package store provides the durable JSON key-value file backing the
// identity cache.
//
// Writes go to "<path>.tmp", are fsynced, and then renamed over the
// original, so a crash mid-write leaves the previous contents intact.
package store
