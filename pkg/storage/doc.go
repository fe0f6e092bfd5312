// Package storage manages local beatmap storage.
//
// The songs directory of an osu! install holds one folder per beatmap set,
// named "{setId} {artist} - {title}". It is scanned once at startup to seed
// the download registry. Newly downloaded archives are written to a
// separate directory as "{setId}.osz" using a partial file and an atomic
// rename, so a half-written archive is never visible under its final name.
package storage
