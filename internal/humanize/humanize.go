// Package humanize formats byte counts for progress logging and the
// --showpath CLI output.
package humanize

import "github.com/dustin/go-humanize"

// Bytes formats v as a human-readable binary-unit size (KiB/MiB/GiB/TiB).
func Bytes(v int64) string {
	return humanize.IBytes(uint64(v))
}
