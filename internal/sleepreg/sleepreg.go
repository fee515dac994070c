// Package sleepreg implements the wake-time parsing and pruning layered
// over the catalog's sleep_entries table: accepting the absolute and
// relative input forms a caller can pass to the registry, and the
// looser premiere-string parsing the download coordinator needs when an
// item reports itself as not yet released.
package sleepreg

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cmlburnett/ydla/internal/catalogdb"
)

const timeLayout = "2006-01-02 15:04:05"

var relativePattern = regexp.MustCompile(`^([dhms])\+(\d+)$`)

// ParseWake parses one of the two accepted sleep(iid, t) input forms:
// an absolute "YYYY-MM-DD HH:MM:SS" UTC timestamp, or a relative
// "<unit>+N" expression (unit in d, h, m, s) computed against now.
func ParseWake(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)

	if m := relativePattern.FindStringSubmatch(input); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return time.Time{}, fmt.Errorf("sleepreg: invalid relative amount %q: %w", input, err)
		}
		return now.Add(unitDuration(m[1]) * time.Duration(n)), nil
	}

	t, err := time.Parse(timeLayout, input)
	if err != nil {
		return time.Time{}, fmt.Errorf("sleepreg: unrecognized wake time %q", input)
	}
	return t.UTC(), nil
}

func unitDuration(unit string) time.Duration {
	switch unit {
	case "d":
		return 24 * time.Hour
	case "h":
		return time.Hour
	case "m":
		return time.Minute
	case "s":
		return time.Second
	default:
		return 0
	}
}

// AutoSleepBuffer is added on top of a premiere's reported delay before
// the computed wake instant, to absorb clock skew and encoding/publish
// lag on the site's side once the premiere actually starts.
const AutoSleepBuffer = 2 * time.Hour

var premierePattern = regexp.MustCompile(`(?i)(\d+)\s*(second|minute|hour|day)s?`)

// ParsePremiereDelay parses the extractor's "Premieres in N unit" / "will
// begin in N unit" / "begin in a few moments" style messages into a
// duration. "a few moments" maps to one hour; anything else unrecognized
// maps to one day, matching the conservative fallback an unreleased-item
// classification needs when the message format drifts.
func ParsePremiereDelay(message string) time.Duration {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "a few moment") {
		return time.Hour
	}
	if m := premierePattern.FindStringSubmatch(message); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return premiereUnitDuration(m[2]) * time.Duration(n)
		}
	}
	return 24 * time.Hour
}

func premiereUnitDuration(unit string) time.Duration {
	switch strings.ToLower(unit) {
	case "second":
		return time.Second
	case "minute":
		return time.Minute
	case "hour":
		return time.Hour
	case "day":
		return 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Sleep prunes expired entries then inserts or updates the wake instant
// for iid, parsed from one of the accepted sleep(iid, t) forms.
func Sleep(tx *catalogdb.Tx, iid, input string, now time.Time) error {
	if _, err := tx.PruneSleep(now); err != nil {
		return err
	}
	wake, err := ParseWake(input, now)
	if err != nil {
		return err
	}
	return tx.PutSleep(iid, wake)
}

// Unsleep prunes expired entries then removes any sleep entry for iid.
func Unsleep(tx *catalogdb.Tx, iid string, now time.Time) error {
	if _, err := tx.PruneSleep(now); err != nil {
		return err
	}
	return tx.DeleteSleep(iid)
}

// AutoSleepUntilRelease prunes expired entries then inserts a sleep entry
// at now + the premiere's reported delay + AutoSleepBuffer, per the
// download coordinator's live/upcoming classification.
func AutoSleepUntilRelease(tx *catalogdb.Tx, iid, premiereMessage string, now time.Time) error {
	if _, err := tx.PruneSleep(now); err != nil {
		return err
	}
	delay := ParsePremiereDelay(premiereMessage)
	return tx.PutSleep(iid, now.Add(delay).Add(AutoSleepBuffer))
}

// IsSleeping prunes expired entries then reports whether iid currently
// has a not-yet-due sleep entry (spec's sleep-gate re-check).
func IsSleeping(tx *catalogdb.Tx, iid string, now time.Time) (bool, time.Time, error) {
	if _, err := tx.PruneSleep(now); err != nil {
		return false, time.Time{}, err
	}
	entry, err := tx.GetSleep(iid)
	if err != nil {
		return false, time.Time{}, err
	}
	if entry == nil {
		return false, time.Time{}, nil
	}
	if now.Before(entry.WakeInstant) {
		return true, entry.WakeInstant, nil
	}
	return false, time.Time{}, nil
}

// Skip marks an item skip=true, atomically clearing any sleep entry.
// It updates the item table only; a playlist's skip flag is not touched.
func Skip(tx *catalogdb.Tx, iid string) error {
	return tx.SetItemSkip(iid, true)
}

// UnskipItem clears the skip flag on an item.
func UnskipItem(tx *catalogdb.Tx, iid string) error {
	return tx.SetItemSkip(iid, false)
}
