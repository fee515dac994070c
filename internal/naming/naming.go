// Package naming implements the archive's deterministic title-to-filename
// and shard-path conventions. Every function here is pure: given the same
// inputs it always returns the same output, so the catalog never has to
// store a name it can't regenerate.
package naming

import (
	"fmt"
	"path"
	"strings"

	"github.com/cmlburnett/ydla/internal/ydlerrors"
)

// NothingName is the fallback TitleToName result for a title that reduces
// to the empty string after canonicalization.
const NothingName = "NOTHING"

// TEMPName is the placeholder effective name used by the download
// coordinator before an item's title is known.
const TEMPName = "TEMP"

// TitleToName translates a video title into a filesystem-safe name.
// It transliterates a fixed set of Latin-1 accented letters to their ASCII
// counterparts, drops any remaining non-ASCII runes, removes leading dots
// (so the shell glob won't treat the file as hidden), folds a few
// punctuation marks to a hyphen, deletes a few others outright, and
// collapses runs of spaces to one. An empty result maps to NothingName rather
// than an empty string, since an empty name can't form a valid path
// component.
func TitleToName(title string) string {
	t := toASCII(title)
	t = strings.TrimLeft(t, ".")

	replacer := strings.NewReplacer(
		":", "-",
		"/", "-",
		"\\", "-",
		"!", "",
		"?", "",
		"|", "",
	)
	t = replacer.Replace(t)

	for strings.Contains(t, "  ") {
		t = strings.ReplaceAll(t, "  ", " ")
	}
	t = strings.TrimSpace(t)

	if t == "" {
		return NothingName
	}
	return t
}

// latin1Translit maps the Latin-1 Supplement's accented letters to their
// plain-ASCII counterparts. Anything outside this table that isn't already
// ASCII is dropped rather than guessed at.
var latin1Translit = map[rune]rune{
	'À': 'A', 'Á': 'A', 'Â': 'A', 'Ã': 'A', 'Ä': 'A', 'Å': 'A',
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a',
	'Ç': 'C', 'ç': 'c',
	'È': 'E', 'É': 'E', 'Ê': 'E', 'Ë': 'E',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'Ì': 'I', 'Í': 'I', 'Î': 'I', 'Ï': 'I',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'Ñ': 'N', 'ñ': 'n',
	'Ò': 'O', 'Ó': 'O', 'Ô': 'O', 'Õ': 'O', 'Ö': 'O',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'Ù': 'U', 'Ú': 'U', 'Û': 'U', 'Ü': 'U',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'Ý': 'Y', 'ý': 'y', 'ÿ': 'y',
	'Æ': 'A', 'æ': 'a',
	'Œ': 'O', 'œ': 'o',
	'Ø': 'O', 'ø': 'o',
	'Ð': 'D', 'ð': 'd',
	'Þ': 'T', 'þ': 't',
	'ß': 's',
}

// toASCII transliterates the Latin-1 accented letters in latin1Translit to
// their ASCII counterparts, then drops any rune still outside the printable
// ASCII range, mirroring Python's str.encode('ascii', errors='ignore') once
// the fixed transliteration table has had a chance to run.
func toASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := latin1Translit[r]; ok {
			r = repl
		}
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AliasCoerce validates a user-supplied preferred-name alias. Aliases must
// reduce to a non-empty, purely alphanumeric ASCII string; anything else is
// rejected with a ydlerrors.InvalidAlias rather than silently mangled, since
// an alias is an explicit user override and deserves a clear error instead
// of surprise renaming.
func AliasCoerce(alias string) (string, error) {
	a := toASCII(alias)
	if a == "" || !isAlnum(a) {
		return "", ydlerrors.InvalidAlias{Alias: alias, Cause: fmt.Errorf("must be alphanumeric ASCII")}
	}
	return a, nil
}

func isAlnum(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

// ShardDir returns the single-character shard subdirectory an item's files
// live under: the first character of the item's id, taken verbatim (the
// site's id alphabet is case-sensitive, so 'A' and 'a' are distinct
// shards). Sharding keeps any one directory from accumulating every file
// belonging to a source.
func ShardDir(iid string) string {
	if iid == "" {
		return "_"
	}
	return iid[:1]
}

// EffectiveName resolves which name wins for path formatting: an explicit
// alias beats the canonical name, which beats the TEMP placeholder used
// before a title is known.
func EffectiveName(name, alias string) string {
	if alias != "" {
		return alias
	}
	if name != "" {
		return name
	}
	return TEMPName
}

// FormatVNames returns the directory and file base name for an item's
// on-disk files, rooted at archiveRoot: dir = <root>/<dname>/<shard>,
// file = "<effective>-<iid>[.suffix]". suffix is the file extension
// without a leading dot; an empty suffix omits it (used to glob all files
// sharing the item's name stem).
func FormatVNames(archiveRoot, dname, name, alias, iid, suffix string) (dir, base string) {
	dir = path.Join(archiveRoot, dname, ShardDir(iid))
	effective := EffectiveName(name, alias)
	if suffix == "" {
		base = fmt.Sprintf("%s-%s", effective, iid)
	} else {
		base = fmt.Sprintf("%s-%s.%s", effective, iid, suffix)
	}
	return dir, base
}

// FormatVPath joins FormatVNames into a single path.
func FormatVPath(archiveRoot, dname, name, alias, iid, suffix string) string {
	dir, base := FormatVNames(archiveRoot, dname, name, alias, iid, suffix)
	return path.Join(dir, base)
}
