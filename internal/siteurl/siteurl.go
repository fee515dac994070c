// Package siteurl parses registration URLs for the site. It accepts only
// https URLs against a fixed host allow-list, the same SSRF-guarding shape
// the rest of the stack uses for any URL taken from outside the process.
package siteurl

import (
	"fmt"
	"net/url"
	"strings"
)

// allowedHosts is the fixed set of hosts registration URLs may name.
var allowedHosts = map[string]bool{
	"www.example-video-site.com": true,
	"example-video-site.com":     true,
	"m.example-video-site.com":   true,
}

// Kind identifies which of the four registerable URL shapes a parsed URL
// matched.
type Kind int

const (
	KindUnknown Kind = iota
	KindWatch        // /watch?v=X — a single item
	KindPlaylist     // /playlist?list=X
	KindUser         // /user/X
	KindChannel      // /c/X or /channel/X
)

// Parsed is the result of successfully classifying a registration URL.
type Parsed struct {
	Kind Kind
	// Key is the id extracted from the URL: the video id for KindWatch,
	// the playlist id for KindPlaylist, the channel/user slug otherwise.
	Key string
	// Unnamed reports whether the channel was addressed via /channel/X
	// (an opaque channel id, the "unnamed-channel" source variant) rather
	// than /c/X (a human-readable handle, the "named-channel" variant).
	Unnamed bool
}

// Parse validates and classifies a registration URL. It rejects anything
// other than https against the host allow-list, and strips a trailing
// "/videos" segment before matching the path shape.
func Parse(raw string) (Parsed, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Parsed{}, fmt.Errorf("siteurl: invalid URL: %w", err)
	}
	if u.Scheme != "https" {
		return Parsed{}, fmt.Errorf("siteurl: scheme %q not allowed", u.Scheme)
	}
	if !allowedHosts[strings.ToLower(u.Host)] {
		return Parsed{}, fmt.Errorf("siteurl: host %q not allowed", u.Host)
	}

	path := strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/videos")
	path = strings.TrimPrefix(path, "/")
	segs := strings.Split(path, "/")

	switch {
	case path == "watch":
		v := u.Query().Get("v")
		if v == "" {
			return Parsed{}, fmt.Errorf("siteurl: watch URL missing v parameter")
		}
		return Parsed{Kind: KindWatch, Key: v}, nil

	case path == "playlist":
		list := u.Query().Get("list")
		if list == "" {
			return Parsed{}, fmt.Errorf("siteurl: playlist URL missing list parameter")
		}
		return Parsed{Kind: KindPlaylist, Key: list}, nil

	case len(segs) == 2 && segs[0] == "user":
		if segs[1] == "" {
			return Parsed{}, fmt.Errorf("siteurl: user URL missing name")
		}
		return Parsed{Kind: KindUser, Key: segs[1]}, nil

	case len(segs) == 2 && segs[0] == "c":
		if segs[1] == "" {
			return Parsed{}, fmt.Errorf("siteurl: named-channel URL missing name")
		}
		return Parsed{Kind: KindChannel, Key: segs[1]}, nil

	case len(segs) == 2 && segs[0] == "channel":
		if segs[1] == "" {
			return Parsed{}, fmt.Errorf("siteurl: unnamed-channel URL missing id")
		}
		return Parsed{Kind: KindChannel, Key: segs[1], Unnamed: true}, nil

	default:
		return Parsed{}, fmt.Errorf("siteurl: unrecognized path %q", u.Path)
	}
}
