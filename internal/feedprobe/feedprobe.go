// Package feedprobe locates and parses per-source lightweight feeds
// (the site's standard XML feed format) and reports whether a source has
// anything new without needing the heavier full-listing enumerator.
package feedprobe

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/net/html"

	"github.com/cmlburnett/ydla/internal/retry"
	"github.com/cmlburnett/ydla/internal/siteclient"
)

// Verdict is the outcome of probing a source's feed.
type Verdict int

const (
	// NoFeed means no feed could be located or fetched for this source;
	// the caller should fall back to the full-listing enumerator.
	NoFeed Verdict = iota
	// Fresh means every item in the feed is already known to the catalog.
	Fresh
	// IndicatesNew means the feed lists at least one item the catalog
	// does not yet have as a member of this source.
	IndicatesNew
)

// Result is the parsed content of one feed fetch.
type Result struct {
	Verdict  Verdict
	Title    string
	Uploader string
	// IIDs is the ordered sequence of item identifiers the feed lists,
	// most recent first, as the site's feed format emits them.
	IIDs []string
}

// pageURLTemplate returns the public page URL a feed link can be
// discovered from, for one of the site's three feed-eligible source
// variants. Playlists have no feed path and are handled by callers before
// reaching here.
func pageURLTemplate(variant, key string) (string, bool) {
	const base = "https://www.example-video-site.com"
	switch variant {
	case "user":
		return base + "/user/" + key, true
	case "channel_named":
		return base + "/c/" + key, true
	case "channel_unnamed":
		return base + "/channel/" + key, true
	default:
		return "", false
	}
}

// DiscoverFeedURL fetches the source's public page and walks its HTML
// looking for a <link> element advertising the feed MIME type. Unlike the
// control-flow-by-exception approach of stopping an HTML parse by
// throwing once a match is found, this walks the token stream only until
// the first match and returns it directly: Go has no equivalent
// "throw to escape a callback" idiom, and a tokenizer loop with an early
// return is the natural replacement.
func DiscoverFeedURL(ctx context.Context, client *http.Client, variant, key string) (string, bool, error) {
	pageURL, ok := pageURLTemplate(variant, key)
	if !ok {
		return "", false, nil
	}

	resp, err := siteclient.Get(ctx, client, nil, pageURL)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false, nil
	}

	href, ok := findFeedLink(resp.Body)
	return href, ok, nil
}

// findFeedLink walks an HTML token stream looking for the first <link>
// element advertising an RSS or Atom feed, returning its href as soon as it
// is found. Returns ok=false if the document has no such link or is malformed.
func findFeedLink(body io.Reader) (href string, ok bool) {
	tokenizer := html.NewTokenizer(body)
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			// io.EOF at end of document; anything else is a malformed
			// page, which we also treat as "feed not found" rather than
			// a hard error.
			return "", false
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := tokenizer.Token()
		if tok.Data != "link" {
			continue
		}
		var typ, linkHref string
		for _, a := range tok.Attr {
			switch a.Key {
			case "type":
				typ = a.Val
			case "href":
				linkHref = a.Val
			}
		}
		if (typ == "application/rss+xml" || typ == "application/atom+xml") && linkHref != "" {
			return linkHref, true
		}
	}
}

// atomFeed mirrors the site's standard feed namespaces: Atom for
// title/author/entry, plus the site's own videoId extension element.
type atomFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Title   string       `xml:"title"`
	Author  atomAuthor   `xml:"author"`
	Entries []atomEntry  `xml:"entry"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomEntry struct {
	VideoID string `xml:"videoId"`
}

// parseFeed decodes the site's XML feed body into a Result, without yet
// knowing which ids are already members (that comparison happens in Probe,
// which has catalog access).
func parseFeed(body io.Reader) (title, uploader string, iids []string, err error) {
	var feed atomFeed
	if err := xml.NewDecoder(body).Decode(&feed); err != nil {
		return "", "", nil, fmt.Errorf("feedprobe: decode feed: %w", err)
	}
	for _, e := range feed.Entries {
		if e.VideoID != "" {
			iids = append(iids, e.VideoID)
		}
	}
	return feed.Title, feed.Author.Name, iids, nil
}

// KnownMembers reports, for a given iid, whether it is already a catalog
// member of the source being probed. Probe calls this once per feed entry
// rather than taking a pre-built set, so callers backed by a database
// transaction can answer without materializing the whole membership table.
type KnownMembers func(iid string) (bool, error)

// Probe fetches and parses the feed for one source, retrying up to
// retry.MaxAttempts times on network-transient failures (connection
// reset, temporary DNS failure) per spec, and classifies the result
// against the catalog's current membership via known.
func Probe(ctx context.Context, client *http.Client, feedURL string, known KnownMembers) (Result, error) {
	var res Result
	err := retry.Do(ctx, retry.DefaultPolicy, retry.IsNetworkTransient, func() error {
		resp, getErr := siteclient.Get(ctx, client, nil, feedURL)
		if getErr != nil {
			return getErr
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			res = Result{Verdict: NoFeed}
			return nil
		}

		title, uploader, iids, parseErr := parseFeed(resp.Body)
		if parseErr != nil {
			res = Result{Verdict: NoFeed}
			return nil
		}

		verdict := Fresh
		for _, iid := range iids {
			isKnown, knownErr := known(iid)
			if knownErr != nil {
				return knownErr
			}
			if !isKnown {
				verdict = IndicatesNew
				break
			}
		}

		res = Result{Verdict: verdict, Title: title, Uploader: uploader, IIDs: iids}
		return nil
	})
	if err != nil {
		return Result{Verdict: NoFeed}, nil
	}
	return res, nil
}
