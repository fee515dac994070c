// Package downloader implements the Download Coordinator: the per-item
// download lifecycle described in spec §4.G, from the sleep gate through
// post-download enrichment, the rename pass, and side-channel subtitle
// and chapter fetches.
package downloader

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cmlburnett/ydla/internal/catalogdb"
	"github.com/cmlburnett/ydla/internal/extproc"
	"github.com/cmlburnett/ydla/internal/naming"
	"github.com/cmlburnett/ydla/internal/retry"
	"github.com/cmlburnett/ydla/internal/siteclient"
	"github.com/cmlburnett/ydla/internal/sleepreg"
)

// TargetContainer is the canonical on-disk media container every
// downloaded item is rewritten to during the rename pass.
const TargetContainer = "mkv"

// SizeGateRatio is the minimum fraction of the largest advertised format
// size an existing file must reach to be considered "already satisfactory"
// by the size gate (step 3).
const SizeGateRatio = 0.8

// Status is the outcome of one RunOne call.
type Status int

const (
	StatusDownloaded Status = iota
	StatusAlreadySatisfactory
	StatusSleeping
	StatusMarkedSkip
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusAlreadySatisfactory:
		return "already-satisfactory"
	case StatusSleeping:
		return "sleeping"
	case StatusMarkedSkip:
		return "marked-skip"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Options configures one item's download.
type Options struct {
	ArchiveRoot        string
	RateLimitBps       int64
	FormatOverride     string
	Downloader         string
	CookiesPath        string
	AutoSleep          bool
	Force              bool
	PreferredLanguages []string
	HTTPClient         *http.Client
}

// Result reports what happened for one item.
type Result struct {
	IID        string
	Status     Status
	AnyRenamed bool
	WakeAt     time.Time
	Err        error
}

// RunOne executes the full per-item download lifecycle for iid.
func RunOne(ctx context.Context, store *catalogdb.Store, iid string, opts Options, now func() time.Time) Result {
	res := Result{IID: iid}

	n := now()
	sleeping, wake, err := checkSleepGate(store, iid, n)
	if err != nil {
		return errResult(res, err)
	}
	if sleeping {
		res.Status = StatusSleeping
		res.WakeAt = wake
		return res
	}

	it, preferredName, err := loadItem(store, iid)
	if err != nil {
		return errResult(res, err)
	}
	if it == nil {
		return errResult(res, fmt.Errorf("downloader: item %s not found", iid))
	}

	isTemp := it.Atime == nil
	var dir, base string
	if isTemp {
		dir, base = naming.FormatVNames(opts.ArchiveRoot, it.Dname, "", "", iid, "")
	} else {
		dir, base = naming.FormatVNames(opts.ArchiveRoot, it.Dname, it.Name, preferredName, iid, TargetContainer)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errResult(res, fmt.Errorf("downloader: mkdir %s: %w", dir, err))
	}

	mediaPath := filepath.Join(dir, base)
	if !isTemp {
		satisfied, gateErr := sizeGate(dir, base, mediaPath)
		if gateErr != nil {
			return errResult(res, gateErr)
		}
		if satisfied {
			res.Status = StatusAlreadySatisfactory
			return res
		}
	}

	var outputStem string
	if isTemp {
		outputStem = "TEMP-" + iid
	} else {
		outputStem = strings.TrimSuffix(base, "."+TargetContainer)
	}
	outputBase := strings.ReplaceAll(outputStem, "%", "%%") + ".%(ext)s"

	downloadErr := retry.Do(ctx, retry.DefaultPolicy, isDownloadTransient, func() error {
		return extproc.Download(ctx, extproc.DownloadOptions{
			IID:            iid,
			OutputBase:     outputBase,
			Dir:            dir,
			RateLimitBps:   opts.RateLimitBps,
			FormatOverride: opts.FormatOverride,
			Downloader:     opts.Downloader,
			CookiesPath:    opts.CookiesPath,
		})
	})
	if downloadErr != nil {
		return classifyDownloadError(store, res, downloadErr, opts, n)
	}

	anyRenamed := false
	if isTemp {
		enrichedDir, moved, enrichErr := enrichFromTemp(store, it, dir, opts.ArchiveRoot, n)
		if enrichErr != nil {
			return errResult(res, enrichErr)
		}
		dir = enrichedDir
		anyRenamed = moved
	}

	mediaBase, renamed, renameErr := renamePass(store, iid, dir)
	if renameErr != nil {
		return errResult(res, renameErr)
	}
	anyRenamed = anyRenamed || renamed
	if mediaBase == "" {
		mediaBase = base
	}

	if err := sideChannelFetches(store, iid, dir, mediaBase, opts, n); err != nil {
		return errResult(res, err)
	}

	if err := stampTimestamps(store, iid, n); err != nil {
		return errResult(res, err)
	}

	res.Status = StatusDownloaded
	res.AnyRenamed = anyRenamed
	return res
}

func errResult(res Result, err error) Result {
	res.Status = StatusError
	res.Err = err
	return res
}

func checkSleepGate(store *catalogdb.Store, iid string, now time.Time) (bool, time.Time, error) {
	tx, err := store.Begin()
	if err != nil {
		return false, time.Time{}, err
	}
	defer tx.Rollback()
	sleeping, wake, err := sleepreg.IsSleeping(tx, iid, now)
	if err != nil {
		return false, time.Time{}, err
	}
	if err := tx.Commit(); err != nil {
		return false, time.Time{}, err
	}
	return sleeping, wake, nil
}

func loadItem(store *catalogdb.Store, iid string) (*catalogdb.Item, string, error) {
	tx, err := store.Begin()
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback()
	it, err := tx.GetItem(iid)
	if err != nil {
		return nil, "", err
	}
	if it == nil {
		return nil, "", nil
	}
	preferred, err := tx.GetPreferredName(iid)
	if err != nil {
		return nil, "", err
	}
	return it, preferred, nil
}

// sizeGate implements step 3: if a file already exists and a sibling
// info.json lists format sizes, a current size at or above SizeGateRatio
// of the largest advertised format is "already satisfactory". Otherwise
// the existing file is removed so the download can proceed cleanly.
func sizeGate(dir, base, mediaPath string) (bool, error) {
	info, err := os.Stat(mediaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("downloader: stat %s: %w", mediaPath, err)
	}

	largest, ok := largestAdvertisedFormatSize(dir, base)
	if !ok || largest == 0 {
		if err := os.Remove(mediaPath); err != nil {
			return false, fmt.Errorf("downloader: remove stale file %s: %w", mediaPath, err)
		}
		return false, nil
	}

	if float64(info.Size()) >= SizeGateRatio*float64(largest) {
		return true, nil
	}
	if err := os.Remove(mediaPath); err != nil {
		return false, fmt.Errorf("downloader: remove undersized file %s: %w", mediaPath, err)
	}
	return false, nil
}

func largestAdvertisedFormatSize(dir, base string) (int64, bool) {
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	matches, _ := filepath.Glob(filepath.Join(dir, stem+"*.info.json"))
	if len(matches) == 0 {
		return 0, false
	}
	doc, err := readInfoJSON(matches[0])
	if err != nil {
		return 0, false
	}
	formats, ok := doc["formats"].([]any)
	if !ok {
		return 0, false
	}
	var largest int64
	for _, f := range formats {
		m, ok := f.(map[string]any)
		if !ok {
			continue
		}
		if sz, ok := m["filesize"].(float64); ok && int64(sz) > largest {
			largest = int64(sz)
		}
	}
	return largest, largest > 0
}

func readInfoJSON(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

var networkTransientStderr = []string{
	"connection reset",
	"temporary failure in name resolution",
	"timed out",
	"connection refused",
}

func isDownloadTransient(err error) bool {
	var dlErr *extproc.DownloadError
	if !asDownloadError(err, &dlErr) {
		return retry.IsNetworkTransient(err)
	}
	lower := strings.ToLower(dlErr.Stderr)
	for _, substr := range networkTransientStderr {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}

func asDownloadError(err error, target **extproc.DownloadError) bool {
	de, ok := err.(*extproc.DownloadError)
	if ok {
		*target = de
	}
	return ok
}

// classifyDownloadError implements step 5's error-message classification.
func classifyDownloadError(store *catalogdb.Store, res Result, err error, opts Options, now time.Time) Result {
	var dlErr *extproc.DownloadError
	if !asDownloadError(err, &dlErr) {
		return errResult(res, err)
	}
	msg := dlErr.Stderr

	switch {
	case containsAny(msg, "Video unavailable", "members-only", "confirm your age", "Private video"):
		tx, txErr := store.Begin()
		if txErr != nil {
			return errResult(res, txErr)
		}
		defer tx.Rollback()
		if markErr := tx.SetItemSkip(res.IID, true); markErr != nil {
			return errResult(res, markErr)
		}
		if commitErr := tx.Commit(); commitErr != nil {
			return errResult(res, commitErr)
		}
		res.Status = StatusMarkedSkip
		return res

	case containsAny(msg, "live video", "Premieres in", "will begin in", "begin in a few moments"):
		if !opts.AutoSleep {
			return errResult(res, err)
		}
		tx, txErr := store.Begin()
		if txErr != nil {
			return errResult(res, txErr)
		}
		defer tx.Rollback()
		if sleepErr := sleepreg.AutoSleepUntilRelease(tx, res.IID, msg, now); sleepErr != nil {
			return errResult(res, sleepErr)
		}
		if commitErr := tx.Commit(); commitErr != nil {
			return errResult(res, commitErr)
		}
		res.Status = StatusSleeping
		return res

	default:
		return errResult(res, err)
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// enrichFromTemp implements step 6: locate the generated info.json for a
// TEMP-path download, parse metadata, and if the owning source was the
// MISCELLANEOUS sentinel, rewrite dname to the channel id and physically
// relocate the files into their new shard directory.
func enrichFromTemp(store *catalogdb.Store, it *catalogdb.Item, dir, archiveRoot string, now time.Time) (effectiveDir string, movedFiles bool, err error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*-"+it.IID+".info.json"))
	if err != nil {
		return dir, false, fmt.Errorf("downloader: glob info.json for %s: %w", it.IID, err)
	}
	if len(matches) == 0 {
		return dir, false, fmt.Errorf("downloader: no info.json found for %s in %s", it.IID, dir)
	}
	doc, err := readInfoJSON(matches[0])
	if err != nil {
		return dir, false, err
	}

	title, _ := doc["title"].(string)
	uploader, _ := doc["uploader"].(string)
	durationF, _ := doc["duration"].(float64)
	channelID, _ := doc["channel_id"].(string)
	name := naming.TitleToName(title)
	ptime := parseUploadDate(doc)
	thumbs := extractThumbnails(doc)

	newDname := it.Dname
	if it.Dname == catalogdb.MiscellaneousSource && channelID != "" {
		newDname = channelID
		newDir := filepath.Join(archiveRoot, newDname, naming.ShardDir(it.IID))
		if mkErr := os.MkdirAll(newDir, 0o755); mkErr != nil {
			return dir, false, fmt.Errorf("downloader: mkdir %s: %w", newDir, mkErr)
		}
		if mvErr := moveItemFiles(dir, newDir, it.IID); mvErr != nil {
			return dir, false, mvErr
		}
		movedFiles = true
		dir = newDir
	}

	tx, err := store.Begin()
	if err != nil {
		return dir, movedFiles, err
	}
	defer tx.Rollback()

	it.Title = title
	it.Name = name
	it.Uploader = uploader
	it.DurationS = int64(durationF)
	it.Dname = newDname
	it.Thumbnails = thumbs
	if ptime != nil {
		it.Ptime = ptime
	}
	if err := tx.UpdateItem(*it); err != nil {
		return dir, movedFiles, err
	}
	if err := tx.Commit(); err != nil {
		return dir, movedFiles, err
	}
	return dir, movedFiles, nil
}

// parseUploadDate reads the extractor's "upload_date" field (a yt-dlp
// "YYYYMMDD" string) and returns the publish time it names, or nil if the
// field is absent or malformed.
func parseUploadDate(doc map[string]any) *time.Time {
	s, _ := doc["upload_date"].(string)
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation("20060102", s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

func extractThumbnails(doc map[string]any) []catalogdb.Thumbnail {
	raw, ok := doc["thumbnails"].([]any)
	if !ok {
		return nil
	}
	out := make([]catalogdb.Thumbnail, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		url, _ := m["url"].(string)
		if url == "" {
			continue
		}
		w, _ := m["width"].(float64)
		h, _ := m["height"].(float64)
		out = append(out, catalogdb.Thumbnail{URL: url, Width: int(w), Height: int(h)})
	}
	return out
}

func moveItemFiles(oldDir, newDir, iid string) error {
	entries, err := os.ReadDir(oldDir)
	if err != nil {
		return fmt.Errorf("downloader: read dir %s: %w", oldDir, err)
	}
	for _, e := range entries {
		if !strings.Contains(e.Name(), iid) {
			continue
		}
		from := filepath.Join(oldDir, e.Name())
		to := filepath.Join(newDir, e.Name())
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("downloader: move %s to %s: %w", from, to, err)
		}
	}
	return nil
}

var numberedSuffix = regexp.MustCompile(`_([0-5])\.([A-Za-z0-9]+)$`)
var langSuffix = regexp.MustCompile(`\.(subtitle|caption)\.([A-Za-z-]+)\.([A-Za-z0-9]+)$`)

// renamePass implements step 7: walk every file in the shard directory
// whose name contains iid, recognize or probe its suffix, and rewrite it
// to "<new-name>-<iid><suffix>". Returns the media file's base name and
// whether any file in the directory was actually renamed.
func renamePass(store *catalogdb.Store, iid, dir string) (string, bool, error) {
	tx, err := store.Begin()
	if err != nil {
		return "", false, err
	}
	it, err := tx.GetItem(iid)
	tx.Rollback()
	if err != nil {
		return "", false, err
	}
	if it == nil {
		return "", false, fmt.Errorf("downloader: item %s vanished during rename pass", iid)
	}

	preferred, err := preferredNameFor(store, iid)
	if err != nil {
		return "", false, err
	}
	effective := naming.EffectiveName(it.Name, preferred)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, fmt.Errorf("downloader: read dir %s: %w", dir, err)
	}

	var mediaBase string
	anyRenamed := false
	for _, e := range entries {
		name := e.Name()
		if !strings.Contains(name, iid) {
			continue
		}
		if strings.HasPrefix(name, ".") {
			continue
		}

		suffix, isMedia, err := classifySuffix(filepath.Join(dir, name))
		if err != nil {
			return "", false, err
		}

		newName := effective + "-" + iid
		if suffix != "" {
			if !strings.HasPrefix(suffix, "_") {
				newName += "."
			}
			newName += suffix
		}
		if newName == name {
			if isMedia {
				mediaBase = name
			}
			continue
		}

		from := filepath.Join(dir, name)
		if _, statErr := os.Stat(from); os.IsNotExist(statErr) {
			// classifySuffix transmuxed a bare file into "<name>.<suffix>"
			// and removed the original.
			from += "." + suffix
		}
		to := filepath.Join(dir, newName)
		if err := os.Rename(from, to); err != nil {
			return "", false, fmt.Errorf("downloader: rename %s to %s: %w", from, to, err)
		}
		anyRenamed = true
		if isMedia {
			mediaBase = newName
		}
	}

	return mediaBase, anyRenamed, nil
}

func preferredNameFor(store *catalogdb.Store, iid string) (string, error) {
	tx, err := store.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	return tx.GetPreferredName(iid)
}

// classifySuffix determines the suffix a file in the shard directory
// should carry, and whether it is the item's media file (true once its
// suffix is the target container).
func classifySuffix(path string) (suffix string, isMedia bool, err error) {
	name := filepath.Base(path)

	switch {
	case strings.HasSuffix(name, ".info.json"):
		return "info.json", false, nil
	case strings.HasSuffix(name, ".json"):
		return "info.json", false, nil
	case langSuffix.MatchString(name):
		m := langSuffix.FindStringSubmatch(name)
		return m[1] + "." + m[2] + "." + m[3], false, nil
	case numberedSuffix.MatchString(name):
		m := numberedSuffix.FindStringSubmatch(name)
		return "_" + m[1] + "." + m[2], false, nil
	}

	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext != "" {
		if ext == TargetContainer {
			return TargetContainer, true, nil
		}
		return ext, false, nil
	}

	// No recognizable suffix: probe content type.
	f, openErr := os.Open(path)
	if openErr != nil {
		return "", false, fmt.Errorf("downloader: open %s: %w", path, openErr)
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	contentType := http.DetectContentType(buf[:n])

	if strings.Contains(contentType, "video/mp4") {
		if err := transmuxToContainer(path); err != nil {
			return "", false, err
		}
		return TargetContainer, true, nil
	}
	return "", false, fmt.Errorf("downloader: %s has no recognizable suffix and content-type %q is not a known media type", path, contentType)
}

// transmuxToContainer invokes the external media tool to remux an MP4
// into the target container, then deletes the original.
func transmuxToContainer(path string) error {
	target := strings.TrimSuffix(path, filepath.Ext(path)) + "." + TargetContainer
	if err := extproc.Transmux(context.Background(), path, target); err != nil {
		return fmt.Errorf("downloader: transmux %s: %w", path, err)
	}
	return os.Remove(path)
}

// sideChannelFetches implements step 8: subtitle/caption downloads for
// each preferred language, plus chapter extraction from info.json.
func sideChannelFetches(store *catalogdb.Store, iid, dir, mediaBase string, opts Options, now time.Time) error {
	stem := strings.TrimSuffix(mediaBase, "."+TargetContainer)
	matches, _ := filepath.Glob(filepath.Join(dir, "*-"+iid+".info.json"))
	if len(matches) == 0 {
		return nil
	}
	doc, err := readInfoJSON(matches[0])
	if err != nil {
		return err
	}

	client := opts.HTTPClient
	if client == nil {
		client = siteclient.Default()
	}

	langs := opts.PreferredLanguages
	if len(langs) == 0 {
		langs = []string{""}
	}

	if err := fetchTracks(client, doc, "subtitles", "subtitle", dir, stem, iid, langs, opts.Force); err != nil {
		return err
	}
	if err := fetchTracks(client, doc, "automatic_captions", "caption", dir, stem, iid, langs, opts.Force); err != nil {
		return err
	}

	chapters := extractChapters(doc)
	if len(chapters) > 0 {
		if err := persistChaptersIfAbsent(store, iid, chapters); err != nil {
			return err
		}
	}
	return nil
}

func fetchTracks(client *http.Client, doc map[string]any, docKey, kind, dir, stem, iid string, langs []string, force bool) error {
	tracksRaw, ok := doc[docKey].(map[string]any)
	if !ok {
		return nil
	}
	for _, lang := range langs {
		for trackLang, entriesRaw := range tracksRaw {
			if lang != "" && trackLang != lang {
				continue
			}
			entries, ok := entriesRaw.([]any)
			if !ok || len(entries) == 0 {
				continue
			}
			first, ok := entries[0].(map[string]any)
			if !ok {
				continue
			}
			url, _ := first["url"].(string)
			ext, _ := first["ext"].(string)
			if url == "" {
				continue
			}
			dest := filepath.Join(dir, fmt.Sprintf("%s.%s.%s.%s", stem, kind, trackLang, ext))
			if !force {
				if _, statErr := os.Stat(dest); statErr == nil {
					continue
				}
			}
			if err := downloadToFile(client, url, dest); err != nil {
				return err
			}
		}
	}
	return nil
}

func downloadToFile(client *http.Client, url, dest string) error {
	resp, err := siteclient.Get(context.Background(), client, nil, url)
	if err != nil {
		return fmt.Errorf("downloader: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("downloader: create %s: %w", dest, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("downloader: write %s: %w", dest, err)
	}
	return w.Flush()
}

// extractChapters reads info.json's chapter list, filling a leading
// "0:00 Start" entry if the first chapter isn't already at zero.
func extractChapters(doc map[string]any) []catalogdb.Chapter {
	raw, ok := doc["chapters"].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	var chapters []catalogdb.Chapter
	for _, c := range raw {
		m, ok := c.(map[string]any)
		if !ok {
			continue
		}
		start, _ := m["start_time"].(float64)
		title, _ := m["title"].(string)
		chapters = append(chapters, catalogdb.Chapter{
			Start: time.Duration(start) * time.Second,
			Label: title,
		})
	}
	if len(chapters) == 0 {
		return nil
	}
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Start < chapters[j].Start })
	if chapters[0].Start != 0 {
		chapters = append([]catalogdb.Chapter{{Start: 0, Label: "Start"}}, chapters...)
	}
	return chapters
}

func persistChaptersIfAbsent(store *catalogdb.Store, iid string, chapters []catalogdb.Chapter) error {
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	it, err := tx.GetItem(iid)
	if err != nil {
		return err
	}
	if it == nil || len(it.Chapters) > 0 {
		return nil
	}
	it.Chapters = chapters
	if err := tx.UpdateItem(*it); err != nil {
		return err
	}
	return tx.Commit()
}

func stampTimestamps(store *catalogdb.Store, iid string, now time.Time) error {
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	it, err := tx.GetItem(iid)
	if err != nil {
		return err
	}
	if it == nil {
		return fmt.Errorf("downloader: item %s vanished before timestamp stamp", iid)
	}
	it.Utime = &now
	it.Atime = &now
	if err := tx.UpdateItem(*it); err != nil {
		return err
	}
	return tx.Commit()
}
