// Command ydla catalogs subscribed sources on the site, discovers and
// enriches new items, downloads them through an external tool, and
// projects the archive as a read-only FUSE tree.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cmlburnett/ydla/internal/catalogdb"
	"github.com/cmlburnett/ydla/internal/downloader"
	"github.com/cmlburnett/ydla/internal/extproc"
	"github.com/cmlburnett/ydla/internal/hooks"
	"github.com/cmlburnett/ydla/internal/humanize"
	"github.com/cmlburnett/ydla/internal/itemsync"
	"github.com/cmlburnett/ydla/internal/naming"
	"github.com/cmlburnett/ydla/internal/siteclient"
	"github.com/cmlburnett/ydla/internal/siteurl"
	"github.com/cmlburnett/ydla/internal/sleepreg"
	"github.com/cmlburnett/ydla/internal/syncrun"
	"github.com/cmlburnett/ydla/internal/vfs"
	"github.com/cmlburnett/ydla/internal/ydlaconfig"
)

func main() {
	catalogPath := flag.String("f", "", "path to catalog database (default: env YDLA_CATALOG or ydl.db)")
	archiveRoot := flag.String("archive", "", "root of the on-disk media tree (default: env YDLA_ARCHIVE_ROOT)")
	debug := flag.Bool("debug", false, "verbose logging")
	envFile := flag.String("envfile", ".env", "optional .env file to seed configuration from")

	register := flag.String("register", "", "register a source from its site URL")
	list := flag.Bool("list", false, "list registered sources")
	listAll := flag.Bool("list-all", false, "list registered sources with their member items")
	info := flag.String("info", "", "comma-separated item ids to print catalog facts for")
	showPath := flag.String("showpath", "", "comma-separated item ids to print computed on-disk paths for")

	setPreferred := flag.String("set-preferred-name", "", "iid=name")
	setAlias := flag.String("set-alias", "", "channel=alias")
	markSkip := flag.String("skip", "", "comma-separated iids/playlist ids to mark skip")
	markUnskip := flag.String("unskip", "", "comma-separated iids/playlist ids to clear skip")
	sleepSpec := flag.String("sleep", "", "iid=when (e.g. d+3, h+12, or \"YYYY-MM-DD HH:MM:SS\" UTC)")
	unsleep := flag.String("unsleep", "", "comma-separated iids to wake immediately")

	registerHook := flag.String("register-hook", "", "module id to add to the hook dispatch order")
	unregisterHook := flag.String("unregister-hook", "", "module id to remove from the hook dispatch order")
	notify := flag.Bool("notify", false, "dispatch a Pushover notification through the hook registry on batch completion")

	syncLists := flag.Bool("sync-lists", false, "run the sync orchestrator over every registered source")
	syncItems := flag.Bool("sync-items", false, "enrich pending items via the extractor")
	download := flag.Bool("download", false, "download pending items")
	ignoreOld := flag.Bool("ignore-old", false, "restrict sync/download to sources/items never touched before")
	onlyKeys := flag.String("keys", "", "comma-separated iid/source keys to restrict sync-items/download to")

	mount := flag.String("fuse", "", "mount the archive read-only at this path and block until interrupted")
	relative := flag.Bool("relative", false, "render FUSE symlink targets relative to the mount point")

	stubs := []*string{
		flag.String("convert", "", "not supported by this build"),
		flag.String("split", "", "not supported by this build"),
		flag.String("chapterize", "", "not supported by this build"),
		flag.String("copy", "", "not supported by this build"),
	}

	flag.Parse()

	for _, stub := range stubs {
		if *stub != "" {
			fmt.Fprintln(os.Stderr, "not supported by this build")
			os.Exit(1)
		}
	}

	if err := ydlaconfig.LoadEnvFile(*envFile); err != nil {
		log.Fatalf("load env file: %v", err)
	}
	cfg := ydlaconfig.Load()
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}
	if *archiveRoot != "" {
		cfg.ArchiveRoot = *archiveRoot
	}
	if *debug {
		cfg.Debug = true
	}
	extproc.ExtractorBin = cfg.ExtractorBin
	extproc.DownloaderBin = cfg.DownloaderBin
	siteclient.GlobalHostLimiter = siteclient.NewHostLimiter(cfg.HostRatePerS, cfg.HostRateBurst)

	store, err := catalogdb.Open(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := hooks.NewRegistry()
	if cfg.PushoverToken != "" && cfg.PushoverUser != "" {
		registry.Add("pushover", hooks.NewPushoverHandler(hooks.PushoverConfig{
			Token: cfg.PushoverToken,
			User:  cfg.PushoverUser,
		}, nil))
	}

	now := func() time.Time { return time.Now().UTC() }

	// Registration and mutation actions run first, each its own
	// short-lived transaction, so later read/report/batch actions in this
	// invocation observe their effects.
	if *register != "" {
		if err := runRegister(store, *register, now()); err != nil {
			log.Fatalf("register: %v", err)
		}
	}
	if *setPreferred != "" {
		if err := runSetPreferred(store, *setPreferred); err != nil {
			log.Fatalf("set-preferred-name: %v", err)
		}
	}
	if *setAlias != "" {
		if err := runSetAlias(store, *setAlias); err != nil {
			log.Fatalf("set-alias: %v", err)
		}
	}
	if *markSkip != "" {
		if err := runSetSkip(store, *markSkip, true); err != nil {
			log.Fatalf("skip: %v", err)
		}
	}
	if *markUnskip != "" {
		if err := runSetSkip(store, *markUnskip, false); err != nil {
			log.Fatalf("unskip: %v", err)
		}
	}
	if *sleepSpec != "" {
		if err := runSleep(store, *sleepSpec, now()); err != nil {
			log.Fatalf("sleep: %v", err)
		}
	}
	if *unsleep != "" {
		if err := runUnsleep(store, *unsleep, now()); err != nil {
			log.Fatalf("unsleep: %v", err)
		}
	}
	if *registerHook != "" {
		if err := runHookRegistration(store, *registerHook, true); err != nil {
			log.Fatalf("register-hook: %v", err)
		}
	}
	if *unregisterHook != "" {
		if err := runHookRegistration(store, *unregisterHook, false); err != nil {
			log.Fatalf("unregister-hook: %v", err)
		}
	}

	// Read-only reporting actions.
	if *list || *listAll {
		if err := runList(store, *listAll); err != nil {
			log.Fatalf("list: %v", err)
		}
	}
	if *info != "" {
		if err := runInfo(store, splitCSV(*info)); err != nil {
			log.Fatalf("info: %v", err)
		}
	}
	if *showPath != "" {
		if err := runShowPath(store, cfg.ArchiveRoot, splitCSV(*showPath)); err != nil {
			log.Fatalf("showpath: %v", err)
		}
	}

	// Batch actions.
	if *syncLists {
		summary, err := syncrun.Run(ctx, store, siteclient.Default(), syncrun.Options{
			Keys:      splitCSV(*onlyKeys),
			IgnoreOld: *ignoreOld,
			UseFeed:   true,
		}, now)
		res := hooks.BatchResult{Label: "sync-lists", Done: summary.Done, Skipped: summary.Skipped, Errors: summary.Errors, Err: err}
		log.Printf("sync-lists: %s", res.Message())
		if *notify {
			registry.Dispatch(ctx, store, hooks.PointSyncComplete, res)
		}
		if err != nil {
			log.Fatalf("sync-lists: %v", err)
		}
	}
	if *syncItems {
		summary, err := itemsync.Run(ctx, store, itemsync.Options{
			Keys:      splitCSV(*onlyKeys),
			IgnoreOld: *ignoreOld,
		}, now)
		res := hooks.BatchResult{Label: "sync-items", Done: summary.Done, Skipped: 0, Errors: len(summary.Errors), Err: err}
		log.Printf("sync-items: %s", res.Message())
		if *notify {
			registry.Dispatch(ctx, store, hooks.PointItemSyncComplete, res)
		}
		if err != nil {
			log.Fatalf("sync-items: %v", err)
		}
	}
	if *download {
		summary := runDownload(ctx, store, cfg, splitCSV(*onlyKeys), *ignoreOld, now)
		res := hooks.BatchResult{Label: "download", Done: summary.done, Skipped: summary.skipped, Errors: summary.errors}
		log.Printf("download: %s", res.Message())
		if *notify {
			registry.Dispatch(ctx, store, hooks.PointDownloadComplete, res)
		}
	}

	if *mount != "" {
		log.Printf("mounting archive at %s", *mount)
		if err := vfs.Mount(*mount, store, vfs.Options{
			ArchiveRoot: cfg.ArchiveRoot,
			Relative:    *relative,
			Debug:       cfg.Debug,
		}); err != nil {
			log.Fatalf("mount: %v", err)
		}
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitKV(s string) (string, string, error) {
	idx := strings.Index(s, "=")
	if idx <= 0 {
		return "", "", fmt.Errorf("expected key=value, got %q", s)
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+1:]), nil
}

func runRegister(store *catalogdb.Store, rawURL string, at time.Time) error {
	parsed, err := siteurl.Parse(rawURL)
	if err != nil {
		return err
	}
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	switch parsed.Kind {
	case siteurl.KindUser:
		err = tx.AddUser(parsed.Key, at)
	case siteurl.KindPlaylist:
		err = tx.AddPlaylist(parsed.Key, at)
	case siteurl.KindChannel:
		if parsed.Unnamed {
			err = tx.AddChannelUnnamed(parsed.Key, at)
		} else {
			err = tx.AddChannelNamed(parsed.Key, at)
		}
	default:
		return fmt.Errorf("cannot register a single-item URL as a source")
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func runSetPreferred(store *catalogdb.Store, spec string) error {
	iid, name, err := splitKV(spec)
	if err != nil {
		return err
	}
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.SetPreferredName(iid, name); err != nil {
		return err
	}
	return tx.Commit()
}

func runSetAlias(store *catalogdb.Store, spec string) error {
	channel, alias, err := splitKV(spec)
	if err != nil {
		return err
	}
	coerced, err := naming.AliasCoerce(alias)
	if err != nil {
		return err
	}
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.SetChannelUnnamedAlias(channel, coerced); err != nil {
		return err
	}
	return tx.Commit()
}

func runSetSkip(store *catalogdb.Store, csv string, skip bool) error {
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, id := range splitCSV(csv) {
		if err := tx.SetItemSkip(id, skip); err != nil {
			return err
		}
		if err := tx.SetPlaylistSkip(id, skip); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func runSleep(store *catalogdb.Store, spec string, now time.Time) error {
	iid, when, err := splitKV(spec)
	if err != nil {
		return err
	}
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := sleepreg.Sleep(tx, iid, when, now); err != nil {
		return err
	}
	return tx.Commit()
}

func runUnsleep(store *catalogdb.Store, csv string, now time.Time) error {
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, iid := range splitCSV(csv) {
		if err := sleepreg.Unsleep(tx, iid, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func runHookRegistration(store *catalogdb.Store, moduleID string, register bool) error {
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if register {
		err = tx.RegisterHook(moduleID)
	} else {
		err = tx.UnregisterHook(moduleID)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func runList(store *catalogdb.Store, withMembers bool) error {
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	printSource := func(variant, key, title string) {
		fmt.Printf("%-16s %-24s %s\n", variant, key, title)
		if !withMembers {
			return
		}
		members, err := tx.ListMembership(variant, key)
		if err != nil {
			fmt.Printf("    (error listing members: %v)\n", err)
			return
		}
		for _, m := range members {
			if m.Tombstone() {
				continue
			}
			fmt.Printf("    %s\n", m.IID)
		}
	}

	users, err := tx.ListUsers(false)
	if err != nil {
		return err
	}
	for _, u := range users {
		printSource(catalogdb.VariantUser, u.Name, u.Title)
	}
	named, err := tx.ListChannelsNamed(false)
	if err != nil {
		return err
	}
	for _, c := range named {
		printSource(catalogdb.VariantChannelNamed, c.Name, c.Title)
	}
	unnamed, err := tx.ListChannelsUnnamed(false)
	if err != nil {
		return err
	}
	for _, c := range unnamed {
		printSource(catalogdb.VariantChannelUnnamed, c.EffectiveKey(), c.Title)
	}
	playlists, err := tx.ListPlaylists(false)
	if err != nil {
		return err
	}
	for _, p := range playlists {
		printSource(catalogdb.VariantPlaylist, p.IID, p.Title)
	}
	return nil
}

func runInfo(store *catalogdb.Store, iids []string) error {
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, iid := range iids {
		it, err := tx.GetItem(iid)
		if err != nil {
			return err
		}
		if it == nil {
			fmt.Printf("%s: not in catalog\n", iid)
			continue
		}
		downloaded := "no"
		if it.Utime != nil {
			downloaded = it.Utime.Format(time.RFC3339)
		}
		fmt.Printf("%s  dname=%s name=%q title=%q skip=%v downloaded=%s\n", it.IID, it.Dname, it.Name, it.Title, it.Skip, downloaded)
	}
	return nil
}

func runShowPath(store *catalogdb.Store, archiveRoot string, iids []string) error {
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, iid := range iids {
		it, err := tx.GetItem(iid)
		if err != nil {
			return err
		}
		if it == nil {
			fmt.Printf("%s: not in catalog\n", iid)
			continue
		}
		preferred, err := tx.GetPreferredName(iid)
		if err != nil {
			return err
		}
		path := naming.FormatVPath(archiveRoot, it.Dname, it.Name, preferred, it.IID, downloader.TargetContainer)
		if fi, statErr := os.Stat(path); statErr == nil {
			fmt.Printf("%s  %s  (%s)\n", iid, path, humanize.Bytes(fi.Size()))
		} else {
			fmt.Printf("%s  %s\n", iid, path)
		}
	}
	return nil
}

type downloadSummary struct {
	done, skipped, errors int
}

func runDownload(ctx context.Context, store *catalogdb.Store, cfg *ydlaconfig.Config, keys []string, ignoreOld bool, now func() time.Time) downloadSummary {
	tx, err := store.Begin()
	if err != nil {
		log.Printf("download: begin selection tx: %v", err)
		return downloadSummary{}
	}
	items, err := tx.ListItemsByFilter(keys, ignoreOld)
	tx.Rollback()
	if err != nil {
		log.Printf("download: select items: %v", err)
		return downloadSummary{}
	}

	var summary downloadSummary
	opts := downloader.Options{
		ArchiveRoot:  cfg.ArchiveRoot,
		RateLimitBps: cfg.RateLimitBps,
		AutoSleep:    true,
		HTTPClient:   siteclient.Default(),
	}
	for _, it := range items {
		select {
		case <-ctx.Done():
			log.Printf("download: interrupted")
			return summary
		default:
		}
		res := downloader.RunOne(ctx, store, it.IID, opts, now)
		switch res.Status {
		case downloader.StatusDownloaded:
			summary.done++
			log.Printf("downloaded %s", it.IID)
		case downloader.StatusAlreadySatisfactory, downloader.StatusSleeping, downloader.StatusMarkedSkip:
			summary.skipped++
		case downloader.StatusError:
			summary.errors++
			log.Printf("download %s: %v", it.IID, res.Err)
		}
	}
	return summary
}
