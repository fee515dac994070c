package hooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/cmlburnett/ydla/internal/catalogdb"
)

func openTestStore(t *testing.T) *catalogdb.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := catalogdb.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func registerHooks(t *testing.T, s *catalogdb.Store, moduleIDs ...string) {
	t.Helper()
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for _, id := range moduleIDs {
		if err := tx.RegisterHook(id); err != nil {
			t.Fatalf("RegisterHook(%s): %v", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestDispatchInvokesInRegisteredOrder(t *testing.T) {
	s := openTestStore(t)
	registerHooks(t, s, "first", "second", "third")

	var order []string
	r := NewRegistry()
	r.Add("third", func(ctx context.Context, point HookPoint, payload any) error {
		order = append(order, "third")
		return nil
	})
	r.Add("first", func(ctx context.Context, point HookPoint, payload any) error {
		order = append(order, "first")
		return nil
	})
	r.Add("second", func(ctx context.Context, point HookPoint, payload any) error {
		order = append(order, "second")
		return nil
	})

	r.Dispatch(context.Background(), s, PointSyncComplete, BatchResult{Label: "sync-lists"})

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestDispatchSkipsUnwiredModulesAndSwallowsErrors(t *testing.T) {
	s := openTestStore(t)
	registerHooks(t, s, "unwired", "failing", "ok")

	var invoked []string
	r := NewRegistry()
	r.Add("failing", func(ctx context.Context, point HookPoint, payload any) error {
		invoked = append(invoked, "failing")
		return errors.New("boom")
	})
	r.Add("ok", func(ctx context.Context, point HookPoint, payload any) error {
		invoked = append(invoked, "ok")
		return nil
	})

	r.Dispatch(context.Background(), s, PointDownloadComplete, BatchResult{Label: "download"})

	if len(invoked) != 2 || invoked[0] != "failing" || invoked[1] != "ok" {
		t.Fatalf("invoked = %v, want [failing ok]", invoked)
	}
}

func TestDispatchWithNoRegisteredHooksIsANoop(t *testing.T) {
	s := openTestStore(t)

	called := false
	r := NewRegistry()
	r.Add("never", func(ctx context.Context, point HookPoint, payload any) error {
		called = true
		return nil
	})

	r.Dispatch(context.Background(), s, PointItemSyncComplete, BatchResult{Label: "sync-items"})

	if called {
		t.Fatalf("handler invoked despite never being registered")
	}
}

func TestBatchResultMessageVariants(t *testing.T) {
	cases := []struct {
		name string
		res  BatchResult
		want string
	}{
		{
			name: "success",
			res:  BatchResult{Label: "sync-items", Done: 4, Skipped: 1},
			want: "completed: sync-items (done=4 skipped=1)",
		},
		{
			name: "partial errors",
			res:  BatchResult{Label: "download", Done: 2, Skipped: 0, Errors: 3},
			want: "completed with 3 error(s): download (done=2 skipped=0)",
		},
		{
			name: "aborted",
			res:  BatchResult{Label: "download", Err: errors.New("disk full")},
			want: "aborted with error (disk full) for download",
		},
		{
			name: "long label truncated",
			res:  BatchResult{Label: "this-is-a-very-long-command-label-indeed", Done: 1},
			want: "completed: this-is-a-very-long-command-labe... (done=1 skipped=0)",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.res.Message(); got != c.want {
				t.Fatalf("Message() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestPushoverHandlerPostsExpectedForm(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		gotForm = req.PostForm
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":1}`))
	}))
	defer srv.Close()

	orig := pushoverEndpoint
	pushoverEndpoint = srv.URL
	defer func() { pushoverEndpoint = orig }()

	cfg := PushoverConfig{Token: "tok123", User: "usr456"}
	if err := sendPushover(context.Background(), srv.Client(), cfg, "ydla", "completed: sync-items (done=4 skipped=0)"); err != nil {
		t.Fatalf("sendPushover: %v", err)
	}

	if gotForm.Get("token") != "tok123" || gotForm.Get("user") != "usr456" {
		t.Fatalf("unexpected credentials in form: %v", gotForm)
	}
	if gotForm.Get("title") != "ydla" {
		t.Fatalf("title = %q, want ydla", gotForm.Get("title"))
	}
	if gotForm.Get("message") != "completed: sync-items (done=4 skipped=0)" {
		t.Fatalf("message = %q", gotForm.Get("message"))
	}
}

func TestPushoverHandlerEndToEnd(t *testing.T) {
	var gotMessage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		req.ParseForm()
		gotMessage = req.PostForm.Get("message")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	orig := pushoverEndpoint
	pushoverEndpoint = srv.URL
	defer func() { pushoverEndpoint = orig }()

	handler := NewPushoverHandler(PushoverConfig{Token: "t", User: "u"}, srv.Client())
	err := handler(context.Background(), PointDownloadComplete, BatchResult{Label: "download", Done: 3})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	want := "completed: download (done=3 skipped=0)"
	if gotMessage != want {
		t.Fatalf("message = %q, want %q", gotMessage, want)
	}
}

func TestPushoverHandlerRequiresCredentials(t *testing.T) {
	handler := NewPushoverHandler(PushoverConfig{}, http.DefaultClient)
	err := handler(context.Background(), PointSyncComplete, BatchResult{Label: "sync-lists"})
	if err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

func TestPushoverHandlerRejectsWrongPayloadType(t *testing.T) {
	handler := NewPushoverHandler(PushoverConfig{Token: "t", User: "u"}, http.DefaultClient)
	err := handler(context.Background(), PointSyncComplete, "not a batch result")
	if err == nil {
		t.Fatalf("expected error for wrong payload type")
	}
}
