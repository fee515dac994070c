package hooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// pushoverEndpoint is a var, not a const, so tests can point it at an
// httptest.Server instead of the real API.
var pushoverEndpoint = "https://api.pushover.net/1/messages.json"

// PushoverConfig holds the token/user pair from the original CLI's
// ~/.pushoverrc, reworked as an explicit struct instead of a config file
// lookup.
type PushoverConfig struct {
	Token string
	User  string
}

// NewPushoverHandler returns a Handler that posts a BatchResult's message
// to the Pushover API. Registering it under some module id and calling
// catalogdb.RegisterHook with that id is what makes the dispatcher
// actually invoke it at batch completion.
func NewPushoverHandler(cfg PushoverConfig, client *http.Client) Handler {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return func(ctx context.Context, point HookPoint, payload any) error {
		res, ok := payload.(BatchResult)
		if !ok {
			return fmt.Errorf("hooks: pushover: unexpected payload %T for %s", payload, point)
		}
		return sendPushover(ctx, client, cfg, "ydla", res.Message())
	}
}

func sendPushover(ctx context.Context, client *http.Client, cfg PushoverConfig, title, message string) error {
	if cfg.Token == "" || cfg.User == "" {
		return fmt.Errorf("hooks: pushover requires token and user")
	}
	form := url.Values{
		"token":   {cfg.Token},
		"user":    {cfg.User},
		"title":   {title},
		"message": {message},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pushoverEndpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("hooks: pushover post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("hooks: pushover returned status %d", resp.StatusCode)
	}
	return nil
}
