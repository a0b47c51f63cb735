// Package notify dispatches best-effort push notifications.
//
// The message row is already durable by the time a notification goes out,
// so nothing here may fail a send: callers log and drop every error.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"kindred/internal/domain"
)

// previewLimit caps the body text shown in a notification.
const previewLimit = 80

// PushClient posts notification requests to the external push service.
type PushClient struct {
	Base string
	HTTP *http.Client
	log  zerolog.Logger
}

func NewPushClient(base string, client *http.Client, log zerolog.Logger) *PushClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &PushClient{
		Base: base,
		HTTP: client,
		log:  log.With().Str("component", "notify").Logger(),
	}
}

type pushRequest struct {
	RecipientID string `json:"recipient_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	MatchID     string `json:"match_id"`
}

// Notify sends one push. The returned error is informational; the caller
// never surfaces it to the user.
func (c *PushClient) Notify(ctx context.Context, recipient domain.UserID, senderName, preview string, matchID domain.MatchID) error {
	body := pushRequest{
		RecipientID: string(recipient),
		Title:       senderName,
		Body:        truncate(preview, previewLimit),
		MatchID:     string(matchID),
	}
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+"/push", buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("push post: %s", resp.Status)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Cut on a rune boundary.
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

// Discard drops every notification. Used when no push endpoint is
// configured, and by tests.
type Discard struct{}

func (Discard) Notify(context.Context, domain.UserID, string, string, domain.MatchID) error {
	return nil
}

// Compile-time assertions.
var (
	_ domain.Notifier = (*PushClient)(nil)
	_ domain.Notifier = Discard{}
)
