package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Discord posts messages to a Discord webhook.
type Discord struct {
	url       string
	username  string
	mentionID string
	client    *http.Client
}

type discordPayload struct {
	Content         string                 `json:"content"`
	Username        string                 `json:"username,omitempty"`
	AllowedMentions discordAllowedMentions `json:"allowed_mentions"`
}

// discordAllowedMentions restricts pings to the listed users. Parse is always
// sent empty so text like @everyone in a message never pings anyone.
type discordAllowedMentions struct {
	Parse []string `json:"parse"`
	Users []string `json:"users,omitempty"`
}

// NewDiscord creates the remote push channel. mentionID may be empty.
func NewDiscord(webhookURL, username, mentionID string, client *http.Client) *Discord {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Discord{
		url:       webhookURL,
		username:  username,
		mentionID: mentionID,
		client:    client,
	}
}

func (d *Discord) Name() string {
	return "discord"
}

func (d *Discord) Notify(ctx context.Context, msg Message) error {
	if err := d.post(ctx, d.payload(msg)); err != nil {
		return &ChannelError{Channel: d.Name(), Kind: DeliveryFailed, Err: err}
	}
	return nil
}

func (d *Discord) payload(msg Message) discordPayload {
	p := discordPayload{
		Content:         msg.Body(),
		Username:        d.username,
		AllowedMentions: discordAllowedMentions{Parse: []string{}},
	}
	if d.mentionID != "" {
		p.Content = fmt.Sprintf("<@%s>\n%s", d.mentionID, p.Content)
		p.AllowedMentions.Users = []string{d.mentionID}
	}
	return p
}

func (d *Discord) post(ctx context.Context, p discordPayload) error {
	jsonData, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	return nil
}
