// Package messaging delivers the finished digest brief to Slack via an
// incoming webhook. Delivery failures are returned as errors, never panics;
// the caller decides whether a failed notification fails the run.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"curateai/internal/core"
)

// SlackMessage represents a Slack message structure
type SlackMessage struct {
	Text      string       `json:"text,omitempty"`
	Blocks    []SlackBlock `json:"blocks,omitempty"`
	Username  string       `json:"username,omitempty"`
	IconEmoji string       `json:"icon_emoji,omitempty"`
}

// SlackBlock represents a Slack block kit element
type SlackBlock struct {
	Type     string              `json:"type"`
	Text     *SlackText          `json:"text,omitempty"`
	Elements []SlackBlockElement `json:"elements,omitempty"`
}

// SlackText represents text in Slack blocks
type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SlackBlockElement represents elements within blocks
type SlackBlockElement struct {
	Type string     `json:"type"`
	Text *SlackText `json:"text,omitempty"`
}

// Notifier sends digest briefs to a Slack webhook.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewNotifier creates a notifier for the given webhook URL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured reports whether a webhook URL is set.
func (n *Notifier) Configured() bool {
	return n.webhookURL != ""
}

// SendDigest renders the brief as Block Kit and posts it to the webhook.
func (n *Notifier) SendDigest(ctx context.Context, brief core.DigestBrief) error {
	return n.send(ctx, buildDigestMessage(brief))
}

// SendTest posts a minimal message to verify webhook configuration.
func (n *Notifier) SendTest(ctx context.Context) error {
	return n.send(ctx, &SlackMessage{
		Text:      "CurateAI webhook test: configuration looks good.",
		Username:  "CurateAI",
		IconEmoji: ":robot_face:",
	})
}

func (n *Notifier) send(ctx context.Context, message *SlackMessage) error {
	if n.webhookURL == "" {
		return fmt.Errorf("slack webhook URL not configured")
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build Slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack webhook returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// buildDigestMessage renders the brief as Block Kit: a header, one section
// per angle, and a context footer with the audit summary.
func buildDigestMessage(brief core.DigestBrief) *SlackMessage {
	var blocks []SlackBlock

	blocks = append(blocks, SlackBlock{
		Type: "header",
		Text: &SlackText{
			Type: "plain_text",
			Text: fmt.Sprintf("AI Digest • %s", brief.GeneratedAt.Format("Jan 2, 2006")),
		},
	})
	blocks = append(blocks, SlackBlock{Type: "divider"})

	if len(brief.Angles) == 0 {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: "No angles made the cut today.",
			},
		})
	}

	for _, angle := range brief.Angles {
		var body strings.Builder
		body.WriteString(fmt.Sprintf("*%s*\n%s\n", angle.Insight, angle.WhyItMatters))
		if len(angle.FramingPoints) > 0 {
			for _, point := range angle.FramingPoints {
				body.WriteString(fmt.Sprintf("• %s\n", point))
			}
		}
		if len(angle.RelevantFor) > 0 {
			body.WriteString(fmt.Sprintf("_Relevant for: %s_\n", strings.Join(angle.RelevantFor, ", ")))
		}
		for _, link := range angle.SupportingLinks {
			body.WriteString(fmt.Sprintf("<%s>\n", link))
		}

		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: body.String(),
			},
		})
	}

	blocks = append(blocks, SlackBlock{
		Type: "context",
		Elements: []SlackBlockElement{
			{
				Type: "mrkdwn",
				Text: &SlackText{
					Type: "mrkdwn",
					Text: fmt.Sprintf("%d topics considered • %d passed filtering • %d angles generated",
						brief.TopicsConsidered, brief.TopicsFiltered, brief.AnglesGenerated),
				},
			},
		},
	})

	return &SlackMessage{
		Blocks:    blocks,
		Username:  "CurateAI",
		IconEmoji: ":newspaper:",
	}
}
