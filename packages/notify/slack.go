package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitupload/packages/http"
)

// SlackNotifier sends notifications to Slack via webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

// WithSlackUsername sets the Slack bot username
func WithSlackUsername(username string) SlackOption {
	return func(s *SlackNotifier) {
		s.username = username
	}
}

// WithSlackClient replaces the HTTP client used to post messages.
func WithSlackClient(c *http.Client) SlackOption {
	return func(s *SlackNotifier) {
		s.client = c
	}
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "hitupload",
		iconEmoji:  ":outbox_tray:",
		client:     newWebhookClient(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the name of the notifier
func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notify sends a notification to Slack
func (s *SlackNotifier) Notify(ctx context.Context, report *Report) error {
	color := "good"
	emoji := ":white_check_mark:"
	switch {
	case !report.Passed:
		color = "danger"
		emoji = ":x:"
	case report.IsRecovery:
		emoji = ":tada:"
	}

	var text strings.Builder
	if report.Target != "" {
		fmt.Fprintf(&text, "`%s`\n", report.Target)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(&text, "• %s\n", f)
	}

	msg := slackMessage{
		Channel:   s.channel,
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  fmt.Sprintf("%s %s", emoji, report.Title()),
			Text:   text.String(),
			Fields: slackFields(report),
			Footer: "hitupload",
			TS:     time.Now().Unix(),
		}},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}
	if err := postJSON(ctx, s.client, s.webhookURL, data, 200); err != nil {
		return fmt.Errorf("failed to send Slack notification: %w", err)
	}
	return nil
}

func slackFields(r *Report) []slackField {
	var fields []slackField
	for _, f := range reportFields(r) {
		fields = append(fields, slackField{Title: f[0], Value: f[1], Short: true})
	}
	return fields
}

// reportFields lists the name/value pairs shown by every notifier.
func reportFields(r *Report) [][2]string {
	fields := [][2]string{}
	if len(r.Files) > 0 {
		fields = append(fields, [2]string{"Files", strings.Join(r.Files, ", ")})
	}
	if r.Kind == KindBench {
		fields = append(fields,
			[2]string{"Uploads", fmt.Sprintf("%d", r.Total)},
			[2]string{"Errors", fmt.Sprintf("%d", r.Errors)},
			[2]string{"p95", r.P95.Round(time.Millisecond).String()},
			[2]string{"Rate", fmt.Sprintf("%.1f/s", r.RPS)},
		)
	} else {
		if r.Status != "" {
			fields = append(fields, [2]string{"Status", r.Status})
		}
		if r.Attempts > 1 {
			fields = append(fields, [2]string{"Attempts", fmt.Sprintf("%d", r.Attempts)})
		}
	}
	fields = append(fields,
		[2]string{"Sent", fmt.Sprintf("%d bytes", r.Bytes)},
		[2]string{"Duration", r.Duration.Round(time.Millisecond).String()},
	)
	return fields
}
