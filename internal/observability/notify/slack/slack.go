// Package slack delivers cleanup run reports to a Slack channel as Block Kit
// messages.
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/dbsweeper/dbsweeper/internal/observability/notify"
)

// Config captures the subset of Slack Web API behaviour we need.
type Config struct {
	BotToken  string
	ChannelID string
	Timeout   time.Duration
	// APIURL overrides the Slack endpoint, used by tests.
	APIURL string
	Client *http.Client
}

// chatPoster is the slice of the Slack client the sink uses.
type chatPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Client posts run reports to one Slack channel.
type Client struct {
	api       chatPoster
	channelID string
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Slack sink. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, errors.New("slack bot token is required")
	}
	channel := strings.TrimSpace(cfg.ChannelID)
	if channel == "" {
		return nil, errors.New("slack channel id is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	opts := []slack.Option{slack.OptionHTTPClient(hc)}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}

	return &Client{
		api:       slack.New(token, opts...),
		channelID: channel,
	}, nil
}

// SendRunReport posts one report to the configured channel.
func (c *Client) SendRunReport(ctx context.Context, report notify.RunReport) error {
	blocks := MessageBlocks(report)
	if _, _, err := c.api.PostMessageContext(ctx, c.channelID, slack.MsgOptionBlocks(blocks...)); err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}
	return nil
}

// MessageBlocks composes the header/section/context blocks for one report.
func MessageBlocks(report notify.RunReport) []slack.Block {
	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, headerText(report.Outcome), false, false),
	)

	fields := []*slack.TextBlockObject{
		mrkdwnField("Task", report.Task),
		mrkdwnField("Rows deleted", fmt.Sprintf("%d", report.RowsDeleted)),
		mrkdwnField("Database time", fmt.Sprintf("%.2fs", report.ElapsedSeconds)),
		mrkdwnField("Data interval end", report.DataIntervalEnd.UTC().Format("2006-01-02 15:04:05")),
	}
	if strings.TrimSpace(report.Reason) != "" {
		fields = append(fields, mrkdwnField("Reason", report.Reason))
	}
	section := slack.NewSectionBlock(nil, fields, nil)

	occurred := report.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	contextBlock := slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("run `%s` at %s", report.RunID, occurred.UTC().Format(time.RFC3339)),
			false, false),
	)

	return []slack.Block{header, section, contextBlock}
}

func headerText(outcome notify.Outcome) string {
	switch outcome {
	case notify.OutcomeSucceeded:
		return "Cleanup task succeeded"
	case notify.OutcomeTimedOut:
		return "Cleanup task timed out"
	case notify.OutcomeFailed:
		return "Cleanup task failed"
	default:
		return "Cleanup task report"
	}
}

func mrkdwnField(label, value string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, "*"+label+"*\n"+value, false, false)
}
