package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"weekly/internal/config"
	"weekly/internal/models"
	"weekly/internal/tools"
)

const (
	ToolName = "SlackDMTool"

	errorPrefix = "Slack notification failed: "
)

// Messenger is the subset of the Slack Web API the notifier needs.
type Messenger interface {
	GetUserByEmailContext(ctx context.Context, email string) (*slack.User, error)
	OpenConversationContext(ctx context.Context, params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// NotifyInput are the notification tool arguments.
type NotifyInput struct {
	Recipient string `json:"recipient" description:"Channel id, #channel, Slack user id or email address."`
	Message   string `json:"message" description:"Message text to deliver."`
}

// Tool posts a message to a Slack channel or user.
type Tool struct {
	env *tools.Env
	// APIURL overrides the Slack Web API root.
	APIURL string
}

func NewTool(env *tools.Env) *Tool {
	return &Tool{env: env}
}

func (t *Tool) Name() string { return ToolName }

func (t *Tool) Description() string {
	return "Sends a Slack message to a channel, a user id or the user owning an email address."
}

func (t *Tool) Params() []tools.Param {
	return []tools.Param{
		{Name: "recipient", Type: "string", Description: "Channel id, #channel, Slack user id or email address.", Required: true},
		{Name: "message", Type: "string", Description: "Message text to deliver.", Required: true},
	}
}

func (t *Tool) Call(ctx context.Context, args json.RawMessage) string {
	var in NotifyInput
	if err := tools.Decode(args, &in); err != nil {
		return tools.ErrorJSON(errorPrefix + err.Error())
	}
	out, err := t.Send(ctx, &in)
	if err != nil {
		return tools.ErrorJSON(errorPrefix + err.Error())
	}
	return tools.Encode(out)
}

// Send delivers one message. There are no retries.
func (t *Tool) Send(ctx context.Context, in *NotifyInput) (*models.Delivery, error) {
	recipient := strings.TrimSpace(in.Recipient)
	if recipient == "" {
		return nil, fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("message is required")
	}
	tok, err := t.env.Resolver.Static(config.SlackTokenKey)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.env.Timeout)
	defer cancel()
	api := t.client(tok.AccessToken)
	return deliver(ctx, t.env.Logger, api, recipient, in.Message)
}

func (t *Tool) client(token string) *slack.Client {
	opts := []slack.Option{slack.OptionHTTPClient(&http.Client{Timeout: t.env.Timeout})}
	if t.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(t.APIURL, "/")+"/"))
	}
	return slack.New(token, opts...)
}

func deliver(ctx context.Context, logger *slog.Logger, api Messenger, recipient, message string) (*models.Delivery, error) {
	channel, err := resolveChannel(ctx, api, recipient)
	if err != nil {
		return nil, err
	}
	ch, ts, err := api.PostMessageContext(ctx, channel, slack.MsgOptionText(message, false))
	if err != nil {
		return nil, fmt.Errorf("failed to post message: %w", err)
	}
	logger.Info("Sent Slack message", "recipient", recipient, "channel", ch, "ts", ts)
	return &models.Delivery{OK: true, Channel: ch, Timestamp: ts}, nil
}

// resolveChannel maps a recipient to a postable channel id. Emails are looked
// up, user ids get a direct conversation, anything else is used as a channel.
func resolveChannel(ctx context.Context, api Messenger, recipient string) (string, error) {
	userID := ""
	switch {
	case strings.Contains(recipient, "@"):
		user, err := api.GetUserByEmailContext(ctx, recipient)
		if err != nil {
			return "", fmt.Errorf("failed to look up %s: %w", recipient, err)
		}
		userID = user.ID
	case isUserID(recipient):
		userID = recipient
	default:
		return recipient, nil
	}
	channel, _, _, err := api.OpenConversationContext(ctx, &slack.OpenConversationParameters{Users: []string{userID}})
	if err != nil {
		return "", fmt.Errorf("failed to open conversation with %s: %w", userID, err)
	}
	return channel.ID, nil
}

func isUserID(s string) bool {
	if len(s) < 2 || (s[0] != 'U' && s[0] != 'W') {
		return false
	}
	for _, r := range s[1:] {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
