// Package telegram posts documents and notices through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aluiziolira/go-torrent-relay/models"
)

// APIError is a request Telegram rejected.
type APIError struct {
	Method      string
	Code        int
	Description string
	retryAfter  time.Duration
}

func (e *APIError) Error() string {
	if e.retryAfter > 0 {
		return fmt.Sprintf("telegram %s: %d %s (retry after %s)", e.Method, e.Code, e.Description, e.retryAfter)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// RetryAfter is the flood-control wait Telegram asked for, zero if none.
func (e *APIError) RetryAfter() time.Duration {
	return e.retryAfter
}

// Client sends to a channel and to the bot owner.
type Client struct {
	bot       *tgbotapi.BotAPI
	channelID int64
	ownerID   int64
}

// New authenticates token against the Bot API.
func New(token string, channelID, ownerID int64) (*Client, error) {
	return NewWithHTTPClient(token, channelID, ownerID, &http.Client{Timeout: 60 * time.Second})
}

// NewWithHTTPClient is New with a caller-supplied HTTP client.
func NewWithHTTPClient(token string, channelID, ownerID int64, hc *http.Client) (*Client, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, hc)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", wrap("getMe", err))
	}
	return &Client{bot: bot, channelID: channelID, ownerID: ownerID}, nil
}

// Name is the bot's display name.
func (c *Client) Name() string {
	if c.bot.Self.FirstName != "" {
		return c.bot.Self.FirstName
	}
	return c.bot.Self.UserName
}

// SendDocument uploads doc to the channel.
func (c *Client) SendDocument(ctx context.Context, doc models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := tgbotapi.NewDocument(c.channelID, tgbotapi.FileBytes{Name: doc.FileName, Bytes: doc.Content})
	cfg.Caption = doc.Caption
	if _, err := c.bot.Send(cfg); err != nil {
		return wrap("sendDocument", err)
	}
	return nil
}

// Notify sends a plain text message to the owner.
func (c *Client) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(c.ownerID, text)); err != nil {
		return wrap("sendMessage", err)
	}
	return nil
}

// Announce tells the owner the relay is up.
func (c *Client) Announce(ctx context.Context, interval time.Duration) error {
	return c.Notify(ctx, StartupMessage(c.Name(), interval))
}

// StartupMessage formats the owner notice sent once at startup.
func StartupMessage(name string, interval time.Duration) string {
	return fmt.Sprintf("%s ✅ TamilMV bot started (%s checks)", name, describeInterval(interval))
}

func describeInterval(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%d-min", int(d/time.Minute))
	}
	return d.String()
}

func wrap(method string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			Method:      method,
			Code:        apiErr.Code,
			Description: apiErr.Message,
			retryAfter:  time.Duration(apiErr.RetryAfter) * time.Second,
		}
	}
	return fmt.Errorf("telegram %s: %w", method, err)
}
