package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jobcatcher/jobcatcher/internal/utils"
	"go.uber.org/zap"
)

const (
	telegramAPIURL   = "https://api.telegram.org"
	telegramAttempts = 3
)

var telegramBackoff = 3 * time.Second

// Telegram reports run status messages to a chat. Sending is best-effort:
// failures are logged and never propagated to the pipeline.
type Telegram struct {
	token      string
	chatID     string
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

func NewTelegram(token, chatID string, logger *zap.Logger) *Telegram {
	return &Telegram{
		token:  token,
		chatID: chatID,
		logger: logger,
		APIURL: telegramAPIURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (t *Telegram) Notify(ctx context.Context, text string) {
	if t == nil || strings.TrimSpace(text) == "" {
		return
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.APIURL, t.token)
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)

	for attempt := 1; attempt <= telegramAttempts; attempt++ {
		err := t.post(ctx, endpoint, form)
		if err == nil {
			return
		}

		t.logger.Warn("telegram send failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt == telegramAttempts {
			break
		}
		if err := utils.WaitFor(ctx, telegramBackoff); err != nil {
			return
		}
	}

	t.logger.Warn("giving up on telegram message", zap.Int("attempts", telegramAttempts))
}

func (t *Telegram) post(ctx context.Context, endpoint string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	return nil
}
