package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// RegisterWebhook drops any previous webhook together with its pending
// updates and points Telegram at url.
func RegisterWebhook(api Sender, url string) error {
	if err := DeleteWebhook(api, true); err != nil {
		return err
	}

	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("bot: webhook config: %w", err)
	}
	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("bot: set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook is required before long polling can receive updates.
func DeleteWebhook(api Sender, dropPending bool) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: dropPending}); err != nil {
		return fmt.Errorf("bot: delete webhook: %w", err)
	}
	return nil
}
