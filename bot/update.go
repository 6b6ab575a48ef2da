package bot

import (
	"context"
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// WebAppData is the payload a mini-app posts through Telegram.WebApp.sendData.
type WebAppData struct {
	Data       string `json:"data"`
	ButtonText string `json:"button_text"`
}

// Update is a Telegram update plus the fields the client library does not
// model.
type Update struct {
	tgbotapi.Update
	WebAppData *WebAppData
}

type webAppEnvelope struct {
	Message *struct {
		WebAppData *WebAppData `json:"web_app_data"`
	} `json:"message"`
}

// ParseUpdate decodes a raw update as pushed to the webhook.
func ParseUpdate(body []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(body, &u.Update); err != nil {
		return Update{}, fmt.Errorf("bot: decode update: %w", err)
	}

	var env webAppEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Message != nil {
		u.WebAppData = env.Message.WebAppData
	}
	return u, nil
}

// FromPolling adapts a long-polling channel. Web-app data is not available on
// this path because the library drops unknown fields while decoding.
func FromPolling(ctx context.Context, in tgbotapi.UpdatesChannel) <-chan Update {
	out := make(chan Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Update{Update: u}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
