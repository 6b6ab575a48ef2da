package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"telegram-shop-bot/catalog"
	"telegram-shop-bot/checkout"
	"telegram-shop-bot/i18n"
	"telegram-shop-bot/orders"
	"telegram-shop-bot/pkg/config"
	"telegram-shop-bot/session"
)

// Sender is the part of *tgbotapi.BotAPI the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// ShopBot turns Telegram updates into catalog, cart and checkout operations.
type ShopBot struct {
	api      Sender
	sessions session.Store
	catalog  *catalog.Store
	machine  *checkout.Machine
	orders   orders.Repository
	cfg      *config.Config
	logger   *logrus.Logger
	http     *http.Client

	// pause between catalog cards to stay under Telegram's flood limits
	cardPause time.Duration
}

func New(api Sender, sessions session.Store, cat *catalog.Store, machine *checkout.Machine,
	repo orders.Repository, cfg *config.Config, logger *logrus.Logger) *ShopBot {
	return &ShopBot{
		api:      api,
		sessions: sessions,
		catalog:  cat,
		machine:  machine,
		orders:   repo,
		cfg:      cfg,
		logger:   logger,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cardPause: 30 * time.Millisecond,
	}
}

// Run handles updates one at a time until ctx is done or updates is closed.
func (b *ShopBot) Run(ctx context.Context, updates <-chan Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, u)
		}
	}
}

func (b *ShopBot) HandleUpdate(ctx context.Context, u Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{
				"update_id": u.UpdateID,
				"panic":     r,
			}).Error("Recovered from panic while handling update")
		}
	}()

	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message, u.WebAppData)
	}
}

// Announce tells the operator chat the bot is up.
func (b *ShopBot) Announce() {
	if b.cfg.AdminChatID == 0 {
		return
	}
	b.sendMessage(b.cfg.AdminChatID, fmt.Sprintf("🚀 Bot ishga tushdi!\n%s", b.cfg.AppPublicURL))
}

func (b *ShopBot) handleMessage(ctx context.Context, message *tgbotapi.Message, webData *WebAppData) {
	if message.Chat == nil {
		return
	}
	chatID := message.Chat.ID

	s, err := b.sessions.Get(ctx, chatID)
	if err != nil {
		b.logger.WithField("chat_id", chatID).WithError(err).Error("Failed to load session")
		return
	}
	defer b.saveSession(ctx, s)

	lang := b.lang(s)
	user := userFrom(message.From)

	if webData != nil {
		b.handleWebAppData(ctx, message, lang, user, webData.Data)
		return
	}

	if message.IsCommand() && b.handleCommand(ctx, message, s) {
		return
	}

	switch i18n.MatchMenu(message.Text) {
	case i18n.MenuCatalog:
		b.sendCatalog(chatID, lang)
		return
	case i18n.MenuCart:
		b.sendCart(chatID, lang, s)
		return
	case i18n.MenuContact:
		b.sendText(chatID, i18n.T(lang, "contact"), nil)
		return
	}

	switch {
	case checkout.Active(s):
		out, err := b.machine.Handle(ctx, s, user, inputFrom(message))
		if err != nil {
			b.logger.WithFields(logrus.Fields{
				"chat_id": chatID,
				"state":   s.State.String(),
			}).WithError(err).Error("Checkout step failed")
		}
		b.sendOutcome(chatID, lang, out)
	case isAdminState(s.State):
		b.handleAdminInput(message, s)
	case len(message.Photo) > 0:
		b.handlePhotoUpload(message)
	default:
		b.sendWelcome(chatID, lang)
	}
}

func (b *ShopBot) handleCommand(ctx context.Context, message *tgbotapi.Message, s *session.Session) bool {
	chatID := message.Chat.ID
	lang := b.lang(s)

	switch message.Command() {
	case "start":
		b.sendText(chatID, i18n.T(i18n.Uzbek, "choose_lang"), langSelectKeyboard())
	case "cancel":
		s.Clear()
		b.sendText(chatID, i18n.T(lang, "cancelled"), b.mainKeyboard(lang))
	case "whoami":
		b.handleWhoAmI(message)
	case "testadmin":
		b.handleTestAdmin(message)
	case "addproduct":
		b.handleAddProduct(message, s)
	case "listorders":
		b.handleListOrders(ctx, message)
	default:
		return false
	}
	return true
}

func (b *ShopBot) handleWebAppData(ctx context.Context, message *tgbotapi.Message, lang string, user checkout.User, data string) {
	out, err := b.machine.SubmitWeb(ctx, lang, user, []byte(data))
	if err != nil {
		b.logger.WithFields(logrus.Fields{
			"chat_id": message.Chat.ID,
			"user_id": user.ID,
		}).WithError(err).Warn("Web app order rejected")
	}
	b.sendOutcome(message.Chat.ID, lang, out)
}

func (b *ShopBot) sendWelcome(chatID int64, lang string) {
	b.sendText(chatID, i18n.T(lang, "welcome"), b.mainKeyboard(lang))
}

func (b *ShopBot) sendCatalog(chatID int64, lang string) {
	products := b.catalog.Available()
	if len(products) == 0 {
		b.sendText(chatID, i18n.T(lang, "no_products"), nil)
		return
	}

	for i, p := range products {
		if i > 0 && b.cardPause > 0 {
			time.Sleep(b.cardPause)
		}

		caption := fmt.Sprintf("<b>%s</b>\n%s\n\n%s",
			escape(displayName(p, lang)),
			escape(p.Description(lang)),
			i18n.T(lang, "price_kg_only", p.UnitPrice()),
		)
		kb := productKeyboard(p.ID, lang)

		photo := tgbotapi.NewPhoto(chatID, photoFile(p.PhotoRef()))
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
		photo.ReplyMarkup = kb
		if _, err := b.api.Send(photo); err != nil {
			b.logger.WithField("product_id", p.ID).WithError(err).Warn("Failed to send product photo, falling back to text")
			b.sendText(chatID, caption, kb)
		}
	}
}

func (b *ShopBot) sendCart(chatID int64, lang string, s *session.Session) {
	if s.Cart.Empty() {
		b.sendText(chatID, i18n.T(lang, "cart_empty"), nil)
		return
	}

	rows := make([]string, 0, len(s.Cart.Lines))
	for i, l := range s.Cart.Lines {
		rows = append(rows, i18n.T(lang, "cart_line", i+1, escape(l.Name), l.Qty, l.Total()))
	}
	text := strings.Join(rows, "\n") + "\n\n" + i18n.T(lang, "cart_total", s.Cart.Total())
	b.sendText(chatID, text, cartKeyboard(lang))
}

func (b *ShopBot) sendOutcome(chatID int64, lang string, out checkout.Outcome) {
	if out.Reply == "" {
		return
	}

	var markup interface{}
	switch out.Keyboard {
	case checkout.KeyboardSharePhone:
		markup = sharePhoneKeyboard(lang)
	case checkout.KeyboardShareLocation:
		markup = shareLocationKeyboard(lang)
	case checkout.KeyboardMain:
		markup = b.mainKeyboard(lang)
	}
	b.sendText(chatID, i18n.T(lang, out.Reply, out.Args...), markup)
}

func (b *ShopBot) sendText(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.WithField("chat_id", chatID).WithError(err).Error("Failed to send message")
	}
}

func (b *ShopBot) sendMessage(chatID int64, text string) {
	b.sendText(chatID, text, nil)
}

func (b *ShopBot) saveSession(ctx context.Context, s *session.Session) {
	if err := b.sessions.Save(ctx, s); err != nil {
		b.logger.WithField("chat_id", s.ChatID).WithError(err).Error("Failed to save session")
	}
}

func (b *ShopBot) lang(s *session.Session) string {
	return i18n.Normalize(s.Lang, b.cfg.LangDefault)
}

func userFrom(u *tgbotapi.User) checkout.User {
	if u == nil {
		return checkout.User{}
	}
	return checkout.User{
		ID:       u.ID,
		Handle:   u.UserName,
		FullName: strings.TrimSpace(u.FirstName + " " + u.LastName),
	}
}

func inputFrom(message *tgbotapi.Message) checkout.Input {
	in := checkout.Input{Text: message.Text}
	if c := message.Contact; c != nil {
		in.Contact = &checkout.Contact{Phone: c.PhoneNumber, FirstName: c.FirstName, LastName: c.LastName}
	}
	if l := message.Location; l != nil {
		in.Location = &checkout.Location{Lat: l.Latitude, Lon: l.Longitude}
	}
	return in
}

func displayName(p catalog.Product, lang string) string {
	if name := p.Name(lang); name != "" {
		return name
	}
	if lang == i18n.Russian {
		return "Без названия"
	}
	return "Nomsiz"
}

func photoFile(ref string) tgbotapi.RequestFileData {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tgbotapi.FileURL(ref)
	}
	return tgbotapi.FileID(ref)
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}
