package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus/hooks/test"

	"telegram-shop-bot/catalog"
	"telegram-shop-bot/checkout"
	"telegram-shop-bot/i18n"
	"telegram-shop-bot/orders"
	"telegram-shop-bot/pkg/config"
	"telegram-shop-bot/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	chatID  = int64(500)
	userID  = int64(77)
	adminID = int64(1)
)

const sampleCatalog = `[
  {"id": "p1", "name_uz": "Tog' asali", "name_ru": "Горный мёд", "price_1": 350000, "photo": "file-1", "info_full": "Tog'dan yig'ilgan"},
  {"id": "p2", "name_uz": "Akatsiya", "price_per_kg": 150000, "photo_url": "https://img.example.com/a.jpg"},
  {"id": "p3", "name_uz": "Yo'q", "price_1": 1, "available": false}
]`

type fakeAPI struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	requests  []tgbotapi.Chattable
	failPhoto bool
	fileURL   string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := c.(tgbotapi.PhotoConfig); ok && f.failPhoto {
		return tgbotapi.Message{}, errors.New("Bad Request: wrong file identifier")
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	if f.fileURL == "" {
		return "", errors.New("no file server")
	}
	return f.fileURL + "/" + fileID, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.PhotoConfig:
			out = append(out, m.Caption)
		}
	}
	return out
}

func (f *fakeAPI) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if m, ok := f.sent[i].(tgbotapi.MessageConfig); ok {
			return m
		}
	}
	t.Fatal("no message sent")
	return tgbotapi.MessageConfig{}
}

func (f *fakeAPI) edits() []tgbotapi.EditMessageReplyMarkupConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageReplyMarkupConfig
	for _, c := range f.requests {
		if e, ok := c.(tgbotapi.EditMessageReplyMarkupConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

type recordingDispatcher struct {
	mu     sync.Mutex
	orders []orders.Order
}

func (r *recordingDispatcher) Dispatch(o orders.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
}

type testEnv struct {
	bot        *ShopBot
	api        *fakeAPI
	repo       *orders.OrderManager
	catalog    *catalog.Store
	sessions   *session.MemoryStore
	dispatcher *recordingDispatcher
	cfg        *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))
	cat, err := catalog.Load(path)
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	repo := orders.NewOrderManager()
	d := &recordingDispatcher{}
	machine := checkout.NewMachine(checkout.NewPlacer(repo, d, nil, logger), cat, nil)

	cfg := &config.Config{
		AdminChatID:  -100,
		AdminUserID:  adminID,
		LangDefault:  "uz",
		AppPublicURL: "https://shop.example.com/app",
		WebAppDir:    t.TempDir(),
	}
	api := &fakeAPI{}
	sessions := session.NewMemoryStore()

	b := New(api, sessions, cat, machine, repo, cfg, logger)
	b.cardPause = 0

	return &testEnv{bot: b, api: api, repo: repo, catalog: cat, sessions: sessions, dispatcher: d, cfg: cfg}
}

func (e *testEnv) session(t *testing.T) *session.Session {
	t.Helper()
	s, err := e.sessions.Get(context.Background(), chatID)
	require.NoError(t, err)
	return s
}

func (e *testEnv) send(msg *tgbotapi.Message) {
	e.bot.HandleUpdate(context.Background(), Update{Update: tgbotapi.Update{Message: msg}})
}

func (e *testEnv) text(from int64, text string) {
	e.send(message(from, text))
}

func (e *testEnv) press(data string) {
	e.bot.HandleUpdate(context.Background(), Update{Update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}})
}

func message(from int64, text string) *tgbotapi.Message {
	m := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: from, FirstName: "Ali", LastName: "Valiyev", UserName: "ali"},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.SplitN(text, " ", 2)[0]
		m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return m
}

func TestStart_LanguageSelection(t *testing.T) {
	env := newTestEnv(t)

	env.text(userID, "/start")
	msg := env.api.lastMessage(t)
	assert.Equal(t, i18n.T("uz", "choose_lang"), msg.Text)
	_, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	assert.True(t, ok)

	env.press("lang:ru")
	assert.Equal(t, "ru", env.session(t).Lang)

	welcome := env.api.lastMessage(t)
	assert.Equal(t, i18n.T("ru", "welcome"), welcome.Text)
	kb, ok := welcome.ReplyMarkup.(replyKeyboard)
	require.True(t, ok)
	require.Len(t, kb.Keyboard, 3)
	assert.Equal(t, "Корзина", kb.Keyboard[0][0].Text)
	require.NotNil(t, kb.Keyboard[2][0].WebApp)
	assert.Equal(t, "https://shop.example.com/app?lang=ru", kb.Keyboard[2][0].WebApp.URL)
}

func TestLanguageCallback_IgnoresUnknown(t *testing.T) {
	env := newTestEnv(t)
	env.press("lang:de")
	assert.Equal(t, "", env.session(t).Lang)
}

func TestCatalog_ListsAvailableProducts(t *testing.T) {
	env := newTestEnv(t)

	env.text(userID, "Katalog")

	env.api.mu.Lock()
	defer env.api.mu.Unlock()
	require.Len(t, env.api.sent, 2)

	first, ok := env.api.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.FileID("file-1"), first.File)
	assert.Contains(t, first.Caption, "<b>"+escape("Tog' asali")+"</b>")
	assert.Contains(t, first.Caption, "350000")

	second := env.api.sent[1].(tgbotapi.PhotoConfig)
	assert.Equal(t, tgbotapi.FileURL("https://img.example.com/a.jpg"), second.File)
}

func TestCatalog_FallsBackToText(t *testing.T) {
	env := newTestEnv(t)
	env.api.failPhoto = true

	env.text(userID, "каталог")

	texts := env.api.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "350000")
}

func TestQuantitySelector(t *testing.T) {
	env := newTestEnv(t)

	env.press("sel:p1")
	env.press("qinc:p1:1")
	env.press("qdec:p1:1")
	env.press("qinc:p1:99")

	edits := env.api.edits()
	require.Len(t, edits, 2, "edits at the bounds are skipped")
	assert.Equal(t, "qdec:p1:1", *edits[0].ReplyMarkup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "addsel:p1:2", *edits[1].ReplyMarkup.InlineKeyboard[1][0].CallbackData)

	env.press("back:p1")
	edits = env.api.edits()
	assert.Equal(t, "info:p1", *edits[2].ReplyMarkup.InlineKeyboard[0][1].CallbackData)
}

func TestAddToCart_DoesNotStartCheckout(t *testing.T) {
	env := newTestEnv(t)

	env.press("addsel:p1:2")
	s := env.session(t)
	assert.Equal(t, session.StateNone, s.State)
	assert.Equal(t, int64(700000), s.Cart.Total())

	msg := env.api.lastMessage(t)
	assert.Equal(t, i18n.T("uz", "added", escape("Tog' asali"), 2, int64(700000)), msg.Text)
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "checkout", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "quick", *kb.InlineKeyboard[1][0].CallbackData)

	env.press("addsel:p2:150")
	assert.Equal(t, int64(700000+99*150000), env.session(t).Cart.Total(), "interactive quantity is clamped")
}

func TestAddToCart_UnknownProduct(t *testing.T) {
	env := newTestEnv(t)
	env.press("addsel:p9:1")
	assert.True(t, env.session(t).Cart.Empty())
	assert.Empty(t, env.api.texts())
}

func TestClassicCheckout_EndToEnd(t *testing.T) {
	env := newTestEnv(t)

	env.press("addsel:p1:2")
	env.text(userID, "Savatcha")
	cartText := env.api.lastMessage(t).Text
	assert.Contains(t, cartText, "1. "+escape("Tog' asali")+" — 1 kg x2 — 700000 so'm")
	assert.Contains(t, cartText, "<b>Jami:</b> 700000 so'm")

	env.press("checkout")
	assert.Equal(t, i18n.T("uz", "name_ask"), env.api.lastMessage(t).Text)

	env.text(userID, "Ali")
	env.text(userID, "+998901234567")
	env.text(userID, "Tashkent, st.1")
	assert.Equal(t, i18n.T("uz", "order_ok"), env.api.lastMessage(t).Text)

	stored := env.repo.GetOrders()
	require.Len(t, stored, 1)
	assert.Equal(t, int64(700000), stored[0].Total)
	assert.Equal(t, "Tashkent, st.1", stored[0].Address)
	assert.Equal(t, "ali", stored[0].UserHandle)
	assert.Len(t, env.dispatcher.orders, 1)

	s := env.session(t)
	assert.True(t, s.Cart.Empty())
	assert.Equal(t, session.StateNone, s.State)
}

func TestQuickCheckout_ContactAndLocation(t *testing.T) {
	env := newTestEnv(t)

	env.press("addsel:p2:1")
	env.press("quick")
	msg := env.api.lastMessage(t)
	assert.Equal(t, i18n.T("uz", "phone_share"), msg.Text)
	_, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	assert.True(t, ok)

	contact := message(userID, "")
	contact.Contact = &tgbotapi.Contact{PhoneNumber: "+998907654321", FirstName: "Vali"}
	env.send(contact)
	assert.Equal(t, i18n.T("uz", "loc_ask"), env.api.lastMessage(t).Text)

	env.text(userID, "Chilonzor")
	assert.Equal(t, i18n.T("uz", "loc_bad"), env.api.lastMessage(t).Text)

	loc := message(userID, "")
	loc.Location = &tgbotapi.Location{Latitude: 41.3, Longitude: 69.2}
	env.send(loc)

	msg = env.api.lastMessage(t)
	assert.Equal(t, i18n.T("uz", "thanks"), msg.Text)
	_, ok = msg.ReplyMarkup.(replyKeyboard)
	assert.True(t, ok, "main keyboard replaces the location button")

	stored := env.repo.GetOrders()
	require.Len(t, stored, 1)
	assert.Equal(t, "geo:41.3,69.2", stored[0].Address)
	assert.Equal(t, "Vali", stored[0].UserName)
	assert.Equal(t, int64(150000), stored[0].Total)
}

func TestMenuWordsWinOverCheckoutState(t *testing.T) {
	env := newTestEnv(t)

	env.press("addsel:p1:1")
	env.press("checkout")
	env.text(userID, "Kontakt")

	assert.Equal(t, i18n.T("uz", "contact"), env.api.lastMessage(t).Text)
	assert.Equal(t, session.StateClassicName, env.session(t).State)
}

func TestCancel_ClearsFlowAndCart(t *testing.T) {
	env := newTestEnv(t)
	env.press("lang:ru")
	env.press("addsel:p1:1")
	env.press("checkout")

	env.text(userID, "/cancel")
	s := env.session(t)
	assert.Equal(t, session.StateNone, s.State)
	assert.True(t, s.Cart.Empty())
	assert.Equal(t, "ru", s.Lang)
	assert.Equal(t, i18n.T("ru", "cancelled"), env.api.lastMessage(t).Text)
}

func TestClearCart(t *testing.T) {
	env := newTestEnv(t)
	env.press("addsel:p1:1")
	env.press("clear_cart")
	assert.True(t, env.session(t).Cart.Empty())
	assert.Equal(t, i18n.T("uz", "cart_cleared"), env.api.lastMessage(t).Text)

	env.press("checkout")
	assert.Equal(t, i18n.T("uz", "cart_empty"), env.api.lastMessage(t).Text)
}

func TestInfoCallback(t *testing.T) {
	env := newTestEnv(t)

	env.press("info:p1")
	assert.Equal(t, escape("Tog'dan yig'ilgan"), env.api.lastMessage(t).Text)

	env.press("info:p404")
	assert.Equal(t, i18n.T("uz", "info_missing"), env.api.lastMessage(t).Text)
}

func TestWebAppData_PlacesOrder(t *testing.T) {
	env := newTestEnv(t)

	msg := message(userID, "")
	env.bot.HandleUpdate(context.Background(), Update{
		Update:     tgbotapi.Update{Message: msg},
		WebAppData: &WebAppData{Data: `{"items":[{"id":"p1","qty":1},{"id":"zzz","qty":3}],"name":"Ali","phone":"+998901234567","address":"Yunusobod 4"}`},
	})

	assert.Equal(t, i18n.T("uz", "ord_received"), env.api.lastMessage(t).Text)
	stored := env.repo.GetOrders()
	require.Len(t, stored, 1)
	assert.Equal(t, int64(350000), stored[0].Total)
	assert.Equal(t, orders.SourceWebApp, stored[0].Source)
}

func TestWebAppData_Malformed(t *testing.T) {
	env := newTestEnv(t)

	env.bot.HandleUpdate(context.Background(), Update{
		Update:     tgbotapi.Update{Message: message(userID, "")},
		WebAppData: &WebAppData{Data: `nope`},
	})

	assert.Equal(t, i18n.T("uz", "bad_payload"), env.api.lastMessage(t).Text)
	assert.Empty(t, env.repo.GetOrders())
}

func TestAddProduct_AdminOnly(t *testing.T) {
	env := newTestEnv(t)

	env.text(userID, "/addproduct")
	assert.Equal(t, notAdminText, env.api.lastMessage(t).Text)
	assert.Equal(t, session.StateNone, env.session(t).State)
}

func TestAddProduct_Flow(t *testing.T) {
	env := newTestEnv(t)

	env.text(adminID, "/addproduct")
	assert.Equal(t, askPhotoText, env.api.lastMessage(t).Text)

	photo := message(adminID, "")
	photo.Photo = []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}}
	env.send(photo)
	assert.Equal(t, askNameText, env.api.lastMessage(t).Text)

	env.text(adminID, "Qora asal")
	env.text(adminID, "Juda shirin")
	env.text(adminID, "350 ming")
	assert.Equal(t, badPriceText, env.api.lastMessage(t).Text)
	assert.Equal(t, session.StateAdminPrice, env.session(t).State)

	env.text(adminID, "420000")
	assert.Contains(t, env.api.lastMessage(t).Text, "ID: p4")

	p, ok := env.catalog.Get("p4")
	require.True(t, ok)
	assert.Equal(t, "large", p.Photo)
	assert.Equal(t, "Qora asal", p.NameUz)
	assert.Equal(t, int64(420000), p.UnitPrice())
	assert.Equal(t, session.StateNone, env.session(t).State)
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t)

	env.text(adminID, "/listorders")
	assert.Equal(t, noOrdersText, env.api.lastMessage(t).Text)

	lat, lon := 41.311081, 69.240562
	_, err := env.repo.Save(context.Background(), orders.Draft{UserID: 5, UserName: "Ali", Phone: "+998901234567", Lat: &lat, Lon: &lon})
	require.NoError(t, err)

	env.text(adminID, "/listorders")
	text := env.api.lastMessage(t).Text
	assert.True(t, strings.HasPrefix(text, recentOrdersHdr))
	assert.Contains(t, text, "#1 — Ali — +998901234567 — 0 — ")
	assert.Contains(t, text, "(41.31108,69.24056)")
}

func TestPhotoUpload(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()
	env.api.fileURL = srv.URL

	upload := message(adminID, "")
	upload.Caption = "p2"
	upload.Photo = []tgbotapi.PhotoSize{{FileID: "f-small"}, {FileID: "f-large"}}
	env.send(upload)

	data, err := os.ReadFile(filepath.Join(env.cfg.WebAppDir, "img", "p2.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Contains(t, env.api.lastMessage(t).Text, "p2.jpg")
}

func TestPhotoUpload_Rejections(t *testing.T) {
	env := newTestEnv(t)

	bad := message(adminID, "")
	bad.Caption = "../../etc/passwd"
	bad.Photo = []tgbotapi.PhotoSize{{FileID: "f"}}
	env.send(bad)
	assert.Contains(t, env.api.lastMessage(t).Text, "masalan: p1")

	stranger := message(userID, "")
	stranger.Caption = "p1"
	stranger.Photo = []tgbotapi.PhotoSize{{FileID: "f"}}
	env.send(stranger)
	assert.Equal(t, notAdminText, env.api.lastMessage(t).Text)

	_, err := os.Stat(filepath.Join(env.cfg.WebAppDir, "img", "p1.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestWhoAmI(t *testing.T) {
	env := newTestEnv(t)
	env.text(userID, "/whoami")
	text := env.api.lastMessage(t).Text
	assert.Contains(t, text, "<code>77</code>")
	assert.Contains(t, text, "<code>-100</code>")
}

func TestTestAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.text(userID, "/testadmin")

	env.api.mu.Lock()
	defer env.api.mu.Unlock()
	require.Len(t, env.api.sent, 2)
	assert.Equal(t, int64(-100), env.api.sent[0].(tgbotapi.MessageConfig).ChatID)
	assert.Equal(t, "Yuborildi.", env.api.sent[1].(tgbotapi.MessageConfig).Text)
}

func TestRun_StopsWhenChannelCloses(t *testing.T) {
	env := newTestEnv(t)
	updates := make(chan Update, 2)
	updates <- Update{Update: tgbotapi.Update{Message: message(userID, "Kontakt")}}
	updates <- Update{Update: tgbotapi.Update{Message: message(userID, "Savatcha")}}
	close(updates)

	done := make(chan struct{})
	go func() {
		env.bot.Run(context.Background(), updates)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, []string{i18n.T("uz", "contact"), i18n.T("uz", "cart_empty")}, env.api.texts())
}

func TestParseUpdate(t *testing.T) {
	body := `{"update_id": 9, "message": {"message_id": 3, "chat": {"id": 500, "type": "private"},
		"from": {"id": 77, "is_bot": false, "first_name": "Ali"},
		"web_app_data": {"data": "{\"items\":[]}", "button_text": "Menu"}}}`

	u, err := ParseUpdate([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, 9, u.UpdateID)
	require.NotNil(t, u.Message)
	assert.Equal(t, int64(500), u.Message.Chat.ID)
	require.NotNil(t, u.WebAppData)
	assert.Equal(t, `{"items":[]}`, u.WebAppData.Data)

	plain, err := ParseUpdate([]byte(`{"update_id": 10}`))
	require.NoError(t, err)
	assert.Nil(t, plain.WebAppData)

	_, err = ParseUpdate([]byte(`{`))
	assert.Error(t, err)
}

func TestFromPolling(t *testing.T) {
	in := make(chan tgbotapi.Update, 1)
	in <- tgbotapi.Update{UpdateID: 4}
	close(in)

	var got []int
	for u := range FromPolling(context.Background(), in) {
		got = append(got, u.UpdateID)
	}
	assert.Equal(t, []int{4}, got)
}

func TestRegisterWebhook(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, RegisterWebhook(api, "https://shop.example.com/webhook"))

	require.Len(t, api.requests, 2)
	del, ok := api.requests[0].(tgbotapi.DeleteWebhookConfig)
	require.True(t, ok)
	assert.True(t, del.DropPendingUpdates)
	wh, ok := api.requests[1].(tgbotapi.WebhookConfig)
	require.True(t, ok)
	assert.Equal(t, "shop.example.com", wh.URL.Host)
}
