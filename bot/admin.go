package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"telegram-shop-bot/catalog"
	"telegram-shop-bot/session"
)

// Admin-facing texts are Uzbek only.
const (
	notAdminText    = "Siz admin emassiz."
	askPhotoText    = "🖼 Rasm yuboring (photo yoki URL):"
	askNameText     = "📝 Nomi (o‘zbekcha):"
	askDescText     = "✍️ Ta’rif (o‘zbekcha), ixtiyoriy:"
	askPriceText    = "💰 Narx (1 kg, so‘m) — faqat son, masalan 350000"
	badPriceText    = "Faqat son kiriting (masalan 350000)."
	noOrdersText    = "Buyurtma yo‘q."
	recentOrdersHdr = "🧾 So‘nggi buyurtmalar:"

	recentOrdersLimit = 20
)

var productIDPattern = regexp.MustCompile(`^p\d+$`)

func isAdminState(s session.State) bool {
	switch s {
	case session.StateAdminPhoto, session.StateAdminName, session.StateAdminDesc, session.StateAdminPrice:
		return true
	}
	return false
}

func (b *ShopBot) isAdmin(u *tgbotapi.User) bool {
	return u != nil && b.cfg.IsAdmin(u.ID)
}

func (b *ShopBot) handleWhoAmI(message *tgbotapi.Message) {
	var userID int64
	if message.From != nil {
		userID = message.From.ID
	}
	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"🆔 user_id: <code>%d</code>\n👥 chat_id: <code>%d</code>\n⚙️ ADMIN_CHAT_ID: <code>%d</code>",
		userID, message.Chat.ID, b.cfg.AdminChatID,
	))
}

func (b *ShopBot) handleTestAdmin(message *tgbotapi.Message) {
	if b.cfg.AdminChatID == 0 {
		b.sendMessage(message.Chat.ID, "❌ Yuborilmadi: ADMIN_CHAT_ID o‘rnatilmagan")
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(b.cfg.AdminChatID, "✅ Admin chat sinovi")); err != nil {
		b.sendMessage(message.Chat.ID, "❌ Yuborilmadi: "+escape(err.Error()))
		return
	}
	b.sendMessage(message.Chat.ID, "Yuborildi.")
}

func (b *ShopBot) handleAddProduct(message *tgbotapi.Message, s *session.Session) {
	if !b.isAdmin(message.From) {
		b.sendMessage(message.Chat.ID, notAdminText)
		return
	}
	s.Draft = catalog.Draft{}
	s.State = session.StateAdminPhoto
	b.sendMessage(message.Chat.ID, askPhotoText)
}

// handleAdminInput walks photo, name, description and price. The cart is
// left alone so an admin can shop and edit the catalog in one chat.
func (b *ShopBot) handleAdminInput(message *tgbotapi.Message, s *session.Session) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch s.State {
	case session.StateAdminPhoto:
		if n := len(message.Photo); n > 0 {
			s.Draft.Photo = message.Photo[n-1].FileID
		} else {
			s.Draft.Photo = text
		}
		s.State = session.StateAdminName
		b.sendMessage(chatID, askNameText)

	case session.StateAdminName:
		s.Draft.NameUz = text
		s.State = session.StateAdminDesc
		b.sendMessage(chatID, askDescText)

	case session.StateAdminDesc:
		s.Draft.DescUz = text
		s.State = session.StateAdminPrice
		b.sendMessage(chatID, askPriceText)

	case session.StateAdminPrice:
		price, err := strconv.ParseInt(text, 10, 64)
		if err != nil || price <= 0 {
			b.sendMessage(chatID, badPriceText)
			return
		}
		s.Draft.Price = price

		p, err := b.catalog.Append(s.Draft)
		if err != nil {
			b.logger.WithField("chat_id", chatID).WithError(err).Error("Failed to append product")
			b.sendMessage(chatID, "❌ Saqlab bo‘lmadi: "+escape(err.Error()))
			return
		}

		b.logger.WithFields(logrus.Fields{
			"product_id": p.ID,
			"price":      price,
		}).Info("Product added")

		s.State = session.StateNone
		s.Draft = catalog.Draft{}
		b.sendMessage(chatID, fmt.Sprintf("✅ Qo‘shildi: <b>%s</b> (1 kg: %d so‘m)\nID: %s", escape(p.NameUz), price, p.ID))
	}
}

func (b *ShopBot) handleListOrders(ctx context.Context, message *tgbotapi.Message) {
	if !b.isAdmin(message.From) {
		b.sendMessage(message.Chat.ID, notAdminText)
		return
	}

	recent, err := b.orders.Recent(ctx, recentOrdersLimit)
	if err != nil {
		b.logger.WithError(err).Error("Failed to list orders")
		b.sendMessage(message.Chat.ID, "❌ "+escape(err.Error()))
		return
	}
	if len(recent) == 0 {
		b.sendMessage(message.Chat.ID, noOrdersText)
		return
	}

	rows := make([]string, 0, len(recent)+1)
	rows = append(rows, recentOrdersHdr)
	for _, o := range recent {
		row := fmt.Sprintf("#%d — %s — %s — %d — %s",
			o.ID, escape(o.UserName), escape(o.Phone), o.Total, o.CreatedAt.Format("2006-01-02T15:04:05"))
		if o.HasGeo() {
			row += fmt.Sprintf(" (%.5f,%.5f)", *o.Lat, *o.Lon)
		}
		rows = append(rows, row)
	}
	b.sendMessage(message.Chat.ID, strings.Join(rows, "\n"))
}

// handlePhotoUpload stores a product image sent with its id as the caption.
func (b *ShopBot) handlePhotoUpload(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	pid := strings.TrimSpace(message.Caption)

	if !productIDPattern.MatchString(pid) {
		var userID int64
		if message.From != nil {
			userID = message.From.ID
		}
		b.sendMessage(chatID, fmt.Sprintf("⚠️ Iltimos, rasm izohiga mahsulot ID sini yozing (masalan: p1).\nSizning ID: %d", userID))
		return
	}
	if !b.isAdmin(message.From) {
		b.sendMessage(chatID, notAdminText)
		return
	}

	photo := message.Photo[len(message.Photo)-1]
	dst := filepath.Join(b.cfg.WebAppDir, "img", pid+".jpg")
	if err := b.downloadFile(photo.FileID, dst); err != nil {
		b.logger.WithFields(logrus.Fields{
			"product_id": pid,
			"file_id":    photo.FileID,
		}).WithError(err).Error("Failed to store product photo")
		b.sendMessage(chatID, "❌ Rasm saqlanmadi.")
		return
	}

	b.logger.WithField("product_id", pid).Info("Product photo stored")
	b.sendMessage(chatID, fmt.Sprintf("✅ Rasm saqlandi: <b>%s.jpg</b>", pid))
}

func (b *ShopBot) downloadFile(fileID, dst string) error {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return fmt.Errorf("resolve file: %w", err)
	}

	resp, err := b.http.Get(url)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("write file: %w", err)
	}
	return f.Close()
}
