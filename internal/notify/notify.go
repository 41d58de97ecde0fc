// Package notify tells club admins about provisioning and delivery problems.
// It is optional: without a bot token every call is a no-op.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"club-registration/internal/config"
	"club-registration/internal/models"
)

type Notifier interface {
	SheetProvisioned(ctx context.Context, res models.ProvisionResult)
	PartialDelivery(ctx context.Context, res models.MultiSubmitResult)
}

type Nop struct{}

func (Nop) SheetProvisioned(context.Context, models.ProvisionResult)  {}
func (Nop) PartialDelivery(context.Context, models.MultiSubmitResult) {}

// sender is the part of *tgbotapi.BotAPI we use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends plain-text messages to every admin chat. Sends run in the
// background; Wait blocks until they finish.
type Telegram struct {
	bot     sender
	chatIDs []int64
	logger  *zap.Logger
	wg      sync.WaitGroup
}

var _ Notifier = (*Telegram)(nil)

// New returns a Telegram notifier, or Nop when no token is configured.
func New(cfg config.TelegramConfig, logger *zap.Logger) (Notifier, error) {
	if cfg.Token == "" {
		return Nop{}, nil
	}
	b, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	b.Debug = false
	return newTelegram(b, cfg.AdminChatIDs, logger), nil
}

func newTelegram(bot sender, ids map[int64]bool, logger *zap.Logger) *Telegram {
	if logger == nil {
		logger = zap.NewNop()
	}
	chatIDs := make([]int64, 0, len(ids))
	for id, ok := range ids {
		if ok {
			chatIDs = append(chatIDs, id)
		}
	}
	sort.Slice(chatIDs, func(i, j int) bool { return chatIDs[i] < chatIDs[j] })
	return &Telegram{bot: bot, chatIDs: chatIDs, logger: logger}
}

func (t *Telegram) SheetProvisioned(_ context.Context, res models.ProvisionResult) {
	if res.Existing {
		return
	}
	t.broadcast(fmt.Sprintf("📄 New registration sheet for %s (%s)\nclubId: %s\nsheetId: %s",
		res.ClubName, res.AcademicYear, res.ClubID, res.SheetID,
	))
}

func (t *Telegram) PartialDelivery(_ context.Context, res models.MultiSubmitResult) {
	if res.OK == res.Total {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ Registration delivered to %d of %d sheets", res.OK, res.Total)
	for _, r := range res.Results {
		if !r.OK {
			fmt.Fprintf(&b, "\n• %s: %s", r.SheetID, r.Error)
		}
	}
	t.broadcast(b.String())
}

func (t *Telegram) broadcast(text string) {
	for _, id := range t.chatIDs {
		id := id
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			if _, err := t.bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
				t.logger.Warn("admin notification failed", zap.Int64("chat_id", id), zap.Error(err))
			}
		}()
	}
}

// Wait blocks until pending sends finish.
func (t *Telegram) Wait() { t.wg.Wait() }
