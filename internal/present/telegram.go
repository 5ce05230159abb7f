package present

import (
	"context"
	"errors"
	"html"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"sioux/internal/dispatch"
	rtsup "sioux/internal/runtime/supervisor"
	logx "sioux/pkg/logx"
)

const (
	telegramTextLimit   = 4096
	telegramSendTimeout = 10 * time.Second
	telegramBacklog     = 64
)

var ErrMirrorBacklog = errors.New("telegram mirror backlog full")

type TelegramConfig struct {
	Token      string
	ChatID     int64
	ThreadID   int
	RatePerSec int
}

// Sender delivers one HTML message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, threadID int, text string) error
}

type botSender struct {
	bot *tele.Bot
}

// NewBotSender creates a send-only telebot client.
func NewBotSender(token string) (Sender, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, err
	}
	return &botSender{bot: b}, nil
}

func (s *botSender) Send(ctx context.Context, chatID int64, threadID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ThreadID:              threadID,
	})
	return err
}

// Telegram mirrors notifications to a chat from its own goroutine, so a
// slow network never delays the on-screen queue.
type Telegram struct {
	mu      sync.Mutex
	cfg     TelegramConfig
	sender  Sender
	limiter *rate.Limiter
	log     logx.Logger

	backlog chan string
	sup     *rtsup.Supervisor
}

func NewTelegram(cfg TelegramConfig, sender Sender, log logx.Logger) *Telegram {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{
		cfg:     cfg,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log,
	}
}

func (t *Telegram) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sup != nil {
		return
	}
	t.backlog = make(chan string, telegramBacklog)
	t.sup = rtsup.New(ctx, rtsup.WithLogger(t.log))
	backlog := t.backlog
	t.sup.GoRestart("telegram.mirror", func(c context.Context) error {
		t.loop(c, backlog)
		return nil
	}, rtsup.WithPublishFirstError(true))
}

func (t *Telegram) Stop(ctx context.Context) error {
	t.mu.Lock()
	sup := t.sup
	t.sup = nil
	t.backlog = nil
	t.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Stop(ctx)
}

// Present queues a copy of p. It never waits for the network.
func (t *Telegram) Present(_ context.Context, p dispatch.Presentation) error {
	text := FormatHTML(p)
	t.mu.Lock()
	backlog := t.backlog
	t.mu.Unlock()
	if backlog == nil {
		return nil
	}
	select {
	case backlog <- text:
		return nil
	default:
		return ErrMirrorBacklog
	}
}

func (t *Telegram) loop(ctx context.Context, backlog <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-backlog:
			t.send(ctx, text)
		}
	}
}

func (t *Telegram) send(ctx context.Context, text string) {
	for _, chunk := range splitText(text, telegramTextLimit) {
		if err := t.limiter.Wait(ctx); err != nil {
			return
		}
		cctx, cancel := context.WithTimeout(ctx, telegramSendTimeout)
		err := t.sender.Send(cctx, t.cfg.ChatID, t.cfg.ThreadID, chunk)
		cancel()
		if err != nil {
			t.log.Warn("telegram mirror send failed", logx.Err(err), logx.Int64("chat_id", t.cfg.ChatID))
			return
		}
	}
}

// FormatHTML renders a presentation as Telegram HTML: bold header, escaped body.
func FormatHTML(p dispatch.Presentation) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(p.Header))
	b.WriteString("</b>\n")
	for _, part := range p.Parts {
		b.WriteString(html.EscapeString(part.Text))
	}
	return b.String()
}

// splitText cuts s into chunks of at most limit runes, preferring a
// newline in the last two thirds of each window and never cutting inside
// an HTML tag or entity.
func splitText(s string, limit int) []string {
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}
	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			for i := end - 1; i > start+limit/3; i-- {
				if rs[i] == '\n' {
					end = i + 1
					break
				}
			}
			end = backOffMarkup(rs, start, end)
		}
		out = append(out, string(rs[start:end]))
		start = end
	}
	return out
}

// backOffMarkup moves end before an unterminated '<...>' or '&...;'.
func backOffMarkup(rs []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		switch rs[i] {
		case '>', ';':
			return end
		case '<', '&':
			if i > start {
				return i
			}
			return end
		}
	}
	return end
}
