package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sanskrit-reader/api/internal/llm"
	"sanskrit-reader/api/internal/logger"
	"sanskrit-reader/api/internal/translate"
	"sanskrit-reader/api/internal/util"
)

// maxReplyRunes keeps replies under Telegram's 4096-char message limit.
const maxReplyRunes = 3900

// Bot is the slice of *tgbotapi.BotAPI the router needs.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot        Bot
	Engines    *llm.Engines
	EngManager *llm.Manager

	MaxImageBytes int64
	ModelTimeout  time.Duration
	Journal       translate.Journal
	HTTPClient    *http.Client
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil {
		return
	}
	cid := msg.Chat.ID

	switch {
	case msg.IsCommand():
		r.HandleCommand(cid, msg)
	case len(msg.Photo) > 0:
		r.acceptPhoto(ctx, msg)
	case msg.Document != nil:
		r.acceptDocument(ctx, msg)
	case msg.Text != "":
		r.send(cid, "⏳ Translating...")
		mctx, cancel := r.modelCtx(ctx)
		defer cancel()
		r.reply(cid, r.service(cid).TranslateText(mctx, msg.Text))
	}
}

func (r *Router) HandleCommand(cid int64, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		r.send(cid, "Send Sanskrit text or a photo of a Sanskrit page and I will reply with an English translation.\n"+
			"Several photos sent as an album are read as one page, top to bottom.\n"+
			"Commands: /health, /engine")
	case "health":
		r.send(cid, "✅ OK")
	case "engine":
		r.handleEngineCommand(cid, msg.CommandArguments())
	default:
		r.send(cid, "Unknown command")
	}
}

// handleEngineCommand switches the chat's engine.
//
//	/engine
//	/engine gemini [model]
//	/engine gpt [model]
//	/engine reset
func (r *Router) handleEngineCommand(cid int64, argLine string) {
	args := strings.Fields(argLine)
	if len(args) == 0 {
		cur := r.EngManager.Get(cid)
		r.send(cid, fmt.Sprintf("Current engine: %s (%s)\nUsage: /engine {%s} [model] | /engine reset",
			cur.Name(), cur.GetModel(), strings.Join(r.Engines.Names(), "|")))
		return
	}
	if strings.EqualFold(args[0], "reset") {
		r.EngManager.Reset(cid)
		cur := r.EngManager.Get(cid)
		r.send(cid, fmt.Sprintf("✅ Engine: %s (%s)", cur.Name(), cur.GetModel()))
		return
	}

	eng, err := r.Engines.GetEngine(args[0])
	if err != nil {
		r.send(cid, "❌ Unknown engine. Available: "+strings.Join(r.Engines.Names(), " | "))
		return
	}
	if len(args) > 1 {
		ms, ok := eng.(llm.ModelSwitcher)
		if !ok {
			r.send(cid, "❌ "+eng.Name()+" does not support switching models.")
			return
		}
		eng = ms.WithModel(args[1])
	}
	r.EngManager.Set(cid, eng)
	r.send(cid, fmt.Sprintf("✅ Engine: %s (%s)", eng.Name(), eng.GetModel()))
}

func (r *Router) service(cid int64) *translate.Service {
	opts := []translate.Option{translate.WithMaxImageBytes(r.MaxImageBytes)}
	if r.Journal != nil {
		opts = append(opts, translate.WithJournal(r.Journal))
	}
	return translate.New(r.EngManager.Get(cid), opts...)
}

// modelCtx bounds one model call; ModelTimeout 0 leaves ctx as is.
func (r *Router) modelCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.ModelTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.ModelTimeout)
}

func (r *Router) reply(cid int64, res translate.Result) {
	if !res.Success {
		r.send(cid, "⚠️ "+res.Error)
		return
	}
	text := strings.TrimSpace(res.Translation)
	if text == "" {
		text = "(empty)"
	}
	r.send(cid, "📜 English translation:\n\n"+util.Truncate(text, maxReplyRunes))
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		logger.Warnf("telegram send chat=%d: %v", chatID, err)
	}
}
