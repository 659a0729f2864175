package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mathcanvas/api/internal/calc"
	"mathcanvas/api/internal/llm"
)

type Router struct {
	Bot     *tgbotapi.BotAPI
	Engines *llm.Engines
	Journal calc.Journal
	Vars    *VarStore
	Log     *zap.Logger

	chatEngine sync.Map // chatID -> engine name
	jobs       errgroup.Group
	jobsOnce   sync.Once
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	if upd.Message.IsCommand() {
		r.HandleCommand(*upd.Message)
		return
	}
	if len(upd.Message.Photo) > 0 {
		r.acceptPhoto(ctx, *upd.Message)
		return
	}
	r.send(upd.Message.Chat.ID, "Send a photo of the drawing. /help lists commands.")
}

func (r *Router) HandleCommand(msg tgbotapi.Message) {
	cid := msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "vars":
		r.send(cid, formatVars(r.Vars.Snapshot(cid)))
	case "reset":
		r.Vars.Reset(cid)
		r.send(cid, "Variables cleared.")
	case "set":
		name, val, err := parseSetArgs(args)
		if err != nil {
			r.send(cid, err.Error())
			return
		}
		r.Vars.Merge(cid, calc.Variables{name: val})
		r.send(cid, fmt.Sprintf("%s = %v", name, val))
	case "engine":
		r.send(cid, r.handleEngineCommand(cid, args))
	default:
		r.send(cid, "Unknown command. /help lists commands.")
	}
}

// handleEngineCommand shows or switches the chat's engine:
//
//	/engine
//	/engine gemini
//	/engine openai
func (r *Router) handleEngineCommand(chatID int64, args []string) string {
	if len(args) == 0 {
		eng, err := r.Engines.GetEngine(r.engineFor(chatID))
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("Current engine: %s (%s)\nAvailable: %s",
			eng.Name(), eng.GetModel(), strings.Join(r.Engines.Names(), " | "))
	}
	eng, err := r.Engines.GetEngine(args[0])
	if err != nil {
		return "Unknown engine. Available: " + strings.Join(r.Engines.Names(), " | ")
	}
	r.setEngine(chatID, eng.Name())
	return fmt.Sprintf("Engine: %s (%s).", eng.Name(), eng.GetModel())
}

func parseSetArgs(args []string) (string, any, error) {
	if len(args) != 2 {
		return "", nil, errors.New("usage: /set <name> <value>")
	}
	return args[0], calc.ScalarFromText(args[1]), nil
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		r.Log.Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.Log.Warn("solve failed", zap.Int64("chat_id", chatID), zap.Error(err))
	switch {
	case errors.Is(err, calc.ErrInvalidImage):
		r.send(chatID, "Could not read that picture.")
	case errors.Is(err, llm.ErrUnknownEngine):
		r.send(chatID, "The selected engine is not available. Use /engine to pick another.")
	case errors.Is(err, calc.ErrUpstreamUnavailable):
		r.send(chatID, "The model is not answering right now, try again later.")
	default:
		r.send(chatID, fmt.Sprintf("Error: %v", err))
	}
}
