// Package telegram connects the conversation controller to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MarkoPoloResearchLab/walletbot/pkg/conversation"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const defaultPollTimeoutSeconds = 30

// Sender delivers outgoing messages. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(chattable tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(chattable tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Handler processes one conversation event.
type Handler interface {
	Handle(ctx context.Context, userID conversation.UserID, event conversation.Event) (conversation.Directive, error)
}

// Bot dispatches updates to the controller. Updates from one user are handled in arrival
// order by that user's worker; different users run concurrently.
type Bot struct {
	sender  Sender
	handler Handler
	logger  *zap.Logger
	group   sync.WaitGroup
	mu      sync.Mutex
	queues  map[int64]*userQueue
}

// userQueue holds updates waiting behind the one its worker is handling.
type userQueue struct {
	pending []tgbotapi.Update
}

// NewBot wires a Bot.
func NewBot(sender Sender, handler Handler, logger *zap.Logger) (*Bot, error) {
	if sender == nil {
		return nil, errors.New("telegram: sender is required")
	}
	if handler == nil {
		return nil, errors.New("telegram: handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{sender: sender, handler: handler, logger: logger, queues: make(map[int64]*userQueue)}, nil
}

// NewUpdateConfig returns the long-polling configuration used by the binary.
func NewUpdateConfig() tgbotapi.UpdateConfig {
	config := tgbotapi.NewUpdate(0)
	config.Timeout = defaultPollTimeoutSeconds
	return config
}

// Run consumes updates until ctx is done or the channel closes, then waits for in-flight handlers.
func (bot *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	defer bot.group.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			bot.dispatch(ctx, update)
		}
	}
}

// dispatch appends update to its user's queue, starting a worker when none is running.
func (bot *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	key := updateSenderID(update)
	bot.mu.Lock()
	if queue, running := bot.queues[key]; running {
		queue.pending = append(queue.pending, update)
		bot.mu.Unlock()
		return
	}
	queue := &userQueue{pending: []tgbotapi.Update{update}}
	bot.queues[key] = queue
	bot.mu.Unlock()

	bot.group.Add(1)
	go bot.drain(ctx, key, queue)
}

// drain handles queued updates one at a time and retires the worker once the queue is empty.
func (bot *Bot) drain(ctx context.Context, key int64, queue *userQueue) {
	defer bot.group.Done()
	for {
		bot.mu.Lock()
		if len(queue.pending) == 0 {
			delete(bot.queues, key)
			bot.mu.Unlock()
			return
		}
		update := queue.pending[0]
		queue.pending = queue.pending[1:]
		bot.mu.Unlock()

		if err := bot.HandleUpdate(ctx, update); err != nil {
			bot.logger.Warn("telegram update failed", zap.Int("update_id", update.UpdateID), zap.Error(err))
		}
	}
}

// updateSenderID returns the Telegram user behind update, or 0 when there is none.
func updateSenderID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	default:
		return 0
	}
}

// HandleUpdate processes a single update synchronously.
func (bot *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	message, ok := translateUpdate(update)
	if !ok {
		if update.CallbackQuery != nil {
			bot.acknowledge(update.CallbackQuery.ID)
		}
		return nil
	}
	if message.callbackID != "" {
		bot.acknowledge(message.callbackID)
	}
	userID, err := conversation.NewUserID(message.userID)
	if err != nil {
		return err
	}
	directive, err := bot.handler.Handle(ctx, userID, message.event)
	if err != nil {
		return fmt.Errorf("handle event: %w", err)
	}
	if _, err := bot.sender.Send(renderDirective(message.chatID, directive)); err != nil {
		return fmt.Errorf("send directive: %w", err)
	}
	return nil
}

func (bot *Bot) acknowledge(callbackID string) {
	if _, err := bot.sender.Request(tgbotapi.NewCallback(callbackID, callbackAckEmpty)); err != nil {
		bot.logger.Debug("callback acknowledgement failed", zap.Error(err))
	}
}
