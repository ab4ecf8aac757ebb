package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/walletbot/pkg/conversation"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type recordingSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
}

func (sender *recordingSender) Send(chattable tgbotapi.Chattable) (tgbotapi.Message, error) {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	sender.sent = append(sender.sent, chattable)
	return tgbotapi.Message{}, sender.sendErr
}

func (sender *recordingSender) Request(chattable tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	sender.requests = append(sender.requests, chattable)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (sender *recordingSender) sentCount() int {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	return len(sender.sent)
}

type recordingHandler struct {
	mu        sync.Mutex
	users     []string
	events    []conversation.Event
	directive conversation.Directive
	err       error
}

func (handler *recordingHandler) Handle(_ context.Context, userID conversation.UserID, event conversation.Event) (conversation.Directive, error) {
	handler.mu.Lock()
	defer handler.mu.Unlock()
	handler.users = append(handler.users, userID.String())
	handler.events = append(handler.events, event)
	return handler.directive, handler.err
}

func commandMessage(command string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text:     "/" + command,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}},
		Chat:     &tgbotapi.Chat{ID: 500},
		From:     &tgbotapi.User{ID: 77},
	}
}

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: 500}, From: &tgbotapi.User{ID: 77}}
}

func callback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 77},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 500}},
		Data:    data,
	}
}

func TestTranslateUpdate(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		update   tgbotapi.Update
		expected conversation.Event
		ok       bool
	}{
		{name: "start command", update: tgbotapi.Update{Message: commandMessage("start")}, expected: conversation.MenuSelect(conversation.OptionStart), ok: true},
		{name: "help command", update: tgbotapi.Update{Message: commandMessage("help")}, expected: conversation.MenuSelect(conversation.OptionHelp), ok: true},
		{name: "unknown command is text", update: tgbotapi.Update{Message: commandMessage("unknown")}, expected: conversation.TextInput("/unknown"), ok: true},
		{name: "plain text", update: tgbotapi.Update{Message: textMessage("  rDEST  ")}, expected: conversation.TextInput("rDEST"), ok: true},
		{name: "blank text", update: tgbotapi.Update{Message: textMessage("   ")}},
		{name: "confirm button", update: tgbotapi.Update{CallbackQuery: callback("confirm")}, expected: conversation.Confirm(), ok: true},
		{name: "cancel button", update: tgbotapi.Update{CallbackQuery: callback("cancel")}, expected: conversation.Cancel(), ok: true},
		{name: "menu button", update: tgbotapi.Update{CallbackQuery: callback("check_balance")}, expected: conversation.MenuSelect(conversation.OptionCheckBalance), ok: true},
		{name: "stale button", update: tgbotapi.Update{CallbackQuery: callback("bogus")}},
		{name: "empty update", update: tgbotapi.Update{}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			result, ok := translateUpdate(testCase.update)
			if ok != testCase.ok {
				test.Fatalf("expected ok=%v, got %v", testCase.ok, ok)
			}
			if !ok {
				return
			}
			if result.event != testCase.expected {
				test.Fatalf("expected %+v, got %+v", testCase.expected, result.event)
			}
			if result.userID != "77" || result.chatID != 500 {
				test.Fatalf("unexpected routing %+v", result)
			}
		})
	}
}

func TestRenderDirective(test *testing.T) {
	test.Parallel()
	buttons := [][]conversation.Button{{{Label: "Confirm", Data: "confirm"}, {Label: "Cancel", Data: "cancel"}}}

	text := renderDirective(500, conversation.Directive{Text: "Confirm?", Buttons: buttons})
	message, ok := text.(tgbotapi.MessageConfig)
	if !ok {
		test.Fatalf("expected MessageConfig, got %T", text)
	}
	markup, ok := message.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 2 {
		test.Fatalf("unexpected keyboard %+v", message.ReplyMarkup)
	}
	if *markup.InlineKeyboard[0][0].CallbackData != "confirm" {
		test.Fatalf("unexpected callback data")
	}

	photo, ok := renderDirective(500, conversation.Directive{Text: "WALLET ADDRESS: rX", Image: []byte("png")}).(tgbotapi.PhotoConfig)
	if !ok {
		test.Fatalf("expected PhotoConfig")
	}
	if photo.Caption != "WALLET ADDRESS: rX" || photo.ReplyMarkup != nil {
		test.Fatalf("unexpected photo %+v", photo)
	}

	secret := renderDirective(500, conversation.Directive{Text: "Secret: s1", Sensitive: true}).(tgbotapi.MessageConfig)
	if !secret.DisableNotification {
		test.Fatalf("sensitive messages must not notify")
	}
}

func TestHandleUpdateRoutesToHandler(test *testing.T) {
	test.Parallel()
	sender := &recordingSender{}
	handler := &recordingHandler{directive: conversation.Directive{Text: "Enter the address to send to:"}}
	bot, err := NewBot(sender, handler, nil)
	if err != nil {
		test.Fatalf("new bot: %v", err)
	}
	if err := bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: callback("send")}); err != nil {
		test.Fatalf("handle update: %v", err)
	}
	if len(handler.events) != 1 || handler.events[0] != conversation.MenuSelect(conversation.OptionSend) || handler.users[0] != "77" {
		test.Fatalf("unexpected handler calls %+v", handler.events)
	}
	if len(sender.requests) != 1 {
		test.Fatalf("expected callback acknowledgement")
	}
	if sender.sentCount() != 1 {
		test.Fatalf("expected one outgoing message, got %d", sender.sentCount())
	}
}

func TestHandleUpdateErrors(test *testing.T) {
	test.Parallel()
	handler := &recordingHandler{err: errors.New("busy")}
	bot, err := NewBot(&recordingSender{}, handler, nil)
	if err != nil {
		test.Fatalf("new bot: %v", err)
	}
	if err := bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: textMessage("hi")}); err == nil {
		test.Fatalf("expected handler error")
	}

	failingSender := &recordingSender{sendErr: errors.New("network")}
	bot, err = NewBot(failingSender, &recordingHandler{}, nil)
	if err != nil {
		test.Fatalf("new bot: %v", err)
	}
	if err := bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: textMessage("hi")}); err == nil {
		test.Fatalf("expected send error")
	}

	ignoring := &recordingSender{}
	bot, err = NewBot(ignoring, &recordingHandler{}, nil)
	if err != nil {
		test.Fatalf("new bot: %v", err)
	}
	if err := bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: callback("bogus")}); err != nil {
		test.Fatalf("stale buttons must be ignored, got %v", err)
	}
	if len(ignoring.requests) != 1 || ignoring.sentCount() != 0 {
		test.Fatalf("stale buttons are acknowledged without a reply")
	}
}

func TestNewBotValidatesDependencies(test *testing.T) {
	test.Parallel()
	if _, err := NewBot(nil, &recordingHandler{}, nil); err == nil {
		test.Fatalf("expected error for nil sender")
	}
	if _, err := NewBot(&recordingSender{}, nil, nil); err == nil {
		test.Fatalf("expected error for nil handler")
	}
}

func TestRunDrainsUpdates(test *testing.T) {
	test.Parallel()
	sender := &recordingSender{}
	bot, err := NewBot(sender, &recordingHandler{}, nil)
	if err != nil {
		test.Fatalf("new bot: %v", err)
	}
	updates := make(chan tgbotapi.Update, 3)
	for index := 0; index < 3; index++ {
		updates <- tgbotapi.Update{UpdateID: index, Message: textMessage("hello")}
	}
	close(updates)
	done := make(chan error, 1)
	go func() { done <- bot.Run(context.Background(), updates) }()
	select {
	case err := <-done:
		if err != nil {
			test.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		test.Fatalf("run did not return after the channel closed")
	}
	if sender.sentCount() != 3 {
		test.Fatalf("expected three replies, got %d", sender.sentCount())
	}
}

func TestRunStopsOnCancel(test *testing.T) {
	test.Parallel()
	bot, err := NewBot(&recordingSender{}, &recordingHandler{}, nil)
	if err != nil {
		test.Fatalf("new bot: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bot.Run(ctx, make(chan tgbotapi.Update)); err != nil {
		test.Fatalf("run: %v", err)
	}
}

type gatedHandler struct {
	mu       sync.Mutex
	texts    map[string][]string
	gateUser string
	gate     chan struct{}
}

func (handler *gatedHandler) Handle(_ context.Context, userID conversation.UserID, event conversation.Event) (conversation.Directive, error) {
	if userID.String() == handler.gateUser {
		<-handler.gate
	}
	handler.mu.Lock()
	defer handler.mu.Unlock()
	handler.texts[userID.String()] = append(handler.texts[userID.String()], event.Text)
	return conversation.Directive{Text: "ok"}, nil
}

func (handler *gatedHandler) seen(userID string) []string {
	handler.mu.Lock()
	defer handler.mu.Unlock()
	return append([]string(nil), handler.texts[userID]...)
}

func userText(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: userID}, From: &tgbotapi.User{ID: userID}}
}

func TestRunKeepsArrivalOrderPerUser(test *testing.T) {
	test.Parallel()
	const rounds = 200
	handler := &gatedHandler{texts: map[string][]string{}}
	bot, err := NewBot(&recordingSender{}, handler, nil)
	if err != nil {
		test.Fatalf("new bot: %v", err)
	}
	updates := make(chan tgbotapi.Update, rounds*2)
	expected := make([]string, 0, rounds*2)
	for index := 0; index < rounds; index++ {
		recipient := fmt.Sprintf("rDEST%d", index)
		amount := fmt.Sprintf("%d", index+1)
		updates <- tgbotapi.Update{UpdateID: 2 * index, Message: userText(7, recipient)}
		updates <- tgbotapi.Update{UpdateID: 2*index + 1, Message: userText(7, amount)}
		expected = append(expected, recipient, amount)
	}
	close(updates)
	if err := bot.Run(context.Background(), updates); err != nil {
		test.Fatalf("run: %v", err)
	}
	seen := handler.seen("7")
	if len(seen) != len(expected) {
		test.Fatalf("expected %d events, got %d", len(expected), len(seen))
	}
	for index := range expected {
		if seen[index] != expected[index] {
			test.Fatalf("event %d: expected %q, got %q", index, expected[index], seen[index])
		}
	}
}

func TestRunDoesNotBlockOtherUsers(test *testing.T) {
	test.Parallel()
	handler := &gatedHandler{texts: map[string][]string{}, gateUser: "7", gate: make(chan struct{})}
	bot, err := NewBot(&recordingSender{}, handler, nil)
	if err != nil {
		test.Fatalf("new bot: %v", err)
	}
	updates := make(chan tgbotapi.Update, 2)
	updates <- tgbotapi.Update{UpdateID: 1, Message: userText(7, "rDEST")}
	updates <- tgbotapi.Update{UpdateID: 2, Message: userText(8, "hello")}
	done := make(chan error, 1)
	go func() { done <- bot.Run(context.Background(), updates) }()

	deadline := time.After(5 * time.Second)
	for len(handler.seen("8")) == 0 {
		select {
		case <-deadline:
			test.Fatalf("user 8 was blocked behind user 7")
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(handler.gate)
	close(updates)
	if err := <-done; err != nil {
		test.Fatalf("run: %v", err)
	}
	if seen := handler.seen("7"); len(seen) != 1 || seen[0] != "rDEST" {
		test.Fatalf("unexpected events for user 7: %v", seen)
	}
}

func TestRunRetiresIdleWorkers(test *testing.T) {
	test.Parallel()
	bot, err := NewBot(&recordingSender{}, &recordingHandler{}, nil)
	if err != nil {
		test.Fatalf("new bot: %v", err)
	}
	updates := make(chan tgbotapi.Update, 2)
	updates <- tgbotapi.Update{UpdateID: 1, Message: userText(7, "a")}
	updates <- tgbotapi.Update{UpdateID: 2, Message: userText(8, "b")}
	close(updates)
	if err := bot.Run(context.Background(), updates); err != nil {
		test.Fatalf("run: %v", err)
	}
	bot.mu.Lock()
	defer bot.mu.Unlock()
	if len(bot.queues) != 0 {
		test.Fatalf("expected no queues after drain, got %d", len(bot.queues))
	}
}
