package telegram

import (
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/walletbot/pkg/conversation"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	photoFileName    = "address.png"
	callbackAckEmpty = ""
)

// inbound is a Telegram update normalized for the controller.
type inbound struct {
	userID     string
	chatID     int64
	callbackID string
	event      conversation.Event
}

// translateUpdate maps an update to a conversation event. Updates the bot cannot act on return false.
func translateUpdate(update tgbotapi.Update) (inbound, bool) {
	switch {
	case update.Message != nil:
		return translateMessage(update.Message)
	case update.CallbackQuery != nil:
		return translateCallback(update.CallbackQuery)
	default:
		return inbound{}, false
	}
}

func translateMessage(message *tgbotapi.Message) (inbound, bool) {
	if message.Chat == nil {
		return inbound{}, false
	}
	userID := message.Chat.ID
	if message.From != nil {
		userID = message.From.ID
	}
	result := inbound{userID: strconv.FormatInt(userID, 10), chatID: message.Chat.ID}
	if message.IsCommand() {
		if option, ok := conversation.ParseMenuOption(message.Command()); ok {
			result.event = conversation.MenuSelect(option)
			return result, true
		}
	}
	text := strings.TrimSpace(message.Text)
	if text == "" {
		return inbound{}, false
	}
	result.event = conversation.TextInput(text)
	return result, true
}

func translateCallback(query *tgbotapi.CallbackQuery) (inbound, bool) {
	if query.From == nil || query.Message == nil || query.Message.Chat == nil {
		return inbound{}, false
	}
	result := inbound{
		userID:     strconv.FormatInt(query.From.ID, 10),
		chatID:     query.Message.Chat.ID,
		callbackID: query.ID,
	}
	event, ok := conversation.EventFromButtonData(query.Data)
	if !ok {
		return inbound{}, false
	}
	result.event = event
	return result, true
}

// renderDirective builds the outgoing message for a directive.
func renderDirective(chatID int64, directive conversation.Directive) tgbotapi.Chattable {
	markup := inlineKeyboard(directive.Buttons)
	if len(directive.Image) > 0 {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: photoFileName, Bytes: directive.Image})
		photo.Caption = directive.Text
		if markup != nil {
			photo.ReplyMarkup = *markup
		}
		return photo
	}
	message := tgbotapi.NewMessage(chatID, directive.Text)
	if markup != nil {
		message.ReplyMarkup = *markup
	}
	// Secrets should not surface in notification previews.
	message.DisableNotification = directive.Sensitive
	return message
}

func inlineKeyboard(buttons [][]conversation.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		keyboardRow := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Label, button.Data))
		}
		rows = append(rows, keyboardRow)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
