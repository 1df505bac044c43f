package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/musicbot/core/telegram/callbacks"
	"github.com/m3rciful/musicbot/core/telegram/keyboard"
)

// Callback namespaces of the inline menus.
const (
	nsFunction     = "function"
	nsMode         = "mode"
	nsInstrumental = "instrumental"
)

const resetButton = "❌ Сброс"

func inlineBtn(text, ns, value string) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Data: callbacks.Data(ns, value)}
}

func startMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		inlineBtn("🎼 Сгенерировать музыку", nsFunction, "generation"),
		inlineBtn("✏️ Редактировать музыку", nsFunction, "edit"),
	})
}

func modeMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		inlineBtn("Обычный", nsMode, "classic"),
		inlineBtn("Расширенный", nsMode, "custom"),
	})
}

func instrumentalMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		inlineBtn("🎵 Инструментал", nsInstrumental, "true"),
		inlineBtn("🎤 Песня", nsInstrumental, "false"),
	})
}

func mainMenu() *tele.ReplyMarkup {
	return keyboard.ReplyButtons([]string{resetButton})
}
