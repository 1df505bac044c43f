package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/m3rciful/musicbot/internal/generation"
)

const (
	textIntro           = "Бот умеет генерировать и редактировать музыку. Выбери действие."
	textResetHint       = "Начать заново можно нажав \"" + resetButton + "\" в нижнем меню 👇"
	textResetDone       = "Состояние сброшено. Начнём заново 👌"
	textChooseAction    = "Выбери действие:"
	textEditUnavailable = "Функция пока в разработке"
	textModeMenu        = "Выбери режим:\n\n" +
		"Обычный - указывается только описание трека, по описанию генерируется текст песни и жанры.\n\n" +
		"Расширенный - описывается жанр трека, выбирается инструментальный трек или песня, для песни указывается текст."
	textInstrumentalMenu = "Выбери что хочешь получить: мелодию (только музыка, без текста) или песню (с текстом)"
	textAskStyle         = "Опиши стиль трека, который хочешь получить. Описывать нужно в свободной форме на английском языке, например:\n" +
		"Dark ambient techno, 128 BPM, deep drones, industrial textures, distorted kick, no vocals"
	textAskDescription = "Опиши трек, который хочешь получить. Описывать нужно в свободной форме."
	textAskLyrics      = "Пришли текст песни (lyrics). Можно с [verse]/[chorus]."
	textSendingInvoice = "Ок. Отправляю счёт на оплату ⭐"
	textFlowFailed     = "Что-то пошло не так. Попробуй ещё раз или начни заново: /start"

	textPaymentMalformed = "Оплата получена ✅, но payload заказа непонятен. /start"
	textPaymentNotFound  = "Оплата получена ✅, но заказ не найден. Напиши /start."
	textPaymentDuplicate = "Этот заказ уже оплачен и обрабатывается ✅"
	textStrayRefunded    = "Этот заказ уже закрыт, повторная оплата возвращена."
	textStrayRefundFail  = "Этот заказ уже закрыт. Вернуть повторную оплату автоматически не удалось, мы вернём её вручную."
	textPaymentClaimed   = "✅ Оплата получена! Запускаю генерацию…"
	textPaymentFailed    = "Оплата получена ✅, но обработать её не удалось. Напиши /start, мы разберёмся."
	textRefunded         = "⚠️ Не удалось запустить генерацию. Средства возвращены."
	textRefundFailed     = "⚠️ Не удалось запустить генерацию. Возврат средств не прошёл автоматически, мы вернём их вручную."

	textStatusUsage = "Пришли так: <code>/status &lt;task_id&gt;</code>"
	textStatusError = "Что-то пошло не так. Проверь task_id или попробуй немного позже."

	textOrderUsage    = "Пришли так: /order <id>"
	textOrderNotFound = "Заказ не найден."
	textAdminOnly     = "Команда доступна только администратору."
	textRateLimited   = "Слишком часто, подожди секунду."
	textPanic         = "Что-то пошло не так. Попробуй ещё раз."
)

func invoiceDescription(price int) string {
	return fmt.Sprintf("Запуск генерации (Suno). Цена: %d⭐", price)
}

func priceLabel(price int) string {
	return fmt.Sprintf("%d Stars", price)
}

// launchedText is HTML; the task id comes from the API and is escaped.
func launchedText(taskID string) string {
	return fmt.Sprintf("🎛 Генерация запущена!\nДля проверки статуса отправь в чат:\n<code>/status %s</code>", html.EscapeString(taskID))
}

var trackOrdinals = []string{"ПЕРВЫЙ", "ВТОРОЙ"}

// renderStatus formats a task status as HTML. Tracks are listed only once
// the task succeeded.
func renderStatus(st generation.Status) string {
	blocks := []string{fmt.Sprintf("Статус: <b>%s</b>", html.EscapeString(st.Status))}
	if !st.Ready() {
		return blocks[0]
	}
	for i, tr := range st.Tracks {
		if i >= len(trackOrdinals) {
			break
		}
		title := strings.TrimSpace(tr.Title)
		if title == "" {
			title = fmt.Sprintf("Трек %d", i+1)
		}
		lines := []string{
			trackOrdinals[i],
			"<b>" + html.EscapeString("Название: "+title) + "</b>",
			linkLine("🖼", "Обложка", tr.ImageURL),
			linkLine("🎵", "Трек", tr.AudioURL),
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

func linkLine(icon, label, url string) string {
	if strings.TrimSpace(url) == "" {
		return fmt.Sprintf("%s %s: нет ссылки", icon, label)
	}
	return fmt.Sprintf(`%s <a href="%s">%s</a>`, icon, html.EscapeString(url), label)
}
