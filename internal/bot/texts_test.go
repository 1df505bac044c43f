package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/musicbot/internal/generation"
)

func TestRenderStatusPending(t *testing.T) {
	got := renderStatus(generation.Status{Status: "PENDING", Tracks: []generation.Track{{Title: "x"}}})
	assert.Equal(t, "Статус: <b>PENDING</b>", got)
}

func TestRenderStatusTracks(t *testing.T) {
	got := renderStatus(generation.Status{
		Status: "SUCCESS",
		Tracks: []generation.Track{
			{Title: "Night <Drive>", AudioURL: "https://cdn/a.mp3?x=1&y=2", ImageURL: "https://cdn/a.jpg"},
			{AudioURL: "https://cdn/b.mp3"},
		},
	})

	blocks := strings.Split(got, "\n\n")
	assert.Len(t, blocks, 3)
	assert.Equal(t, "Статус: <b>SUCCESS</b>", blocks[0])
	assert.Contains(t, blocks[1], "ПЕРВЫЙ\n<b>Название: Night &lt;Drive&gt;</b>")
	assert.Contains(t, blocks[1], `🎵 <a href="https://cdn/a.mp3?x=1&amp;y=2">Трек</a>`)
	assert.Contains(t, blocks[1], `🖼 <a href="https://cdn/a.jpg">Обложка</a>`)
	assert.Contains(t, blocks[2], "ВТОРОЙ\n<b>Название: Трек 2</b>")
	assert.Contains(t, blocks[2], "🖼 Обложка: нет ссылки")
}

func TestRenderStatusEscapes(t *testing.T) {
	assert.Equal(t, "Статус: <b>&lt;b&gt;</b>", renderStatus(generation.Status{Status: "<b>"}))
}

func TestLaunchedText(t *testing.T) {
	assert.Contains(t, launchedText("abc123"), "<code>/status abc123</code>")
	assert.Contains(t, launchedText("a<b>_`c"), "<code>/status a&lt;b&gt;_`c</code>")
	assert.Equal(t, "Запуск генерации (Suno). Цена: 6⭐", invoiceDescription(6))
}
