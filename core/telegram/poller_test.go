package telegram

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPollerLongPoll(t *testing.T) {
	p, ok := BuildPoller(PollerOptions{RunMode: "longpoll"}).(*tele.LongPoller)
	if !ok {
		t.Fatal("expected long poller")
	}
	if p.Timeout != defaultLongPollTimeout {
		t.Fatalf("timeout = %v", p.Timeout)
	}
	if !contains(p.AllowedUpdates, "pre_checkout_query") {
		t.Fatalf("allowed updates = %v", p.AllowedUpdates)
	}

	p = BuildPoller(PollerOptions{LongPollTimeoutSeconds: 25}).(*tele.LongPoller)
	if p.Timeout != 25*time.Second {
		t.Fatalf("timeout = %v", p.Timeout)
	}
}

func TestBuildPollerWebhook(t *testing.T) {
	w, ok := BuildPoller(PollerOptions{
		RunMode: "Webhook",
		Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example/hook"},
	}).(*tele.Webhook)
	if !ok {
		t.Fatal("expected webhook")
	}
	if w.Listen != "0.0.0.0:8443" || w.Endpoint.PublicURL != "https://bot.example/hook" {
		t.Fatalf("webhook = %+v", w)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
