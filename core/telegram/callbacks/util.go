package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits callback data into a key and a payload. It accepts
// Telebot's "\f<unique>|<payload>" encoding and plain "<namespace>:<value>"
// data set on raw inline buttons.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	raw = strings.TrimPrefix(raw, "\\f")
	sep := "|"
	if !strings.Contains(raw, sep) {
		sep = ":"
	}
	parts := strings.SplitN(raw, sep, 2)
	key := strings.TrimSpace(parts[0])
	payload := ""
	if len(parts) == 2 {
		payload = strings.TrimSpace(parts[1])
	}
	return key, payload
}

// Data encodes a namespace and value as "<namespace>:<value>".
func Data(namespace, value string) string {
	return namespace + ":" + value
}
