// Package invoice mints and parses the payload string attached to Telegram
// invoices. The payment rail echoes it back on successful payment, which is
// how a payment is matched to its order.
package invoice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const prefix = "order:"

// MaxLen is the Telegram limit for invoice payloads in bytes.
const MaxLen = 128

// ErrMalformed is returned for payloads that do not encode a positive order id.
var ErrMalformed = errors.New("invoice: malformed payload")

// Mint encodes an order id as "order:<id>".
func Mint(orderID int64) (string, error) {
	if orderID <= 0 {
		return "", fmt.Errorf("invoice: order id must be positive, got %d", orderID)
	}
	return prefix + strconv.FormatInt(orderID, 10), nil
}

// Parse decodes a payload produced by Mint.
func Parse(payload string) (int64, error) {
	if len(payload) > MaxLen || !strings.HasPrefix(payload, prefix) {
		return 0, ErrMalformed
	}
	digits := payload[len(prefix):]
	if digits == "" {
		return 0, ErrMalformed
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, ErrMalformed
		}
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMalformed
	}
	return id, nil
}
