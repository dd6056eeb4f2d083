package helpers

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

func StringToInt(s string) (int, error) {
	return strconv.Atoi(s)
}

func randomHex(n int) string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:n])
}

// NewOrderID returns the customer-facing order reference, e.g. ORDER-1A2B3C4D.
func NewOrderID() string {
	return "ORDER-" + randomHex(8)
}

// NewTicketCode returns an unguessable admission code, e.g. TKT-9F86D081884C.
// uuid v4 draws from crypto/rand.
func NewTicketCode() string {
	return "TKT-" + randomHex(12)
}

// NormalizeTicketCode accepts codes typed by staff or read from a QR scan.
func NormalizeTicketCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
