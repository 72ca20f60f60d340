package sale

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateSaleNumber returns a human-readable sale number in the form
// SALE-XXXXXXXX, where X is an uppercase hex character. Uniqueness is
// best-effort here; the storage layer's unique index is the backstop.
func GenerateSaleNumber() string {
	return "SALE-" + strings.ToUpper(uuid.New().String()[:8])
}
