package model

import (
	"regexp"
	"strings"
	"time"
)

// Column limits mirrored from the items and users migrations.
const (
	MaxUsernameLength = 100
	MaxItemNameLength = 100
)

// priceRegex accepts a plain decimal with at most two fractional digits.
var priceRegex = regexp.MustCompile(`^\d{1,8}(\.\d{1,2})?$`)

// Item is a priced record owned by the user who created it.
type Item struct {
	ID          int64     `json:"id"`
	UserID      *int64    `json:"user_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"` // NUMERIC(10,2) in text form, e.g. "10.50"
	CreatedAt   time.Time `json:"created_at"`
}

// IsOwnedBy reports whether the item belongs to the given user.
func (i *Item) IsOwnedBy(userID int64) bool {
	return i.UserID != nil && *i.UserID == userID
}

// NormalizePrice trims the raw form value and converts a comma decimal
// separator to a period, so "10,50" becomes "10.50".
func NormalizePrice(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
}

// IsValidPrice reports whether a normalized price fits NUMERIC(10,2).
func IsValidPrice(price string) bool {
	return priceRegex.MatchString(price)
}
