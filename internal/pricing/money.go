package pricing

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money represents a monetary value in whole won. KRW has no minor unit.
type Money = int64

var krw = message.NewPrinter(language.Korean)

// FormatKRW renders an amount the way the storefront displays it, e.g. 50,000원.
func FormatKRW(amount Money) string {
	return krw.Sprintf("%d원", amount)
}
