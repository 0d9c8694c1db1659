// Package chat builds the WhatsApp hand-off that closes an online order: the
// customer is sent to the shop's number with the order pre-typed.
package chat

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/money"
)

type Handoff struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// CleanPhone keeps only the digits of a phone number.
func CleanPhone(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, raw)
}

// ValidPhone accepts 10 to 15 digits, country code included.
func ValidPhone(digits string) bool {
	return len(digits) >= 10 && len(digits) <= 15 && CleanPhone(digits) == digits
}

// OrderHandoff renders the order message and the wa.me link that carries it.
func OrderHandoff(shopNumber string, sale domain.Sale, customerPhone string) Handoff {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá, sou %s e gostaria de confirmar meu pedido:\n\n", sale.CustomerName)
	for i, item := range sale.Items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%dx %s - %s", item.Qty, item.Name, money.Format(item.SubtotalCents()))
	}
	fmt.Fprintf(&b, "\n\nTotal: %s\n", money.Format(sale.TotalCents))
	fmt.Fprintf(&b, "Pagamento: %s\n", sale.PaymentMethod)
	fmt.Fprintf(&b, "Telefone: %s", customerPhone)

	message := b.String()
	return Handoff{
		Message: message,
		URL:     ContactURL(shopNumber) + "?text=" + escape(message),
	}
}

func ContactURL(shopNumber string) string {
	return "https://wa.me/" + CleanPhone(shopNumber)
}

// escape matches encodeURIComponent closely enough for wa.me: spaces become
// %20 rather than +.
func escape(text string) string {
	return strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
