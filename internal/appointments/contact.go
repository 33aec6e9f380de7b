package appointments

import (
	"net/url"
	"strings"
)

const (
	DefaultClinicPhone      = "+525512345678"
	DefaultWhatsAppNumber   = "525512345678"
	DefaultWhatsAppGreeting = "Hola, me gustaría agendar una cita médica."
)

// Contact holds the clinic's call and WhatsApp links.
type Contact struct {
	Phone       string `json:"phone"`
	TelURI      string `json:"tel_uri"`
	WhatsAppURL string `json:"whatsapp_url"`
}

// NewContact builds the links. Empty arguments fall back to the defaults.
func NewContact(phone, whatsappNumber, greeting string) Contact {
	if strings.TrimSpace(phone) == "" {
		phone = DefaultClinicPhone
	}
	if strings.TrimSpace(whatsappNumber) == "" {
		whatsappNumber = DefaultWhatsAppNumber
	}
	if strings.TrimSpace(greeting) == "" {
		greeting = DefaultWhatsAppGreeting
	}
	dial := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	number := strings.TrimPrefix(strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(whatsappNumber), "+")

	return Contact{
		Phone:       phone,
		TelURI:      "tel:" + dial,
		WhatsAppURL: "https://wa.me/" + number + "?text=" + encodeURIComponent(greeting),
	}
}

// uriComponent undoes QueryEscape where it differs from the browser's
// encodeURIComponent: spaces and the marks ! ' ( ) *.
var uriComponent = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func encodeURIComponent(s string) string {
	return uriComponent.Replace(url.QueryEscape(s))
}
