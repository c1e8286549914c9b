package domain

import "time"

// Client es un contacto del tenant identificado por su teléfono de WhatsApp.
type Client struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlaceholderName is used when the provider sends no push name.
func PlaceholderName(phone string) string {
	return "Cliente " + phone
}
