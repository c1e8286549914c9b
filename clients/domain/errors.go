package domain

import "errors"

var (
	// ErrClientNotFound se retorna cuando no se encuentra un cliente
	ErrClientNotFound = errors.New("client not found")

	// ErrDuplicateClient se retorna cuando ya existe un cliente para el mismo tenant y teléfono
	ErrDuplicateClient = errors.New("client with this tenant and phone already exists")
)
