package rest

import validation "github.com/go-ozzo/ozzo-validation/v4"

// RenameClientRequest representa la petición para renombrar un cliente
type RenameClientRequest struct {
	Name string `json:"name"`
}

func (r RenameClientRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 120)),
	)
}
