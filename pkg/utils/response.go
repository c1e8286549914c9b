package utils

// ResponseData is the envelope every /api handler answers with.
type ResponseData struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded hands err over to the Recovery middleware.
func PanicIfNeeded(err any) {
	if err != nil {
		panic(err)
	}
}
