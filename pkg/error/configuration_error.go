package error

import "net/http"

// ConfigurationError reports missing or invalid required configuration.
// It is raised at construction time and is never retried.
type ConfigurationError string

func (err ConfigurationError) Error() string {
	return "configuration error: " + string(err)
}

func (err ConfigurationError) ErrCode() string {
	return "CONFIGURATION_ERROR"
}

func (err ConfigurationError) StatusCode() int {
	return http.StatusInternalServerError
}
