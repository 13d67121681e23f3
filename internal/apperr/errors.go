// Package apperr defines the typed error taxonomy for the export pipeline.
package apperr

import "fmt"

// ConfigError reports missing or invalid route/service configuration.
// It is fatal and raised before any network call.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Msg
}

// ValidationError reports a required output field that is missing or empty
// after payload mapping. It is fatal and raised before submission.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: required field %q is missing or empty", e.Field)
}

// UploadError reports a single asset that failed to upload or be found.
// Upload failures are isolated per path: they are recorded on the export
// result, never fatal for the export as a whole.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ServiceError reports a non-2xx response from the content service.
type ServiceError struct {
	Status  int
	Message string
	Body    string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("content service: HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("content service: HTTP %d", e.Status)
}

// NetworkError reports a transport-level failure talking to the content
// service or fetching a remote asset.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
