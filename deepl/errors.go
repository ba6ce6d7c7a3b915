package deepl

import "fmt"

// APIError is a non-2xx response from the translate endpoint.
type APIError struct {
	// Status is the HTTP status code.
	Status int
	// Body is the (truncated) response body, usually a JSON error message.
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("deepl: API returned status %d: %s", e.Status, e.Body)
}

// TranslationError ties a failed translation call to the batch it was
// translating, so the caller can report exactly which part of the run
// failed. Constructed by the pipeline, not by the client.
type TranslationError struct {
	// Batch is the zero-based index of the failing batch.
	Batch int
	// Err is the underlying cause (an *APIError or a transport error).
	Err error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translating batch %d: %v", e.Batch, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }
