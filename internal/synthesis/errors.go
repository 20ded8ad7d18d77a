package synthesis

import "errors"

var (
	ErrNotInitialized   = errors.New("model not initialized")
	ErrMissingReference = errors.New("must provide reference_audio or reference_audio_url")
)

// FetchError reports a reference URL that could not be downloaded.
// It is the caller's fault, not the service's.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return "Error downloading audio: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }
