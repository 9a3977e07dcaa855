package codec

import "fmt"

// Reason classifies why the encoder rejected an image.
type Reason string

const (
	ReasonUnsupportedFormat Reason = "unsupported_format"
	ReasonCorruptInput      Reason = "corrupt_input"
	ReasonDimensionTooLarge Reason = "dimension_too_large"
	ReasonOutOfMemory       Reason = "out_of_memory"
	ReasonInternal          Reason = "internal"
)

// Failure is the typed error returned by the invoker. Callers branch on
// Reason; Err keeps the underlying cause for logs.
type Failure struct {
	Reason Reason
	Msg    string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("codec: %s: %s: %v", f.Reason, f.Msg, f.Err)
	}
	return fmt.Sprintf("codec: %s: %s", f.Reason, f.Msg)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(reason Reason, msg string, err error) *Failure {
	return &Failure{Reason: reason, Msg: msg, Err: err}
}
