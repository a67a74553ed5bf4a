package publish

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is against the error returned by Publish.
var (
	ErrMissingAsset        = errors.New("video file required")
	ErrThumbnailDerivation = errors.New("thumbnail derivation failed")
	ErrRemoteUpload        = errors.New("remote upload failed")
	ErrPersistence         = errors.New("persistence failed")
)

// Error is a failed stage of the pipeline. Both Kind and the original Err
// are reachable through errors.Is and errors.As.
type Error struct {
	Kind     error
	UploadID string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func stageError(kind error, uploadID string, err error) *Error {
	return &Error{Kind: kind, UploadID: uploadID, Err: err}
}
