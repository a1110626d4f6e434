package dicom

import "fmt"

// ErrorKind classifies a collaborator failure so the caller can render
// the right message without inspecting the component that raised it.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrFileNotFound
	ErrCannotOpen
	ErrUnrecognizedFormat
	ErrTruncated
	ErrMalformed
	ErrNoOutputName
	ErrOutOfDiskSpace
)

// Error is the tagged result every collaborator returns on failure:
// a kind, the offending filename, and the underlying cause.
type Error struct {
	Kind ErrorKind
	File string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrFileNotFound:
		return fmt.Sprintf("File not found: %s", e.File)
	case ErrCannotOpen:
		return fmt.Sprintf("Cannot open file: %s", e.File)
	case ErrUnrecognizedFormat:
		return fmt.Sprintf("Unrecognized file type: %s", e.File)
	case ErrTruncated:
		return fmt.Sprintf("File is truncated: %s", e.File)
	case ErrMalformed:
		return fmt.Sprintf("Bad DICOM file: %s", e.File)
	case ErrNoOutputName:
		return fmt.Sprintf("Output filename could not be used: %s", e.File)
	case ErrOutOfDiskSpace:
		return fmt.Sprintf("Out of disk space while writing file: %s", e.File)
	}
	return fmt.Sprintf("An unknown error occurred: %s", e.File)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a tagged error for the given file.
func NewError(kind ErrorKind, file string, err error) *Error {
	return &Error{Kind: kind, File: file, Err: err}
}
