package models

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedURL          = errors.New("malformed URL")
	ErrUnsupportedPlatform   = errors.New("unsupported platform")
	ErrUnsupportedLinkShape  = errors.New("unsupported link shape")
	ErrNoExtractorRegistered = errors.New("no extractor registered")
	ErrPageUnavailable       = errors.New("page unavailable")
	ErrFieldMissing          = errors.New("field missing")
	ErrEmptyExtraction       = errors.New("empty extraction")
)

// Error kind labels surfaced to callers
const (
	KindMalformedURL          = "MalformedURL"
	KindUnsupportedPlatform   = "UnsupportedPlatform"
	KindUnsupportedLinkShape  = "UnsupportedLinkShape"
	KindNoExtractorRegistered = "NoExtractorRegistered"
	KindPageUnavailable       = "PageUnavailable"
	KindFieldMissing          = "FieldMissing"
	KindEmptyExtraction       = "EmptyExtraction"
	KindInternal              = "Internal"
)

// FieldMissingError reports a single schema field absent from a page
type FieldMissingError struct {
	Field string
}

func (e *FieldMissingError) Error() string {
	return fmt.Sprintf("field missing: %s", e.Field)
}

// Unwrap lets errors.Is match ErrFieldMissing
func (e *FieldMissingError) Unwrap() error {
	return ErrFieldMissing
}

// SchemaMismatchError is returned when a record does not fit a table
type SchemaMismatchError struct {
	Want   int
	Got    int
	Column string
}

func (e *SchemaMismatchError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("record schema mismatch: missing column %q", e.Column)
	}
	return fmt.Sprintf("record schema mismatch: want %d columns, got %d", e.Want, e.Got)
}

// ErrorKind maps an error to its taxonomy label
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedURL):
		return KindMalformedURL
	case errors.Is(err, ErrUnsupportedPlatform):
		return KindUnsupportedPlatform
	case errors.Is(err, ErrUnsupportedLinkShape):
		return KindUnsupportedLinkShape
	case errors.Is(err, ErrNoExtractorRegistered):
		return KindNoExtractorRegistered
	case errors.Is(err, ErrPageUnavailable):
		return KindPageUnavailable
	case errors.Is(err, ErrEmptyExtraction):
		return KindEmptyExtraction
	case errors.Is(err, ErrFieldMissing):
		return KindFieldMissing
	default:
		return KindInternal
	}
}
