// Package dicom wraps the DICOM collaborators consumed by the
// conversion pipeline: a single-file metadata parser, the study/series
// sorter, and the volume reader. All of them report failures through
// the tagged Error type.
package dicom

import (
	"errors"
	"io"
	"io/fs"
	"strconv"

	dcm "github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomtonifti/internal/models"
)

// ParseMetadata reads the descriptive naming fields from one file.
// Pixel data is skipped, so this stays cheap even for large slices.
func ParseMetadata(path string) (models.MetadataRecord, *Error) {
	ds, err := dcm.ParseFile(path, nil, dcm.SkipPixelData())
	if err != nil {
		return models.MetadataRecord{}, classify(err, path)
	}
	return models.MetadataRecord{
		PatientID:         stringValue(&ds, tag.PatientID),
		PatientName:       stringValue(&ds, tag.PatientName),
		StudyDescription:  stringValue(&ds, tag.StudyDescription),
		StudyID:           stringValue(&ds, tag.StudyID),
		SeriesDescription: stringValue(&ds, tag.SeriesDescription),
		SeriesNumber:      stringValue(&ds, tag.SeriesNumber),
	}, nil
}

// classify maps a parse or I/O failure onto the error taxonomy.
func classify(err error, path string) *Error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NewError(ErrFileNotFound, path, err)
	case errors.Is(err, fs.ErrPermission):
		return NewError(ErrCannotOpen, path, err)
	case errors.Is(err, dcm.ErrorMagicWord):
		return NewError(ErrUnrecognizedFormat, path, err)
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return NewError(ErrTruncated, path, err)
	}
	return NewError(ErrMalformed, path, err)
}

// stringValue returns the first string of a tag, or "" when absent.
func stringValue(ds *dcm.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return ""
	}
	vals := dcm.MustGetStrings(el.Value)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// intValue returns the first value of an integer-string tag, or def.
func intValue(ds *dcm.Dataset, t tag.Tag, def int) int {
	s := stringValue(ds, t)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// floatValues parses n decimal strings from a tag, or returns nil.
func floatValues(ds *dcm.Dataset, t tag.Tag, n int) []float64 {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return nil
	}
	vals := dcm.MustGetStrings(el.Value)
	if len(vals) < n {
		return nil
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(vals[i], 64)
		if err != nil {
			return nil
		}
		out[i] = f
	}
	return out
}

// ushortValue returns the first value of a US tag, or def.
func ushortValue(ds *dcm.Dataset, t tag.Tag, def int) int {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return def
	}
	vals := dcm.MustGetInts(el.Value)
	if len(vals) == 0 {
		return def
	}
	return vals[0]
}
