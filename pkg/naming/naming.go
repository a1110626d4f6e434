// Package naming derives safe output paths from DICOM metadata fields.
package naming

import (
	"path/filepath"

	"dicomtonifti/internal/models"
)

// Unknown is the token substituted for fields that sanitize to nothing.
const Unknown = "UNKNOWN"

// SafeString reduces arbitrary metadata text to a path-safe token.
// Every character outside [A-Za-z0-9] becomes an underscore, and the
// result is cut one past the last alphanumeric so it never ends in a
// synthesized underscore. An empty result yields Unknown.
func SafeString(s string) string {
	out := make([]byte, 0, len(s))
	keep := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			keep = i + 1
		} else {
			c = '_'
		}
		out = append(out, c)
	}
	out = out[:keep]
	if len(out) == 0 {
		return Unknown
	}
	return string(out)
}

// OutputPath builds the batch-mode destination for one series:
// {outDir}/{subject}/{studyDesc}-{studyID}/{seriesDesc}_{seriesNo}.nii
// The patient name, when it sanitizes to something other than Unknown,
// takes precedence over the patient ID for the subject segment. The
// file system is never touched here.
func OutputPath(outDir string, meta models.MetadataRecord) string {
	subject := SafeString(meta.PatientID)
	if name := SafeString(meta.PatientName); name != Unknown {
		subject = name
	}
	study := SafeString(meta.StudyDescription) + "-" + SafeString(meta.StudyID)
	series := SafeString(meta.SeriesDescription) + "_" + SafeString(meta.SeriesNumber) + ".nii"
	return filepath.Join(outDir, subject, study, series)
}
