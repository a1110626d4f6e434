// Package dicomtest writes small synthetic DICOM slices for tests.
package dicomtest

import (
	"fmt"
	"os"
	"testing"

	dcm "github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Slice describes one synthetic image. Zero-valued fields fall back to
// the defaults applied by Write.
type Slice struct {
	PatientName       string
	PatientID         string
	StudyDescription  string
	StudyID           string
	SeriesDescription string
	StudyUID          string
	SeriesUID         string
	SeriesNumber      int
	Instance          int
	Rows              int
	Cols              int
	Position          [3]float64
	Orientation       [6]float64
	PixelSpacing      [2]float64 // row spacing, column spacing
	SliceSpacing      float64
	Pixel             int // constant sample value for every voxel
}

func (s *Slice) applyDefaults() {
	if s.StudyUID == "" {
		s.StudyUID = "1.2.840.99999.1"
	}
	if s.SeriesUID == "" {
		s.SeriesUID = s.StudyUID + ".1"
	}
	if s.SeriesNumber == 0 {
		s.SeriesNumber = 1
	}
	if s.Instance == 0 {
		s.Instance = 1
	}
	if s.Rows == 0 {
		s.Rows = 2
	}
	if s.Cols == 0 {
		s.Cols = 2
	}
	if s.Orientation == ([6]float64{}) {
		s.Orientation = [6]float64{1, 0, 0, 0, 1, 0}
	}
	if s.PixelSpacing == ([2]float64{}) {
		s.PixelSpacing = [2]float64{1, 1}
	}
}

// Write stores the slice at path as an explicit-VR little-endian file.
func Write(t testing.TB, path string, s Slice) {
	t.Helper()
	s.applyDefaults()

	sopUID := fmt.Sprintf("%s.%d", s.SeriesUID, s.Instance)
	pixels := make([][]int, s.Rows*s.Cols)
	for i := range pixels {
		pixels[i] = []int{s.Pixel}
	}
	pixelData := dcm.PixelDataInfo{
		Frames: []*frame.Frame{{
			Encapsulated: false,
			NativeData: frame.NativeFrame{
				BitsPerSample: 16,
				Rows:          s.Rows,
				Cols:          s.Cols,
				Data:          pixels,
			},
		}},
	}

	elements := []*dcm.Element{
		element(t, tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.4"}),
		element(t, tag.MediaStorageSOPInstanceUID, []string{sopUID}),
		element(t, tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
		element(t, tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.4"}),
		element(t, tag.SOPInstanceUID, []string{sopUID}),
	}
	if s.StudyDescription != "" {
		elements = append(elements, element(t, tag.StudyDescription, []string{s.StudyDescription}))
	}
	if s.SeriesDescription != "" {
		elements = append(elements, element(t, tag.SeriesDescription, []string{s.SeriesDescription}))
	}
	if s.PatientName != "" {
		elements = append(elements, element(t, tag.PatientName, []string{s.PatientName}))
	}
	if s.PatientID != "" {
		elements = append(elements, element(t, tag.PatientID, []string{s.PatientID}))
	}
	if s.SliceSpacing != 0 {
		elements = append(elements, element(t, tag.SpacingBetweenSlices, []string{decimal(s.SliceSpacing)}))
	}
	elements = append(elements,
		element(t, tag.StudyInstanceUID, []string{s.StudyUID}),
		element(t, tag.SeriesInstanceUID, []string{s.SeriesUID}),
	)
	if s.StudyID != "" {
		elements = append(elements, element(t, tag.StudyID, []string{s.StudyID}))
	}
	elements = append(elements,
		element(t, tag.SeriesNumber, []string{fmt.Sprintf("%d", s.SeriesNumber)}),
		element(t, tag.InstanceNumber, []string{fmt.Sprintf("%d", s.Instance)}),
		element(t, tag.ImagePositionPatient, []string{
			decimal(s.Position[0]), decimal(s.Position[1]), decimal(s.Position[2]),
		}),
		element(t, tag.ImageOrientationPatient, []string{
			decimal(s.Orientation[0]), decimal(s.Orientation[1]), decimal(s.Orientation[2]),
			decimal(s.Orientation[3]), decimal(s.Orientation[4]), decimal(s.Orientation[5]),
		}),
		element(t, tag.SamplesPerPixel, []int{1}),
		element(t, tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		element(t, tag.Rows, []int{s.Rows}),
		element(t, tag.Columns, []int{s.Cols}),
		element(t, tag.PixelSpacing, []string{
			decimal(s.PixelSpacing[0]), decimal(s.PixelSpacing[1]),
		}),
		element(t, tag.BitsAllocated, []int{16}),
		element(t, tag.BitsStored, []int{16}),
		element(t, tag.HighBit, []int{15}),
		element(t, tag.PixelRepresentation, []int{0}),
		element(t, tag.PixelData, pixelData),
	)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := dcm.Write(f, dcm.Dataset{Elements: elements}); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteSeries writes n axial slices spaced spacing apart and returns
// the paths in acquisition order.
func WriteSeries(t testing.TB, dir string, base Slice, n int, spacing float64) []string {
	t.Helper()
	base.applyDefaults()
	paths := make([]string, n)
	for i := 0; i < n; i++ {
		s := base
		s.Instance = i + 1
		s.Position[2] = base.Position[2] + float64(i)*spacing
		s.Pixel = base.Pixel + i
		paths[i] = fmt.Sprintf("%s/IMG%04d.dcm", dir, i+1)
		Write(t, paths[i], s)
	}
	return paths
}

func element(t testing.TB, tg tag.Tag, value interface{}) *dcm.Element {
	t.Helper()
	el, err := dcm.NewElement(tg, value)
	if err != nil {
		t.Fatalf("element %v: %v", tg, err)
	}
	return el
}

func decimal(v float64) string {
	return fmt.Sprintf("%g", v)
}
