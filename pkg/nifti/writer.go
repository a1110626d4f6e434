package nifti

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"dicomtonifti/internal/models"
	"dicomtonifti/pkg/dicom"
)

// Writer encodes one volume as a NIfTI-1 file.
type Writer struct {
	// Path is the destination; a ".gz" suffix adds a gzip layer.
	Path string

	// QForm and SForm are the voxel-to-RAS transforms to store; a nil
	// matrix omits the corresponding record.
	QForm *mat.Dense
	SForm *mat.Dense

	// FlipSliceOrder stores slices in their original acquisition
	// order rather than the RAS stacking order: the payload's k axis
	// is reversed and both transforms are compensated, so spatial
	// coordinates are unchanged.
	FlipSliceOrder bool
}

// Write encodes the volume. The file is written to a uniquely named
// temp file beside the destination and renamed into place, so a failed
// run never leaves a truncated output under the final name.
func (w *Writer) Write(vol *models.Volume) *dicom.Error {
	if w.Path == "" {
		return dicom.NewError(dicom.ErrNoOutputName, w.Path, nil)
	}

	qform, sform := w.QForm, w.SForm
	if w.FlipSliceOrder {
		vol.FlipSlices()
		flip := kFlip(vol.Slices)
		if qform != nil {
			qform = multiplied(qform, flip)
		}
		if sform != nil {
			sform = multiplied(sform, flip)
		}
	}

	tmp := filepath.Join(filepath.Dir(w.Path),
		"."+filepath.Base(w.Path)+"."+uuid.NewString()+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return dicom.NewError(dicom.ErrCannotOpen, w.Path, err)
	}

	werr := w.encode(f, vol, qform, sform)
	if cerr := f.Close(); werr == nil && cerr != nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmp)
		return writeError(werr, w.Path)
	}
	if err := os.Rename(tmp, w.Path); err != nil {
		os.Remove(tmp)
		return dicom.NewError(dicom.ErrNoOutputName, w.Path, err)
	}
	return nil
}

func (w *Writer) encode(f io.Writer, vol *models.Volume, qform, sform *mat.Dense) error {
	bw := bufio.NewWriter(f)
	var out io.Writer = bw
	var gz *gzip.Writer
	if strings.HasSuffix(strings.ToLower(w.Path), ".gz") {
		gz = gzip.NewWriter(bw)
		out = gz
	}

	hdr := buildHeader(vol, qform, sform)
	if err := binary.Write(out, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	// Empty extension indicator pads the header to the voxel offset.
	if err := binary.Write(out, binary.LittleEndian, [4]byte{}); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, vol.Data); err != nil {
		return err
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func buildHeader(vol *models.Volume, qform, sform *mat.Dense) header {
	hdr := header{
		SizeofHdr: headerSize,
		Regular:   'r',
		Datatype:  typeInt16,
		Bitpix:    16,
		VoxOffset: voxOffset,
		SclSlope:  1,
		XYZTUnits: unitsMM,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	hdr.Dim[0] = 3
	hdr.Dim[1] = int16(vol.Cols)
	hdr.Dim[2] = int16(vol.Rows)
	hdr.Dim[3] = int16(vol.Slices)
	for i := 4; i < 8; i++ {
		hdr.Dim[i] = 1
	}
	hdr.Pixdim[0] = 1
	hdr.Pixdim[1] = float32(vol.Spacing[0])
	hdr.Pixdim[2] = float32(vol.Spacing[1])
	hdr.Pixdim[3] = float32(vol.Spacing[2])
	for i := 4; i < 8; i++ {
		hdr.Pixdim[i] = 1
	}
	copy(hdr.Descrip[:], "dicomtonifti")

	if qform != nil {
		q := matrixToQuaternion(qform)
		hdr.QformCode = xformScannerAnat
		hdr.QuaternB = float32(q.b)
		hdr.QuaternC = float32(q.c)
		hdr.QuaternD = float32(q.d)
		hdr.QoffsetX = float32(qform.At(0, 3))
		hdr.QoffsetY = float32(qform.At(1, 3))
		hdr.QoffsetZ = float32(qform.At(2, 3))
		hdr.Pixdim[0] = float32(q.qfac)
	}
	if sform != nil {
		hdr.SformCode = xformScannerAnat
		for j := 0; j < 4; j++ {
			hdr.SrowX[j] = float32(sform.At(0, j))
			hdr.SrowY[j] = float32(sform.At(1, j))
			hdr.SrowZ[j] = float32(sform.At(2, j))
		}
	}
	return hdr
}

// writeError distinguishes a full disk from other write failures.
func writeError(err error, path string) *dicom.Error {
	if errors.Is(err, syscall.ENOSPC) {
		return dicom.NewError(dicom.ErrOutOfDiskSpace, path, err)
	}
	return dicom.NewError(dicom.ErrCannotOpen, path, err)
}

// kFlip maps slice index k to (n-1)-k.
func kFlip(n int) *mat.Dense {
	f := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, -1, float64(n - 1),
		0, 0, 0, 1,
	})
	return f
}

func multiplied(m, by *mat.Dense) *mat.Dense {
	var prod mat.Dense
	prod.Mul(m, by)
	return &prod
}
