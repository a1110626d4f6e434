package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"dicomtonifti/internal/models"
)

func testVolume() *models.Volume {
	v := &models.Volume{
		Data:    make([]int16, 4*3*2),
		Cols:    4,
		Rows:    3,
		Slices:  2,
		Spacing: [3]float64{0.5, 0.75, 2},
	}
	for i := range v.Data {
		v.Data[i] = int16(i)
	}
	return v
}

func identity() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 10,
		0, 1, 0, 20,
		0, 0, 1, 30,
		0, 0, 0, 1,
	})
}

func readHeader(t *testing.T, path string) (header, []int16) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			t.Fatal(err)
		}
		defer gz.Close()
		r = gz
	}

	var hdr header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		t.Fatal(err)
	}
	var pad [4]byte
	if err := binary.Read(r, binary.LittleEndian, &pad); err != nil {
		t.Fatal(err)
	}
	data := make([]int16, hdr.Dim[1]*hdr.Dim[2]*hdr.Dim[3])
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		t.Fatal(err)
	}
	return hdr, data
}

func TestWriteHeaderAndPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.nii")
	vol := testVolume()

	w := &Writer{Path: path, QForm: identity(), SForm: identity()}
	if err := w.Write(vol); err != nil {
		t.Fatalf("Write: %v", err)
	}

	hdr, data := readHeader(t, path)
	if hdr.SizeofHdr != headerSize {
		t.Errorf("sizeof_hdr = %d", hdr.SizeofHdr)
	}
	if hdr.Magic != [4]byte{'n', '+', '1', 0} {
		t.Errorf("magic = %q", hdr.Magic)
	}
	if hdr.Datatype != typeInt16 || hdr.Bitpix != 16 {
		t.Errorf("datatype/bitpix = %d/%d", hdr.Datatype, hdr.Bitpix)
	}
	if hdr.Dim != [8]int16{3, 4, 3, 2, 1, 1, 1, 1} {
		t.Errorf("dim = %v", hdr.Dim)
	}
	if hdr.Pixdim[1] != 0.5 || hdr.Pixdim[2] != 0.75 || hdr.Pixdim[3] != 2 {
		t.Errorf("pixdim = %v", hdr.Pixdim)
	}
	if hdr.QformCode != xformScannerAnat || hdr.SformCode != xformScannerAnat {
		t.Errorf("form codes = %d/%d", hdr.QformCode, hdr.SformCode)
	}
	if hdr.QoffsetX != 10 || hdr.QoffsetY != 20 || hdr.QoffsetZ != 30 {
		t.Errorf("qoffset = %v %v %v", hdr.QoffsetX, hdr.QoffsetY, hdr.QoffsetZ)
	}
	if hdr.SrowX != [4]float32{1, 0, 0, 10} {
		t.Errorf("srow_x = %v", hdr.SrowX)
	}
	for i, v := range data {
		if v != int16(i) {
			t.Fatalf("payload[%d] = %d", i, v)
		}
	}
}

func TestWriteOmitsSuppressedForms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.nii")
	w := &Writer{Path: path}
	if err := w.Write(testVolume()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	hdr, _ := readHeader(t, path)
	if hdr.QformCode != 0 || hdr.SformCode != 0 {
		t.Errorf("suppressed forms still coded: %d/%d", hdr.QformCode, hdr.SformCode)
	}
}

func TestWriteGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.nii.gz")
	w := &Writer{Path: path, QForm: identity()}
	if err := w.Write(testVolume()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(raw, []byte{0x1f, 0x8b}) {
		t.Error("missing gzip magic")
	}
	hdr, _ := readHeader(t, path)
	if hdr.SizeofHdr != headerSize {
		t.Errorf("compressed header corrupt: sizeof_hdr = %d", hdr.SizeofHdr)
	}
}

func TestWriteFlipSliceOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.nii")
	vol := testVolume()
	firstSlice := append([]int16(nil), vol.Data[:12]...)

	w := &Writer{Path: path, QForm: identity(), FlipSliceOrder: true}
	if err := w.Write(vol); err != nil {
		t.Fatalf("Write: %v", err)
	}

	hdr, data := readHeader(t, path)
	// The payload's k axis is reversed, and the compensated transform
	// flips its slice column, which qform encodes as qfac = -1.
	for i, v := range firstSlice {
		if data[12+i] != v {
			t.Fatalf("slice order not flipped at %d", i)
		}
	}
	if hdr.Pixdim[0] != -1 {
		t.Errorf("qfac = %v, want -1", hdr.Pixdim[0])
	}
	// Offset moves to the former last slice: z + (n-1)*spacingZ.
	if hdr.QoffsetZ != 31 {
		t.Errorf("qoffset_z = %v, want 31", hdr.QoffsetZ)
	}
}

func TestWriteAtomicNoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.nii")
	w := &Writer{Path: path}
	if err := w.Write(testVolume()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.nii" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}

func TestWriteEmptyPath(t *testing.T) {
	w := &Writer{}
	if err := w.Write(testVolume()); err == nil {
		t.Error("expected error for empty output path")
	}
}

func TestMatrixToQuaternionIdentity(t *testing.T) {
	q := matrixToQuaternion(identity())
	if q.qfac != 1 {
		t.Errorf("qfac = %v", q.qfac)
	}
	if math.Abs(q.b) > 1e-9 || math.Abs(q.c) > 1e-9 || math.Abs(q.d) > 1e-9 {
		t.Errorf("identity quaternion = %v %v %v", q.b, q.c, q.d)
	}
}

func TestMatrixToQuaternionLeftHanded(t *testing.T) {
	m := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, -1, 0,
		0, 0, 0, 1,
	})
	q := matrixToQuaternion(m)
	if q.qfac != -1 {
		t.Errorf("qfac = %v, want -1", q.qfac)
	}
}

func TestMatrixToQuaternionRotation(t *testing.T) {
	// 90 degrees about z: quaternion (b,c,d) = (0,0,sin 45).
	m := mat.NewDense(4, 4, []float64{
		0, -1, 0, 0,
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	q := matrixToQuaternion(m)
	want := math.Sin(math.Pi / 4)
	if math.Abs(q.d-want) > 1e-9 || math.Abs(q.b) > 1e-9 || math.Abs(q.c) > 1e-9 {
		t.Errorf("quaternion = %v %v %v, want d=%v", q.b, q.c, q.d, want)
	}
}
