// Package nifti writes NIfTI-1 volume files. Only the fields this
// tool produces are modeled: int16 voxels, mm spacing, and the
// qform/sform orientation records.
package nifti

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// headerSize is the fixed NIfTI-1 header length.
	headerSize = 348

	// voxOffset is where voxel data starts in a single-file NIfTI:
	// the header plus the four-byte empty extension indicator.
	voxOffset = 352

	typeInt16 = 4

	unitsMM = 2

	xformScannerAnat = 1
)

// header is the on-disk NIfTI-1 layout, little endian.
type header struct {
	SizeofHdr    int32
	DataTypeName [10]byte
	DBName       [18]byte
	Extents      int32
	SessionError int16
	Regular      byte
	DimInfo      byte
	Dim          [8]int16
	IntentP1     float32
	IntentP2     float32
	IntentP3     float32
	IntentCode   int16
	Datatype     int16
	Bitpix       int16
	SliceStart   int16
	Pixdim       [8]float32
	VoxOffset    float32
	SclSlope     float32
	SclInter     float32
	SliceEnd     int16
	SliceCode    byte
	XYZTUnits    byte
	CalMax       float32
	CalMin       float32
	SliceDur     float32
	TOffset      float32
	GLMax        int32
	GLMin        int32
	Descrip      [80]byte
	AuxFile      [24]byte
	QformCode    int16
	SformCode    int16
	QuaternB     float32
	QuaternC     float32
	QuaternD     float32
	QoffsetX     float32
	QoffsetY     float32
	QoffsetZ     float32
	SrowX        [4]float32
	SrowY        [4]float32
	SrowZ        [4]float32
	IntentName   [16]byte
	Magic        [4]byte
}

// quaternion holds the qform representation of a rotation.
type quaternion struct {
	b, c, d float64
	qfac    float64
}

// matrixToQuaternion decomposes the rotation part of a voxel-to-space
// transform. Columns are normalized first, so spacing does not leak
// into the rotation; a negative determinant is encoded as qfac = -1
// with the third column negated, per the NIfTI qform convention.
func matrixToQuaternion(m *mat.Dense) quaternion {
	var r [3][3]float64
	for j := 0; j < 3; j++ {
		norm := math.Hypot(m.At(0, j), math.Hypot(m.At(1, j), m.At(2, j)))
		if norm == 0 {
			norm = 1
		}
		for i := 0; i < 3; i++ {
			r[i][j] = m.At(i, j) / norm
		}
	}

	q := quaternion{qfac: 1}
	det := r[0][0]*(r[1][1]*r[2][2]-r[1][2]*r[2][1]) -
		r[0][1]*(r[1][0]*r[2][2]-r[1][2]*r[2][0]) +
		r[0][2]*(r[1][0]*r[2][1]-r[1][1]*r[2][0])
	if det < 0 {
		q.qfac = -1
		r[0][2], r[1][2], r[2][2] = -r[0][2], -r[1][2], -r[2][2]
	}

	// Standard rotation-to-quaternion extraction (nifti1 reference
	// scheme): branch on the largest diagonal contribution to keep
	// the division well conditioned.
	a := r[0][0] + r[1][1] + r[2][2] + 1
	if a > 0.5 {
		a = 0.5 * math.Sqrt(a)
		q.b = 0.25 * (r[2][1] - r[1][2]) / a
		q.c = 0.25 * (r[0][2] - r[2][0]) / a
		q.d = 0.25 * (r[1][0] - r[0][1]) / a
		return q
	}

	xd := 1 + r[0][0] - r[1][1] - r[2][2]
	yd := 1 - r[0][0] + r[1][1] - r[2][2]
	zd := 1 - r[0][0] - r[1][1] + r[2][2]
	switch {
	case xd > 1:
		b := 0.5 * math.Sqrt(xd)
		q.b = b
		q.c = 0.25 * (r[0][1] + r[1][0]) / b
		q.d = 0.25 * (r[0][2] + r[2][0]) / b
		a = 0.25 * (r[2][1] - r[1][2]) / b
	case yd > 1:
		c := 0.5 * math.Sqrt(yd)
		q.b = 0.25 * (r[0][1] + r[1][0]) / c
		q.c = c
		q.d = 0.25 * (r[1][2] + r[2][1]) / c
		a = 0.25 * (r[0][2] - r[2][0]) / c
	default:
		d := 0.5 * math.Sqrt(zd)
		q.b = 0.25 * (r[0][2] + r[2][0]) / d
		q.c = 0.25 * (r[1][2] + r[2][1]) / d
		q.d = d
		a = 0.25 * (r[1][0] - r[0][1]) / d
	}
	if a < 0 {
		q.b, q.c, q.d = -q.b, -q.c, -q.d
	}
	return q
}
