// Package geometry holds the affine-matrix reasoning of the pipeline:
// conversion of the DICOM patient transform to the NIfTI RAS
// convention, and detection of slice-order reversal across the two
// conventions.
package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"dicomtonifti/internal/models"
)

// ToRAS converts a patient transform to the RAS convention, reordering
// the volume in place where the configuration allows it. DICOM +x is
// patient left and +y is posterior, so the first two rows change sign;
// when an axis then points along -x (columns) or -y (rows) and
// reordering is allowed, the voxels are flipped on that axis and the
// matrix is compensated, keeping it consistent with the buffer. If the
// slice axis ends up pointing along -z the slices are flipped too;
// SlicesReordered reports that reversal to the caller.
func ToRAS(vol *models.Volume, patient *mat.Dense, allowRowReorder, allowColReorder bool) *mat.Dense {
	ras := negateUpperRows(patient)

	if allowColReorder && ras.At(0, 0) < 0 {
		vol.FlipCols()
		postMultiply(ras, axisFlip(0, vol.Cols))
	}
	if allowRowReorder && ras.At(1, 1) < 0 {
		vol.FlipRows()
		postMultiply(ras, axisFlip(1, vol.Rows))
	}
	if ras.At(2, 2) < 0 {
		vol.FlipSlices()
		postMultiply(ras, axisFlip(2, vol.Slices))
	}
	return ras
}

// SlicesReordered folds the two independent reversal signals into one
// decision. The first comes from the reader: if the file index of the
// first stacked slice exceeds that of the last, the reader already
// reversed the acquisition order. The second is geometric: undo the
// RAS sign flip in a copy of the source transform, invert it, and
// multiply by the output transform; a slice-axis component below -0.1
// means the output convention stacks slices opposite to the source.
// Either signal alone can be wrong when acquisition order already
// matches the destination convention, so they combine by XOR.
func SlicesReordered(fileIndices []int, patient, ras *mat.Dense) (bool, error) {
	reordered := len(fileIndices) > 1 &&
		fileIndices[0] > fileIndices[len(fileIndices)-1]

	check := negateUpperRows(patient)
	var inv mat.Dense
	if err := inv.Inverse(check); err != nil {
		return false, fmt.Errorf("singular patient transform: %w", err)
	}
	var prod mat.Dense
	prod.Mul(&inv, ras)

	if prod.At(2, 2) < -0.1 {
		reordered = !reordered
	}
	return reordered, nil
}

// negateUpperRows copies m with rows 0 and 1 negated.
func negateUpperRows(m *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(m)
	for j := 0; j < 4; j++ {
		out.Set(0, j, -out.At(0, j))
		out.Set(1, j, -out.At(1, j))
	}
	return out
}

// axisFlip maps index a to (n-1)-a on the given axis.
func axisFlip(axis, n int) *mat.Dense {
	f := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		f.Set(i, i, 1)
	}
	f.Set(axis, axis, -1)
	f.Set(axis, 3, float64(n-1))
	return f
}

func postMultiply(m *mat.Dense, by *mat.Dense) {
	var prod mat.Dense
	prod.Mul(m, by)
	m.Copy(&prod)
}
