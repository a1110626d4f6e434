package dicom

import (
	"fmt"
	"math"
	"sort"

	dcm "github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gonum.org/v1/gonum/mat"

	"dicomtonifti/internal/models"
)

type sliceRecord struct {
	index    int // position in the input file list
	path     string
	position float64 // projection of IPP onto the slice normal
	origin   [3]float64
	pixels   []int16
}

// Read assembles one series into a volume. Slices are stacked in
// ascending order of their position along the slice normal, which may
// differ from the supplied acquisition order; the returned index array
// maps each output slice back to its position in the input list, so a
// reversed acquisition yields a first index greater than the last.
// The patient matrix maps voxel indices (i,j,k) to DICOM patient
// coordinates, spacing included.
func Read(files []string) (*models.Volume, *mat.Dense, []int, *Error) {
	if len(files) == 0 {
		return nil, nil, nil, NewError(ErrMalformed, "", fmt.Errorf("empty series"))
	}

	var (
		cols, rows int
		rowDir     [3]float64
		colDir     [3]float64
		pixSpacing = [2]float64{1, 1}
		gapHint    float64
		slices     []sliceRecord
	)

	for i, path := range files {
		ds, err := dcm.ParseFile(path, nil)
		if err != nil {
			return nil, nil, nil, classify(err, path)
		}

		c := ushortValue(&ds, tag.Columns, 0)
		r := ushortValue(&ds, tag.Rows, 0)
		if c <= 0 || r <= 0 {
			return nil, nil, nil, NewError(ErrMalformed, path, fmt.Errorf("missing image dimensions"))
		}
		if i == 0 {
			cols, rows = c, r
		} else if c != cols || r != rows {
			return nil, nil, nil, NewError(ErrMalformed, path,
				fmt.Errorf("slice is %dx%d, series is %dx%d", c, r, cols, rows))
		}

		if i == 0 {
			if iop := floatValues(&ds, tag.ImageOrientationPatient, 6); iop != nil {
				rowDir = [3]float64{iop[0], iop[1], iop[2]}
				colDir = [3]float64{iop[3], iop[4], iop[5]}
			} else {
				rowDir = [3]float64{1, 0, 0}
				colDir = [3]float64{0, 1, 0}
			}
			if ps := floatValues(&ds, tag.PixelSpacing, 2); ps != nil {
				// PixelSpacing is row spacing then column spacing.
				pixSpacing = [2]float64{ps[1], ps[0]}
			}
			if sp := floatValues(&ds, tag.SpacingBetweenSlices, 1); sp != nil {
				gapHint = sp[0]
			} else if th := floatValues(&ds, tag.SliceThickness, 1); th != nil {
				gapHint = th[0]
			}
		}

		normal := cross(rowDir, colDir)
		origin := [3]float64{0, 0, float64(i)}
		if ipp := floatValues(&ds, tag.ImagePositionPatient, 3); ipp != nil {
			origin = [3]float64{ipp[0], ipp[1], ipp[2]}
		}

		pixels, perr := slicePixels(&ds, path, cols*rows)
		if perr != nil {
			return nil, nil, nil, perr
		}

		slices = append(slices, sliceRecord{
			index:    i,
			path:     path,
			position: dot(origin, normal),
			origin:   origin,
			pixels:   pixels,
		})
	}

	sort.SliceStable(slices, func(a, b int) bool {
		return slices[a].position < slices[b].position
	})

	spacingK := gapHint
	if len(slices) > 1 {
		if d := math.Abs(slices[1].position - slices[0].position); d > 1e-6 {
			spacingK = d
		}
	}
	if spacingK <= 0 {
		spacingK = 1
	}

	vol := &models.Volume{
		Data:    make([]int16, cols*rows*len(slices)),
		Cols:    cols,
		Rows:    rows,
		Slices:  len(slices),
		Spacing: [3]float64{pixSpacing[0], pixSpacing[1], spacingK},
	}
	indices := make([]int, len(slices))
	for k, s := range slices {
		copy(vol.Data[k*rows*cols:(k+1)*rows*cols], s.pixels)
		indices[k] = s.index
	}

	normal := cross(rowDir, colDir)
	origin := slices[0].origin
	patient := mat.NewDense(4, 4, []float64{
		rowDir[0] * pixSpacing[0], colDir[0] * pixSpacing[1], normal[0] * spacingK, origin[0],
		rowDir[1] * pixSpacing[0], colDir[1] * pixSpacing[1], normal[1] * spacingK, origin[1],
		rowDir[2] * pixSpacing[0], colDir[2] * pixSpacing[1], normal[2] * spacingK, origin[2],
		0, 0, 0, 1,
	})

	return vol, patient, indices, nil
}

// slicePixels extracts the first frame of a file as int16 samples.
func slicePixels(ds *dcm.Dataset, path string, want int) ([]int16, *Error) {
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, NewError(ErrMalformed, path, fmt.Errorf("no pixel data"))
	}
	info := dcm.MustGetPixelDataInfo(el.Value)
	if info.IsEncapsulated || len(info.Frames) == 0 {
		return nil, NewError(ErrMalformed, path, fmt.Errorf("unsupported pixel encoding"))
	}
	native, err := info.Frames[0].GetNativeFrame()
	if err != nil {
		return nil, NewError(ErrMalformed, path, err)
	}
	if len(native.Data) < want {
		return nil, NewError(ErrTruncated, path,
			fmt.Errorf("frame holds %d of %d pixels", len(native.Data), want))
	}
	out := make([]int16, want)
	for p := 0; p < want; p++ {
		out[p] = int16(native.Data[p][0])
	}
	return out, nil
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}
