package models

// SeriesGroup is one imaging series: an ordered list of slice files
// plus the ordinals assigned by the sorter.
type SeriesGroup struct {
	// Files are the paths of the slice files in instance order.
	Files []string

	// Series is the ordinal of this series across the whole grouping.
	Series int

	// Study is the ordinal of the study this series belongs to.
	Study int
}

// Study is one patient encounter: an ordered list of series that share
// a StudyInstanceUID.
type Study struct {
	// Series are the series of this study in sorter order.
	Series []SeriesGroup
}

// MetadataRecord holds the descriptive fields used to derive a batch
// output path. It is read from exactly one representative file of a
// series and discarded once the path is built.
type MetadataRecord struct {
	PatientID         string
	PatientName       string
	StudyDescription  string
	StudyID           string
	SeriesDescription string
	SeriesNumber      string
}

// Volume is a 3D voxel buffer assembled from one series.
type Volume struct {
	// Data is the voxel data as a 1D array, fastest along columns (i),
	// then rows (j), then slices (k).
	Data []int16

	// Cols, Rows and Slices are the volume dimensions in voxels.
	Cols, Rows, Slices int

	// Spacing is the physical voxel size in mm along i, j and k.
	Spacing [3]float64
}

// At returns the voxel at column i, row j, slice k.
func (v *Volume) At(i, j, k int) int16 {
	return v.Data[(k*v.Rows+j)*v.Cols+i]
}

// Set stores a voxel at column i, row j, slice k.
func (v *Volume) Set(i, j, k int, value int16) {
	v.Data[(k*v.Rows+j)*v.Cols+i] = value
}

// FlipCols reverses the i axis in place.
func (v *Volume) FlipCols() {
	for k := 0; k < v.Slices; k++ {
		for j := 0; j < v.Rows; j++ {
			row := v.Data[(k*v.Rows+j)*v.Cols : (k*v.Rows+j+1)*v.Cols]
			for a, b := 0, len(row)-1; a < b; a, b = a+1, b-1 {
				row[a], row[b] = row[b], row[a]
			}
		}
	}
}

// FlipRows reverses the j axis in place.
func (v *Volume) FlipRows() {
	for k := 0; k < v.Slices; k++ {
		for a, b := 0, v.Rows-1; a < b; a, b = a+1, b-1 {
			ra := v.Data[(k*v.Rows+a)*v.Cols : (k*v.Rows+a+1)*v.Cols]
			rb := v.Data[(k*v.Rows+b)*v.Cols : (k*v.Rows+b+1)*v.Cols]
			for i := range ra {
				ra[i], rb[i] = rb[i], ra[i]
			}
		}
	}
}

// FlipSlices reverses the k axis in place.
func (v *Volume) FlipSlices() {
	stride := v.Rows * v.Cols
	for a, b := 0, v.Slices-1; a < b; a, b = a+1, b-1 {
		sa := v.Data[a*stride : (a+1)*stride]
		sb := v.Data[b*stride : (b+1)*stride]
		for i := range sa {
			sa[i], sb[i] = sb[i], sa[i]
		}
	}
}
