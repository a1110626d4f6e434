package dicom

import (
	"path/filepath"
	"testing"

	"dicomtonifti/internal/dicomtest"
)

func writeSorterFile(t *testing.T, dir, name, studyUID, seriesUID string, seriesNumber, instance int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	dicomtest.Write(t, path, dicomtest.Slice{
		StudyUID:     studyUID,
		SeriesUID:    seriesUID,
		SeriesNumber: seriesNumber,
		Instance:     instance,
	})
	return path
}

func TestGroupSplitsStudiesAndSeries(t *testing.T) {
	dir := t.TempDir()
	// Interleave two studies and, within the first, two series.
	a1 := writeSorterFile(t, dir, "a1.dcm", "1.1", "1.1.1", 1, 1)
	b1 := writeSorterFile(t, dir, "b1.dcm", "2.2", "2.2.1", 1, 1)
	a2 := writeSorterFile(t, dir, "a2.dcm", "1.1", "1.1.2", 2, 1)
	a3 := writeSorterFile(t, dir, "a3.dcm", "1.1", "1.1.1", 1, 2)

	studies, err := Group([]string{a1, b1, a2, a3})
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(studies) != 2 {
		t.Fatalf("got %d studies, want 2", len(studies))
	}
	if len(studies[0].Series) != 2 || len(studies[1].Series) != 1 {
		t.Fatalf("series per study = %d/%d, want 2/1",
			len(studies[0].Series), len(studies[1].Series))
	}

	first := studies[0].Series[0]
	if len(first.Files) != 2 || first.Files[0] != a1 || first.Files[1] != a3 {
		t.Errorf("first series files = %v", first.Files)
	}
	if second := studies[0].Series[1]; len(second.Files) != 1 || second.Files[0] != a2 {
		t.Errorf("second series files = %v", second.Files)
	}
	if other := studies[1].Series[0]; other.Files[0] != b1 {
		t.Errorf("second study files = %v", other.Files)
	}
}

func TestGroupAssignsGlobalSeriesOrdinals(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeSorterFile(t, dir, "a.dcm", "1.1", "1.1.1", 1, 1),
		writeSorterFile(t, dir, "b.dcm", "1.1", "1.1.2", 2, 1),
		writeSorterFile(t, dir, "c.dcm", "2.2", "2.2.1", 1, 1),
	}

	studies, err := Group(files)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	ordinal := 0
	for studyIndex, study := range studies {
		for _, series := range study.Series {
			if series.Study != studyIndex {
				t.Errorf("series study ordinal = %d, want %d", series.Study, studyIndex)
			}
			if series.Series != ordinal {
				t.Errorf("series ordinal = %d, want %d", series.Series, ordinal)
			}
			ordinal++
		}
	}
	if ordinal != 3 {
		t.Errorf("counted %d series, want 3", ordinal)
	}
}

func TestGroupOrdersSeriesByNumberThenArrival(t *testing.T) {
	dir := t.TempDir()
	// Series number 5 arrives before series number 2.
	high := writeSorterFile(t, dir, "high.dcm", "1.1", "1.1.5", 5, 1)
	low := writeSorterFile(t, dir, "low.dcm", "1.1", "1.1.2", 2, 1)

	studies, err := Group([]string{high, low})
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(studies) != 1 || len(studies[0].Series) != 2 {
		t.Fatalf("unexpected grouping: %+v", studies)
	}
	if studies[0].Series[0].Files[0] != low {
		t.Errorf("series with the lower number must come first")
	}
}

func TestGroupOrdersFilesByInstanceNumber(t *testing.T) {
	dir := t.TempDir()
	third := writeSorterFile(t, dir, "third.dcm", "1.1", "1.1.1", 1, 3)
	first := writeSorterFile(t, dir, "first.dcm", "1.1", "1.1.1", 1, 1)
	second := writeSorterFile(t, dir, "second.dcm", "1.1", "1.1.1", 1, 2)

	studies, err := Group([]string{third, first, second})
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	got := studies[0].Series[0].Files
	want := []string{first, second, third}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("file %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestGroupPropagatesParseFailures(t *testing.T) {
	_, err := Group([]string{filepath.Join(t.TempDir(), "absent.dcm")})
	if err == nil {
		t.Fatal("expected an error for an unreadable input")
	}
	if err.Kind != ErrFileNotFound {
		t.Errorf("kind = %v, want ErrFileNotFound", err.Kind)
	}
}
