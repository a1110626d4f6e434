package dicom

import (
	"sort"

	dcm "github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomtonifti/internal/models"
)

type sortedFile struct {
	path     string
	instance int
	arrival  int
}

type sortedSeries struct {
	uid     string
	number  int
	arrival int
	files   []sortedFile
}

type sortedStudy struct {
	uid     string
	arrival int
	series  map[string]*sortedSeries
}

// Group partitions a flat file list into studies of series. Studies
// keep the order of their first appearance in the input; series within
// a study sort by series number, then first appearance; files within a
// series sort by instance number, then first appearance. Series
// ordinals are assigned globally across all studies.
func Group(files []string) ([]models.Study, *Error) {
	studies := make(map[string]*sortedStudy)
	var studyOrder []*sortedStudy

	for i, path := range files {
		ds, err := dcm.ParseFile(path, nil, dcm.SkipPixelData())
		if err != nil {
			return nil, classify(err, path)
		}
		studyUID := stringValue(&ds, tag.StudyInstanceUID)
		seriesUID := stringValue(&ds, tag.SeriesInstanceUID)

		st, ok := studies[studyUID]
		if !ok {
			st = &sortedStudy{uid: studyUID, arrival: i, series: make(map[string]*sortedSeries)}
			studies[studyUID] = st
			studyOrder = append(studyOrder, st)
		}
		se, ok := st.series[seriesUID]
		if !ok {
			se = &sortedSeries{
				uid:     seriesUID,
				number:  intValue(&ds, tag.SeriesNumber, 0),
				arrival: i,
			}
			st.series[seriesUID] = se
		}
		se.files = append(se.files, sortedFile{
			path:     path,
			instance: intValue(&ds, tag.InstanceNumber, i),
			arrival:  i,
		})
	}

	var out []models.Study
	seriesIndex := 0
	for studyIndex, st := range studyOrder {
		series := make([]*sortedSeries, 0, len(st.series))
		for _, se := range st.series {
			series = append(series, se)
		}
		sort.Slice(series, func(a, b int) bool {
			if series[a].number != series[b].number {
				return series[a].number < series[b].number
			}
			return series[a].arrival < series[b].arrival
		})

		study := models.Study{}
		for _, se := range series {
			sort.Slice(se.files, func(a, b int) bool {
				if se.files[a].instance != se.files[b].instance {
					return se.files[a].instance < se.files[b].instance
				}
				return se.files[a].arrival < se.files[b].arrival
			})
			group := models.SeriesGroup{Series: seriesIndex, Study: studyIndex}
			for _, f := range se.files {
				group.Files = append(group.Files, f.path)
			}
			study.Series = append(study.Series, group)
			seriesIndex++
		}
		out = append(out, study)
	}
	return out, nil
}
