// Package pipeline sequences the conversion of grouped DICOM series
// into NIfTI files: read, convert to RAS, validate slice order, write.
package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"dicomtonifti/internal/models"
	"dicomtonifti/pkg/collect"
	"dicomtonifti/pkg/config"
	"dicomtonifti/pkg/dicom"
	"dicomtonifti/pkg/geometry"
	"dicomtonifti/pkg/naming"
	"dicomtonifti/pkg/nifti"
)

// Runner drives the whole conversion for one invocation.
type Runner struct {
	Options config.Options
	Log     *slog.Logger

	// Stdout receives the echoed output paths in batch mode. Defaults
	// to os.Stdout when nil.
	Stdout io.Writer
}

// Run expands the input paths and converts every discovered batch.
// Files and directories found at the same traversal level are handed
// to the sorter independently, matching the collector's contract.
func (r *Runner) Run(paths []string) error {
	opts := collect.Options{
		Recurse:        r.Options.Recurse,
		FollowSymlinks: r.Options.FollowSymlinks,
	}
	return collect.Run(paths, opts, r.Log, r.ConvertFiles)
}

// ConvertFiles groups a flat file list into studies and series and
// converts them in the sorter's order. Any collaborator failure is
// returned immediately; nothing is retried.
func (r *Runner) ConvertFiles(files []string) error {
	studies, gerr := dicom.Group(files)
	if gerr != nil {
		return gerr
	}

	if !r.Options.Batch {
		if n := countSeries(studies); n != 1 {
			return fmt.Errorf("found %d series but output is a single file (use --batch)", n)
		}
		outfile := r.Options.Output
		if r.Options.Compress && !strings.HasSuffix(strings.ToLower(outfile), ".gz") {
			outfile += ".gz"
		}
		return r.ConvertOne(studies[0].Series[0], outfile)
	}

	bar := r.newProgressBar(countSeries(studies))
	for _, study := range studies {
		for i, series := range study.Series {
			meta, perr := dicom.ParseMetadata(series.Files[0])
			if perr != nil {
				return perr
			}
			outfile := naming.OutputPath(r.Options.Output, meta)
			if r.Options.Compress {
				outfile += ".gz"
			}

			// All series of a study share the study directory, so it
			// is materialized once, with the study's first series.
			if i == 0 {
				if err := os.MkdirAll(filepath.Dir(outfile), 0o755); err != nil {
					return fmt.Errorf("cannot create directory %s: %w",
						filepath.Dir(outfile), err)
				}
			}

			if !r.Options.Silent {
				fmt.Fprintln(r.stdout(), outfile)
			}
			if err := r.ConvertOne(series, outfile); err != nil {
				return err
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return nil
}

// ConvertOne converts a single series: read the slices, convert the
// geometry to RAS honoring the reorder suppressions, fold the two
// slice-order signals, and write. The slice-order override only
// applies when reordering is suppressed and a reversal was detected.
func (r *Runner) ConvertOne(series models.SeriesGroup, outfile string) error {
	vol, patient, indices, derr := dicom.Read(series.Files)
	if derr != nil {
		return derr
	}
	r.Log.Debug("series read",
		"series", series.Series,
		"files", len(series.Files),
		"dims", fmt.Sprintf("%dx%dx%d", vol.Cols, vol.Rows, vol.Slices))

	ras := geometry.ToRAS(vol, patient,
		!r.Options.NoRowReordering, !r.Options.NoColumnReordering)

	reordered, err := geometry.SlicesReordered(indices, patient, ras)
	if err != nil {
		return dicom.NewError(dicom.ErrMalformed, series.Files[0], err)
	}

	w := &nifti.Writer{Path: outfile}
	if r.Options.NoSliceReordering && reordered {
		w.FlipSliceOrder = true
	}
	if !r.Options.NoQForm {
		w.QForm = ras
	}
	if !r.Options.NoSForm {
		w.SForm = ras
	}
	if werr := w.Write(vol); werr != nil {
		return werr
	}
	return nil
}

func (r *Runner) newProgressBar(total int) *progressbar.ProgressBar {
	if r.Options.Silent || total < 2 || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("converting series"),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func countSeries(studies []models.Study) int {
	n := 0
	for _, study := range studies {
		n += len(study.Series)
	}
	return n
}
