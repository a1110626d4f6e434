package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"dicomtonifti/pkg/collect"
	"dicomtonifti/pkg/config"
	"dicomtonifti/pkg/logging"
	"dicomtonifti/pkg/pipeline"
)

const version = "1.0.0"

// usageError marks a bad invocation so main can print the usage text
// after the error message.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func newRootCommand() (*cobra.Command, *config.Options) {
	opts := new(config.Options)
	var configPath string
	var writeConfig bool

	cmd := &cobra.Command{
		Use:   "dicomtonifti -o <output> <file|directory> ...",
		Short: "Convert DICOM series into NIfTI volumes",
		Long: `dicomtonifti converts one or more DICOM image series into NIfTI files.

In the default mode the input files must belong to a single series and
the -o option names the output file. With --batch the -o option names an
existing directory, and one NIfTI file per series is written below it
using names derived from the patient, study, and series attributes.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if writeConfig {
				return writeStarterConfig(configPath)
			}
			return runConvert(cmd, opts, configPath, args)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	fl := cmd.Flags()
	fl.StringVarP(&opts.Output, "output", "o", "", "the output file (or directory with --batch)")
	fl.BoolVarP(&opts.Compress, "compress", "z", false, "compress the output with gzip")
	fl.BoolVarP(&opts.Recurse, "recurse", "r", false, "search input directories recursively")
	fl.BoolVarP(&opts.Batch, "batch", "b", false, "convert all series found in the input")
	fl.BoolVarP(&opts.Silent, "silent", "s", false, "do not echo output filenames")
	fl.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	fl.BoolVarP(&opts.FollowSymlinks, "follow-symlinks", "L", false, "follow symbolic links when recursing")
	fl.BoolVar(&opts.NoSliceReordering, "no-slice-reordering", false, "never reorder the slices of a volume")
	fl.BoolVar(&opts.NoRowReordering, "no-row-reordering", false, "never reorder the rows of a slice")
	fl.BoolVar(&opts.NoColumnReordering, "no-column-reordering", false, "never reorder the columns of a slice")
	fl.BoolVar(&opts.NoQForm, "no-qform", false, "do not write the qform orientation")
	fl.BoolVar(&opts.NoSForm, "no-sform", false, "do not write the sform orientation")
	fl.StringVar(&configPath, "config", "", "path to a YAML configuration file")
	fl.BoolVar(&writeConfig, "write-config", false, "write a starter configuration file and exit")

	return cmd, opts
}

// writeStarterConfig saves the built-in defaults to the config path so
// the user has a file to edit.
func writeStarterConfig(configPath string) error {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return err
	}
	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		return fmt.Errorf("cannot write config file %s: %w", path, err)
	}
	return nil
}

func runConvert(cmd *cobra.Command, opts *config.Options, configPath string, args []string) error {
	if err := applyConfigDefaults(cmd, opts, configPath); err != nil {
		return err
	}

	if opts.Output == "" {
		return &usageError{err: errors.New("no output file was specified (use -o <filename>)")}
	}
	info, err := os.Stat(opts.Output)
	outputIsDir := err == nil && info.IsDir()
	if opts.Batch {
		if !outputIsDir {
			return fmt.Errorf("in batch mode, -o must give an existing directory: %s", opts.Output)
		}
	} else {
		if outputIsDir || endsWithSeparator(opts.Output) {
			return fmt.Errorf("the -o option must give a file, not a directory: %s", opts.Output)
		}
	}
	if len(args) == 0 {
		return &usageError{err: errors.New("no input files were specified")}
	}

	paths := make([]string, 0, len(args))
	for _, arg := range args {
		matches, ok := collect.ExpandPattern(arg)
		if !ok {
			return fmt.Errorf("Could not match pattern: %s", arg)
		}
		paths = append(paths, matches...)
	}

	runner := &pipeline.Runner{
		Options: *opts,
		Log:     logging.New(logging.Options{Verbose: opts.Verbose}),
	}
	return runner.Run(paths)
}

// applyConfigDefaults fills in options from a YAML config file for every
// flag the user did not set on the command line.
func applyConfigDefaults(cmd *cobra.Command, opts *config.Options, configPath string) error {
	explicit := configPath != ""
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil
	}
	configPath = path

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if !explicit {
			return nil
		}
		return fmt.Errorf("cannot read config file %s: %w", configPath, err)
	}

	fl := cmd.Flags()
	if !fl.Changed("compress") {
		opts.Compress = cfg.Defaults.Compress
	}
	if !fl.Changed("recurse") {
		opts.Recurse = cfg.Defaults.Recurse
	}
	if !fl.Changed("follow-symlinks") {
		opts.FollowSymlinks = cfg.Defaults.FollowSymlinks
	}
	if !fl.Changed("batch") {
		opts.Batch = cfg.Defaults.Batch
	}
	if !fl.Changed("silent") {
		opts.Silent = cfg.Defaults.Silent
	}
	if !fl.Changed("verbose") {
		opts.Verbose = cfg.Defaults.Verbose
	}
	return nil
}

// resolveConfigPath falls back to a dotfile in the home directory when
// no explicit path was given.
func resolveConfigPath(configPath string) (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve the default config path: %w", err)
	}
	return filepath.Join(home, ".dicomtonifti.yaml"), nil
}

func endsWithSeparator(path string) bool {
	return len(path) > 0 && os.IsPathSeparator(path[len(path)-1])
}
