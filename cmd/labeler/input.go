package main

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/image-labeler/pkg/annotate"
)

// inputFlags selects what a command labels
type inputFlags struct {
	dir  string
	file string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dir, "input-dir", "i", "", "Directory of images to label")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Label a single image instead of a directory")
}

// resolve returns the discovered images and the directory labels are written to
func (f *inputFlags) resolve() ([]string, string, error) {
	dir := strings.TrimSpace(f.dir)
	file := strings.TrimSpace(f.file)
	if dir == "" && file == "" {
		return nil, "", errors.New("either --input-dir or --file is required")
	}
	images, err := annotate.Discover(dir, file)
	if err != nil {
		return nil, "", err
	}
	if file != "" {
		dir = filepath.Dir(file)
	}
	return images, dir, nil
}
