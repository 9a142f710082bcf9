package protoexport

import (
	"io"
	"os"
	"path"

	"github.com/jhump/protoreflect/v2/protoprint"
)

// Render prints the exported file as proto source.
func Render(e *Export, w io.Writer) error {
	pp := protoprint.Printer{}
	return pp.PrintProtoFile(e.File, w)
}

// RenderDir writes the exported file under outDir at its package path.
func RenderDir(e *Export, outDir string) error {
	fp := path.Join(outDir, e.File.Path())
	if err := os.MkdirAll(path.Dir(fp), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return Render(e, f)
}
