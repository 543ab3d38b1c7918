// Package convert turns raw screen captures into images with an external
// tool.
package convert

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// FlopFlags mirror the capture, whose raster comes out left-right reversed.
var FlopFlags = []string{"-flop"}

// ImageMagick runs `Bin src Flags... dst`. The destination extension picks
// the output format.
type ImageMagick struct {
	Bin   string
	Flags []string
	Log   *logrus.Entry
}

// New returns an ImageMagick converter running bin with FlopFlags. An empty
// bin means "convert".
func New(bin string, l *logrus.Entry) *ImageMagick {
	if bin == "" {
		bin = "convert"
	}
	return &ImageMagick{Bin: bin, Flags: FlopFlags, Log: l}
}

// Convert converts src into dst.
func (im *ImageMagick) Convert(src, dst string) error {
	cli := exec.Command(im.Bin)
	cli.Args = append(cli.Args, src)
	cli.Args = append(cli.Args, im.Flags...)
	cli.Args = append(cli.Args, dst)
	var stderr bytes.Buffer
	cli.Stderr = &stderr
	if im.Log != nil {
		im.Log.Debugf("running %v", cli.Args)
	}
	if err := cli.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", im.Bin, err, msg)
		}
		return fmt.Errorf("%s: %w", im.Bin, err)
	}
	return nil
}
