// Copyright (c) 2020–2024 The utg900 developers. All rights reserved.
// Project site: https://github.com/gotmc/utg900
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package utg900

import (
	"fmt"
	"os"
	"path/filepath"
)

// CaptureHeaderLen is the size of the header in front of the bitmap returned
// by a screen dump.
const CaptureHeaderLen = 15

// captureDIB is the intermediate bitmap written next to a screenshot.
const captureDIB = "__UTG-capture__.bmp"

// StripCaptureHeader returns the bitmap part of a raw screen dump.
func StripCaptureHeader(raw []byte) ([]byte, error) {
	if len(raw) < CaptureHeaderLen {
		return nil, fmt.Errorf("%w: got %d bytes, header alone is %d",
			ErrCaptureTruncated, len(raw), CaptureHeaderLen)
	}
	return raw[CaptureHeaderLen:], nil
}

// CaptureScreen requests a screen dump and returns the raw bitmap. The
// capture is not retried: a stuck dump usually means the display is not on
// the page expected.
func (s *Session) CaptureScreen() ([]byte, error) {
	const cmd = "Display:Data?"
	if err := s.send(cmd); err != nil {
		return nil, err
	}
	s.sleep(s.captureDelay)
	raw, err := s.t.ReadRaw()
	if err != nil {
		return nil, &TransportError{Op: "read", Command: cmd, Err: err}
	}
	body, err := StripCaptureHeader(raw)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("captured %d bytes", len(body))
	if err := s.Unlock(); err != nil {
		return nil, err
	}
	return body, nil
}

// Converter turns a captured bitmap file into a viewable image, including
// any orientation fix the raster needs.
type Converter interface {
	Convert(src, dst string) error
}

// Screenshot captures the screen into dir and converts it with conv. An
// empty fileName becomes a timestamped UTG-YYYYMMDD-HHMMSS.<ext> name; an
// empty ext means png. It returns the path of the converted image.
func (s *Session) Screenshot(conv Converter, dir, fileName, ext string) (string, error) {
	if ext == "" {
		ext = "png"
	}
	if fileName == "" {
		fileName = fmt.Sprintf("UTG-%s.%s", s.now().Format("20060102-150405"), ext)
	}
	path := filepath.Join(dir, fileName)
	s.log.Infof("screenshot: %s", path)
	body, err := s.CaptureScreen()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create capture directory: %w", err)
	}
	dib := filepath.Join(dir, captureDIB)
	if err := os.WriteFile(dib, body, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dib, err)
	}
	if err := conv.Convert(dib, path); err != nil {
		return "", fmt.Errorf("converting %s: %w", dib, err)
	}
	return path, nil
}
