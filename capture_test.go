package utg900

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCaptureHeader(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i)
	}
	body, err := StripCaptureHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte{15, 16, 17, 18, 19}, body)

	body, err = StripCaptureHeader(raw[:15])
	require.NoError(t, err)
	assert.Empty(t, body)

	_, err = StripCaptureHeader(raw[:14])
	assert.True(t, errors.Is(err, ErrCaptureTruncated))
	_, err = StripCaptureHeader(nil)
	assert.True(t, errors.Is(err, ErrCaptureTruncated))
}

func TestCaptureScreen(t *testing.T) {
	s, r, slept := newTestSession(t)
	r.raw = append([]byte("#9000000005BM\x00\x00"), 'a', 'b', 'c', 'd', 'e')
	body, err := s.CaptureScreen()
	require.NoError(t, err)
	assert.Equal(t, []byte("abcde"), body)
	assert.Equal(t, []string{"Display:Data?", "System:LOCK off"}, r.sent)
	assert.Equal(t, []time.Duration{DefaultCaptureDelay}, *slept)
}

func TestCaptureScreenTruncated(t *testing.T) {
	s, r, _ := newTestSession(t)
	r.raw = []byte("#9000")
	_, err := s.CaptureScreen()
	assert.True(t, errors.Is(err, ErrCaptureTruncated))
	assert.Equal(t, []string{"Display:Data?"}, r.sent)
}

type copyConverter struct {
	src, dst string
}

func (c *copyConverter) Convert(src, dst string) error {
	c.src, c.dst = src, dst
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0644)
}

func TestScreenshot(t *testing.T) {
	r := &recorder{raw: append(make([]byte, CaptureHeaderLen), "BMbitmap"...)}
	clock := func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	s := NewSessionNoReset(r, WithSleep(func(time.Duration) {}), WithClock(clock))

	dir := filepath.Join(t.TempDir(), "pics")
	conv := &copyConverter{}
	path, err := s.Screenshot(conv, dir, "", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "UTG-20240102-030405.png"), path)
	assert.Equal(t, filepath.Join(dir, "__UTG-capture__.bmp"), conv.src)
	assert.Equal(t, path, conv.dst)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "BMbitmap", string(b))

	path, err = s.Screenshot(conv, dir, "shot.jpg", "png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shot.jpg"), path)
}

type failConverter struct{}

func (failConverter) Convert(src, dst string) error { return errors.New("convert: not found") }

func TestScreenshotConvertFailure(t *testing.T) {
	r := &recorder{raw: make([]byte, 32)}
	s := NewSessionNoReset(r, WithSleep(func(time.Duration) {}))
	_, err := s.Screenshot(failConverter{}, t.TempDir(), "x.png", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
