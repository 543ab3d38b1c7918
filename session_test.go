package utg900

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is an in-memory Transport that keeps every command sent.
type recorder struct {
	sent     []string
	raw      []byte
	reply    string
	failSend int // fail the send with this 1-based index; 0 never fails
	closeErr error
	closed   bool
}

var errBus = errors.New("bus timeout")

func (r *recorder) Send(cmd string) error {
	if r.failSend > 0 && len(r.sent)+1 == r.failSend {
		return errBus
	}
	r.sent = append(r.sent, cmd)
	return nil
}

func (r *recorder) ReadRaw() ([]byte, error) { return r.raw, nil }

func (r *recorder) Query(cmd string) (string, error) {
	r.sent = append(r.sent, cmd)
	return r.reply, nil
}

func (r *recorder) Close() error {
	r.closed = true
	return r.closeErr
}

func (r *recorder) count(cmd string) int {
	n := 0
	for _, s := range r.sent {
		if s == cmd {
			n++
		}
	}
	return n
}

func newTestSession(t *testing.T) (*Session, *recorder, *[]time.Duration) {
	t.Helper()
	r := &recorder{}
	var slept []time.Duration
	s := NewSessionNoReset(r, WithSleep(func(d time.Duration) { slept = append(slept, d) }))
	return s, r, &slept
}

func keyCmds(keys ...string) []string {
	cmds := make([]string, len(keys))
	for i, k := range keys {
		cmds[i] = "KEY:" + k
	}
	return cmds
}

func selectCmds(ch string) []string {
	return keyCmds("Utility", "F"+ch, "Wave", "Utility", "F"+ch, "Wave")
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestNewSessionResets(t *testing.T) {
	r := &recorder{}
	s, err := NewSession(r, WithSleep(func(time.Duration) {}))
	require.NoError(t, err)
	assert.Equal(t, []string{"*RST", "System:LOCK off"}, r.sent)
	assert.False(t, s.Enabled(1))
	assert.False(t, s.Enabled(2))
}

func TestReset(t *testing.T) {
	s, r, _ := newTestSession(t)
	require.NoError(t, s.Enable(1))
	require.NoError(t, s.Enable(2))
	require.True(t, s.Enabled(1))
	require.True(t, s.Enabled(2))

	r.sent = nil
	require.NoError(t, s.Reset())
	assert.False(t, s.Enabled(1))
	assert.False(t, s.Enabled(2))
	assert.Equal(t, []string{"*RST", "System:LOCK off"}, r.sent)
}

func TestSetEnabledIdempotent(t *testing.T) {
	s, r, slept := newTestSession(t)
	require.NoError(t, s.SetEnabled(1, true))
	require.NoError(t, s.SetEnabled(1, true))

	assert.Equal(t, concat(selectCmds("1"), keyCmds("CH1"), []string{"System:LOCK off"}), r.sent)
	assert.Equal(t, 1, r.count("KEY:CH1"))
	assert.Equal(t, []time.Duration{DefaultSettleDelay, DefaultSettleDelay}, *slept)
	assert.True(t, s.Enabled(1))
	assert.False(t, s.Enabled(2))
}

func TestDisableWhenOffSendsNothing(t *testing.T) {
	s, r, _ := newTestSession(t)
	require.NoError(t, s.Disable(2))
	assert.Empty(t, r.sent)

	require.NoError(t, s.Enable(2))
	r.sent = nil
	require.NoError(t, s.Disable(2))
	assert.Equal(t, concat(selectCmds("2"), keyCmds("CH2"), []string{"System:LOCK off"}), r.sent)
	assert.False(t, s.Enabled(2))
}

func TestSetEnabledInvalidChannel(t *testing.T) {
	s, r, _ := newTestSession(t)
	err := s.Enable(3)
	assert.True(t, errors.Is(err, ErrInvalidChannel))
	assert.Empty(t, r.sent)
	assert.False(t, s.Enabled(3))
}

func TestSelectChannelAlwaysTwice(t *testing.T) {
	for _, prior := range []Channel{1, 2} {
		s, r, slept := newTestSession(t)
		require.NoError(t, s.SelectChannel(prior))
		r.sent = nil
		*slept = nil

		require.NoError(t, s.SelectChannel(2))
		assert.Equal(t, selectCmds("2"), r.sent)
		assert.Equal(t, 2, r.count("KEY:Utility"))
		assert.Equal(t, []time.Duration{DefaultSettleDelay}, *slept)
	}
}

func TestConfigure(t *testing.T) {
	s, r, slept := newTestSession(t)
	err := s.Configure(1, Sine, Params{Frequency: Some("2kHz")})
	require.NoError(t, err)

	want := concat(
		selectCmds("1"),
		keyCmds("F1", "Down", "F1", "NUM2", "F4"),
		selectCmds("1"),
		keyCmds("CH1"),
		[]string{"System:LOCK off"},
	)
	assert.Equal(t, want, r.sent)
	assert.Len(t, *slept, 3)
	assert.True(t, s.Enabled(1))
}

func TestConfigureDisablesFirst(t *testing.T) {
	s, r, _ := newTestSession(t)
	require.NoError(t, s.Enable(2))
	r.sent = nil

	require.NoError(t, s.Configure(2, Square, Params{Duty: Some("25%")}))
	off := concat(selectCmds("2"), keyCmds("CH2"), []string{"System:LOCK off"})
	want := concat(
		off,
		selectCmds("2"),
		keyCmds("F2", "F5", "NUM2", "NUM5", "F1"),
		off,
	)
	assert.Equal(t, want, r.sent)
	assert.True(t, s.Enabled(2))
}

func TestConfigureBadParamSendsNothing(t *testing.T) {
	s, r, _ := newTestSession(t)
	require.NoError(t, s.Enable(1))
	r.sent = nil

	err := s.Configure(1, Pulse, Params{Frequency: Some("2kHz"), Fall: Some("fast")})
	assert.True(t, errors.Is(err, ErrMalformedMeasurement))
	err = s.Configure(1, Sine, Params{Rise: Some("1us")})
	assert.True(t, errors.Is(err, ErrUnsupportedParam))
	err = s.Configure(1, Sine, Params{Amplitude: Some("1.5Vp")})
	assert.True(t, errors.Is(err, ErrUnknownMenuLabel))

	assert.Empty(t, r.sent)
	assert.True(t, s.Enabled(1))
}

func TestConfigureTransportFailure(t *testing.T) {
	s, r, _ := newTestSession(t)
	r.failSend = 8 // the amplitude key, after channel select and sine
	err := s.Configure(1, Sine, Params{Amplitude: Some("1Vpp")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, errBus))
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "KEY:F2", te.Command)
	assert.Len(t, r.sent, 7)
	assert.False(t, s.Enabled(1))
}

func TestConfigureArbitrary(t *testing.T) {
	s, r, _ := newTestSession(t)
	src := LineSource{"#ARB 4", "0", "2047", "4095", "2047"}
	err := s.ConfigureArbitrary(2, src, Params{Frequency: Some("1kHz"), Amplitude: Some("3Vpp")})
	require.NoError(t, err)

	want := concat(
		selectCmds("2"),
		keyCmds("F5", "F5", "F2"),
		[]string(src),
		keyCmds("F1", "NUM1", "F4", "F2", "NUM3", "F2"),
		selectCmds("2"),
		keyCmds("CH2"),
		[]string{"System:LOCK off"},
	)
	assert.Equal(t, want, r.sent)
	assert.True(t, s.Enabled(2))
}

func TestConfigureArbitraryRejectsDuty(t *testing.T) {
	s, r, _ := newTestSession(t)
	err := s.ConfigureArbitrary(1, LineSource{"1"}, Params{Duty: Some("10%")})
	assert.True(t, errors.Is(err, ErrUnsupportedParam))
	assert.Empty(t, r.sent)
}

func TestIdentify(t *testing.T) {
	s, r, _ := newTestSession(t)
	r.reply = "UNI-T Technologies,UTG900,1485061822,V1.08\n"
	idn, err := s.Identify()
	require.NoError(t, err)
	assert.Equal(t, "UNI-T Technologies,UTG900,1485061822,V1.08", idn)
	assert.Equal(t, []string{"*IDN?"}, r.sent)
}

func TestClose(t *testing.T) {
	s, r, _ := newTestSession(t)
	r.closeErr = errors.New("port busy")
	err := s.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port busy")
	assert.True(t, r.closed)
	assert.Equal(t, []string{"System:LOCK off"}, r.sent)

	r2 := &recorder{failSend: 1}
	s2 := NewSessionNoReset(r2)
	err = s2.Close()
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, r2.closed)
}

func TestLockUnlock(t *testing.T) {
	s, r, _ := newTestSession(t)
	require.NoError(t, s.Lock())
	require.NoError(t, s.Unlock())
	assert.Equal(t, []string{"System:LOCK on", "System:LOCK off"}, r.sent)
}
