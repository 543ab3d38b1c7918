package utg900

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelSelectKeys(t *testing.T) {
	keys, err := ChannelSelectKeys(2)
	require.NoError(t, err)
	assert.Equal(t, []Key{"Utility", "F2", "Wave", "Utility", "F2", "Wave"}, keys)

	keys, err = ChannelSelectKeys(1)
	require.NoError(t, err)
	assert.Equal(t, []Key{"Utility", "F1", "Wave", "Utility", "F1", "Wave"}, keys)

	for _, ch := range []Channel{0, 3, -1} {
		_, err := ChannelSelectKeys(ch)
		assert.True(t, errors.Is(err, ErrInvalidChannel), "channel %d", ch)
	}
}

func TestPropertyKeys(t *testing.T) {
	tests := []struct {
		p       Property
		literal string
		want    []Key
	}{
		{Frequency, "2kHz", []Key{"Down", "F1", "NUM2", "F4"}},
		{Amplitude, "150mVpp", []Key{"F2", "NUM1", "NUM5", "NUM0", "F1"}},
		{Offset, "-1V", []Key{"F3", "SYMBOL", "NUM1", "F2"}},
		{Phase, "90deg", []Key{"F4", "NUM9", "NUM0", "F1"}},
		{Duty, "25%", []Key{"F5", "NUM2", "NUM5", "F1"}},
		{Rise, "10ns", []Key{"F6", "Down", "F1", "NUM1", "NUM0", "F1", "F6"}},
		{Fall, "5us", []Key{"F6", "F2", "NUM5", "F2", "F6"}},
	}
	for _, tt := range tests {
		got, err := PropertyKeys(tt.p, tt.literal)
		require.NoError(t, err, tt.p.String())
		assert.Equal(t, tt.want, got, tt.p.String())
	}
}

func TestPropertyKeysWrongUnit(t *testing.T) {
	_, err := PropertyKeys(Frequency, "2Vpp")
	assert.True(t, errors.Is(err, ErrUnknownMenuLabel))

	_, err = PropertyKeys(Amplitude, "Vpp")
	assert.True(t, errors.Is(err, ErrMalformedMeasurement))
}

func TestWaveformKeysOrder(t *testing.T) {
	var ps Params
	// Filled in reverse; entry order must not depend on it.
	ps.Set(Fall, "5us")
	ps.Set(Rise, "10ns")
	ps.Set(Duty, "25%")
	ps.Set(Phase, "90deg")
	ps.Set(Offset, "-1V")
	ps.Set(Amplitude, "2Vpp")
	ps.Set(Frequency, "1kHz")

	keys, err := WaveformKeys(Pulse, ps)
	require.NoError(t, err)
	want := []Key{
		"F3",
		"Down", "F1", "NUM1", "F4",
		"F2", "NUM2", "F2",
		"F3", "SYMBOL", "NUM1", "F2",
		"F4", "NUM9", "NUM0", "F1",
		"F5", "NUM2", "NUM5", "F1",
		"F6", "Down", "F1", "NUM1", "NUM0", "F1", "F6",
		"F6", "F2", "NUM5", "F2", "F6",
	}
	assert.Equal(t, want, keys)
}

func TestWaveformKeysSubsets(t *testing.T) {
	all := map[Property]string{
		Frequency: "1kHz", Amplitude: "2Vpp", Offset: "1V", Phase: "0deg",
		Duty: "50%", Rise: "1us", Fall: "1us",
	}
	for mask := 0; mask < 1<<len(PropertyOrder); mask++ {
		var ps Params
		var want []Key
		for i, p := range PropertyOrder {
			if mask&(1<<i) == 0 {
				continue
			}
			ps.Set(p, all[p])
			pk, err := PropertyKeys(p, all[p])
			require.NoError(t, err)
			want = append(want, pk...)
		}
		keys, err := WaveformKeys(Pulse, ps)
		require.NoError(t, err, "mask %b", mask)
		assert.Equal(t, append([]Key{"F3"}, want...), keys, "mask %b", mask)
	}
}

func TestWaveformKeysZeroValue(t *testing.T) {
	keys, err := WaveformKeys(Sine, Params{Frequency: Some("0Hz")})
	require.NoError(t, err)
	assert.Equal(t, []Key{"F1", "Down", "F1", "NUM0", "F3"}, keys)

	keys, err = WaveformKeys(Sine, Params{})
	require.NoError(t, err)
	assert.Equal(t, []Key{"F1"}, keys)

	_, err = WaveformKeys(Sine, Params{Amplitude: Some("")})
	assert.True(t, errors.Is(err, ErrMalformedMeasurement))
}

func TestWaveformKeysUnsupported(t *testing.T) {
	_, err := WaveformKeys(Sine, Params{Duty: Some("25%")})
	assert.True(t, errors.Is(err, ErrUnsupportedParam))

	_, err = WaveformKeys(Square, Params{Rise: Some("1us")})
	assert.True(t, errors.Is(err, ErrUnsupportedParam))

	_, err = WaveformKeys(Square, Params{Duty: Some("25%")})
	assert.NoError(t, err)

	_, err = WaveformKeys("ramp", Params{})
	assert.True(t, errors.Is(err, ErrUnknownWave))
}

func TestArbKeys(t *testing.T) {
	sel, err := ArbSelectKeys()
	require.NoError(t, err)
	assert.Equal(t, []Key{"F5", "F5", "F2"}, sel)

	keys, err := ArbPropertyKeys(Params{Phase: Some("45deg"), Frequency: Some("10Hz")})
	require.NoError(t, err)
	assert.Equal(t, []Key{"F1", "NUM1", "NUM0", "F3", "F4", "NUM4", "NUM5", "F1"}, keys)

	_, err = ArbPropertyKeys(Params{Duty: Some("10%")})
	assert.True(t, errors.Is(err, ErrUnsupportedParam))
	_, err = ArbPropertyKeys(Params{Fall: Some("10ns")})
	assert.True(t, errors.Is(err, ErrUnsupportedParam))
}

func TestParseWave(t *testing.T) {
	for _, s := range []string{"sine", "square", "pulse"} {
		w, err := ParseWave(s)
		require.NoError(t, err)
		assert.Equal(t, WaveType(s), w)
	}
	_, err := ParseWave("Sine")
	assert.True(t, errors.Is(err, ErrUnknownWave))
}
