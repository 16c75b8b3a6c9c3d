package mavlink

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/uaslink/helpers"
	"github.com/temoto/uaslink/log2"
)

func TestCRC(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint16(0x6f91), CRC(crcInit, []byte("123456789")))
	assert.Equal(t, crcInit, CRC(crcInit, nil))
}

func testHeartbeat() *Heartbeat {
	return &Heartbeat{
		CustomMode:     0x01020304,
		Type:           MavTypeGCS,
		Autopilot:      MavAutopilotInvalid,
		SystemStatus:   MavStateActive,
		MavlinkVersion: MavlinkProtocolV1,
	}
}

func TestEncodeFrame(t *testing.T) {
	t.Parallel()

	b, err := EncodeFrame(testHeartbeat(), 7, 200, 1, nil)
	require.NoError(t, err)
	require.Len(t, b, FrameHeaderSize+heartbeatPayloadSize+FrameCRCSize)
	assert.Equal(t, helpers.MustHex("fe 09 07 c8 01 00  04030201 06 08 00 04 03  004c"), b)

	again, err := EncodeFrame(testHeartbeat(), 7, 200, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, b, again)

	_, err = EncodeFrame(&Raw{ID: 150, Payload: []byte{1}}, 0, 1, 1, nil)
	assert.True(t, errors.Cause(err) == ErrUnknownMessage, "err=%v", err)

	_, err = EncodeFrame(&Raw{ID: MsgIDStatusText, Payload: make([]byte, 256)}, 0, 1, 1, nil)
	assert.True(t, errors.Cause(err) == ErrFrameLenOverflow, "err=%v", err)
}

func TestParser(t *testing.T) {
	t.Parallel()

	f1, err := EncodeFrame(testHeartbeat(), 1, 10, 20, nil)
	require.NoError(t, err)
	f2, err := EncodeFrame(&Raw{ID: MsgIDPing, Payload: []byte("ping-pong-ping")}, 2, 10, 20, nil)
	require.NoError(t, err)
	bad := append([]byte(nil), f1...)
	bad[len(bad)-1] ^= 0xff
	unknown := []byte{FrameMagic, 1, 0, 1, 1, 150, 0, 0, 0}

	cases := []struct {
		name   string
		chunks [][]byte
		expect []uint8 // seq of decoded frames
		check  func(t testing.TB, s *ParserStat)
	}{
		{"single", [][]byte{f1}, []uint8{1}, nil},
		{"coalesced", [][]byte{append(append([]byte(nil), f1...), f2...)}, []uint8{1, 2}, nil},
		{"split", [][]byte{f1[:3], f1[3:10], f1[10:]}, []uint8{1}, func(t testing.TB, s *ParserStat) {
			assert.Equal(t, int64(0), s.Incomplete.Value())
		}},
		{"garbage-prefix", [][]byte{[]byte("\x00\x01junk"), f2}, []uint8{2}, func(t testing.TB, s *ParserStat) {
			assert.Equal(t, int64(6), s.Skipped.Value())
		}},
		{"duplicate", [][]byte{f1, f1}, []uint8{1, 1}, nil},
		{"bad-crc", [][]byte{bad, f2}, []uint8{2}, func(t testing.TB, s *ParserStat) {
			assert.Equal(t, int64(1), s.BadCRC.Value())
		}},
		{"unknown-msgid", [][]byte{unknown, f2}, []uint8{2}, func(t testing.TB, s *ParserStat) {
			assert.Equal(t, int64(1), s.Unknown.Value())
		}},
		{"incomplete", [][]byte{f2[:5]}, nil, func(t testing.TB, s *ParserStat) {
			assert.Equal(t, int64(5), s.Incomplete.Value())
		}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			p := NewParser(nil)
			var seqs []uint8
			for _, chunk := range c.chunks {
				for _, pkt := range p.Feed(chunk) {
					seqs = append(seqs, pkt.Seq)
					assert.Equal(t, uint8(10), pkt.SysID)
					assert.Equal(t, uint8(20), pkt.CompID)
				}
			}
			assert.Equal(t, c.expect, seqs)
			if c.check != nil {
				c.check(t, p.Stat())
			}
		})
	}
}

func TestPacketMessage(t *testing.T) {
	t.Parallel()

	b, err := EncodeFrame(testHeartbeat(), 0, 1, 1, nil)
	require.NoError(t, err)
	ps := NewParser(nil).Feed(b)
	require.Len(t, ps, 1)
	m, err := ps[0].Message()
	require.NoError(t, err)
	assert.Equal(t, testHeartbeat(), m)

	short := &Packet{MsgID: MsgIDHeartbeat, Payload: []byte{1, 2}}
	_, err = short.Message()
	assert.True(t, errors.IsNotValid(errors.Cause(err)), "err=%v", err)

	raw := &Packet{MsgID: MsgIDPing, Payload: []byte{1, 2}}
	m, err = raw.Message()
	require.NoError(t, err)
	assert.Equal(t, &Raw{ID: MsgIDPing, Payload: []byte{1, 2}}, m)
}

func TestCodecSigned(t *testing.T) {
	t.Parallel()

	secret := []byte("secret-for-tests")
	tx, err := NewCodec(CodecOptions{Secret: secret, Log: log2.NewTest(t, log2.LDebug)})
	require.NoError(t, err)
	rx, err := NewCodec(CodecOptions{Secret: secret, Log: log2.NewTest(t, log2.LDebug)})
	require.NoError(t, err)

	b, err := tx.Encode(testHeartbeat(), 200, 1, true)
	require.NoError(t, err)
	expect, err := EncodeFrame(testHeartbeat(), 0, 200, 1, secret)
	require.NoError(t, err)
	assert.Equal(t, expect, b)

	ps := rx.Decode(b)
	require.Len(t, ps, 1)
	assert.True(t, ps[0].Signed)

	// unsigned frame is rejected by codec with secret
	plain, err := tx.Encode(testHeartbeat(), 200, 1, false)
	require.NoError(t, err)
	assert.Len(t, rx.Decode(plain), 0)

	tampered, err := tx.Encode(testHeartbeat(), 200, 1, true)
	require.NoError(t, err)
	tampered[len(tampered)-1] ^= 1
	assert.Len(t, rx.Decode(tampered), 0)
	assert.True(t, rx.Stat().BadAuth.Value() >= 1)
}

func TestCodecSequence(t *testing.T) {
	t.Parallel()

	c, err := NewCodec(CodecOptions{})
	require.NoError(t, err)
	for i := 0; i < 300; i++ {
		b, err := c.Encode(testHeartbeat(), 1, 1, false)
		require.NoError(t, err)
		assert.Equal(t, uint8(i), b[2])
	}
}

func TestCodecSignWithoutSecret(t *testing.T) {
	t.Parallel()

	c, err := NewCodec(CodecOptions{})
	require.NoError(t, err)
	_, err = c.Encode(testHeartbeat(), 1, 1, true)
	assert.True(t, errors.Cause(err) == ErrAuthSecretWeak, "err=%v", err)

	_, err = NewCodec(CodecOptions{Secret: []byte("short")})
	assert.Error(t, err)
}

func TestAuth(t *testing.T) {
	t.Parallel()

	secret := []byte("0123456789")
	frame := []byte("frame-bytes")
	b, err := AppendAuth(append([]byte(nil), frame...), secret)
	require.NoError(t, err)
	require.Len(t, b, len(frame)+AuthSize)
	assert.True(t, CheckAuth(frame, b[len(frame):], secret))
	assert.False(t, CheckAuth(frame, b[len(frame):], []byte("9876543210")))
	assert.False(t, CheckAuth(frame[1:], b[len(frame):], secret))

	_, err = AppendAuth(frame, []byte("short"))
	assert.Equal(t, ErrAuthSecretWeak, err)
	assert.False(t, CheckAuth(frame, b[len(frame):], []byte("short")))
}
