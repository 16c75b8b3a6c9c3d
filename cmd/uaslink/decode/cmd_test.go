package decode

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/uaslink/log2"
	"github.com/temoto/uaslink/mavlink"
)

func TestExecutor(t *testing.T) {
	t.Parallel()

	buf := bytes.NewBuffer(nil)
	log := log2.NewWriter(buf, log2.LInfo)
	log.SetFlags(0)
	codec, err := mavlink.NewCodec(mavlink.CodecOptions{})
	require.NoError(t, err)
	exec := newExecutor(codec, log)

	frame, err := mavlink.EncodeFrame(&mavlink.Heartbeat{Type: 2, MavlinkVersion: 3}, 5, 1, 1, nil)
	require.NoError(t, err)
	s := hex.EncodeToString(frame)
	// split in two lines with spaces, frame is reassembled by parser
	exec(s[:10])
	assert.Equal(t, "", buf.String())
	exec(s[10:20] + " " + s[20:])
	assert.Equal(t, "sys=1 comp=1 seq=5 signed=false HEARTBEAT(type=2 autopilot=0 base_mode=0 custom_mode=0 status=0 version=3)\n", buf.String())

	buf.Reset()
	exec("zz")
	assert.Contains(t, buf.String(), "error: hex.Decode")
}
