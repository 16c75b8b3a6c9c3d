package console

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/uaslink/config"
	"github.com/temoto/uaslink/internal/app"
	"github.com/temoto/uaslink/log2"
	"github.com/temoto/uaslink/mavlink"
)

func TestExecute(t *testing.T) {
	t.Parallel()

	peer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer peer.Close()

	cfg := config.Default()
	cfg.Link.ListenPort = 0
	cfg.Link.RemotePort = peer.LocalAddr().(*net.UDPAddr).Port
	g := app.NewGlobal(log2.NewTest(t, log2.LDebug), "test")
	require.NoError(t, g.Init(context.Background(), cfg))
	defer g.Close()

	recv := func() *mavlink.Packet {
		buf := make([]byte, 512)
		require.NoError(t, peer.SetReadDeadline(time.Now().Add(5*time.Second)))
		n, _, err := peer.ReadFromUDP(buf)
		require.NoError(t, err)
		ps := mavlink.NewParser(nil).Feed(buf[:n])
		require.Len(t, ps, 1)
		return ps[0]
	}

	out, err := execute(g, "mode 1 0x10")
	require.NoError(t, err)
	assert.Contains(t, out, "base_mode=1 custom_mode=16")

	_, err = execute(g, "hb")
	require.NoError(t, err)
	p := recv()
	assert.Equal(t, mavlink.MsgIDHeartbeat, p.MsgID)
	assert.Equal(t, uint8(200), p.SysID)
	m, err := p.Message()
	require.NoError(t, err)
	assert.Equal(t, uint32(16), m.(*mavlink.Heartbeat).CustomMode)

	_, err = execute(g, "send 4 cafe")
	require.NoError(t, err)
	p = recv()
	assert.Equal(t, mavlink.MsgIDPing, p.MsgID)
	assert.Equal(t, []byte{0xca, 0xfe}, p.Payload)

	require.Eventually(t, func() bool { return g.Link.Stat().Send.Count.Value() == 2 }, 5*time.Second, time.Millisecond)
	out, err = execute(g, "stat")
	require.NoError(t, err)
	assert.Contains(t, out, `"send":{"count":2`)

	_, err = execute(g, "send 4")
	assert.True(t, errors.IsNotValid(err), "err=%v", err)
	_, err = execute(g, "send 150 00")
	assert.True(t, errors.IsNotFound(err), "err=%v", err)
	assert.Equal(t, int64(2), g.Link.Stat().Send.Count.Value())
	assert.Equal(t, int64(0), g.Link.Stat().EncodeErrors.Value())
	_, err = execute(g, "fly")
	assert.True(t, errors.IsNotFound(err), "err=%v", err)
	out, err = execute(g, "")
	assert.NoError(t, err)
	assert.Equal(t, "", out)
}
