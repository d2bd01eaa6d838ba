package signaling

import (
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"

	"github.com/VerseEngine/verse-entrance-server/internal/sessionid"
)

func newTestPeerConnection(t *testing.T) *webrtc.PeerConnection {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func TestSendRPCResponseFalseWithoutDataChannel(t *testing.T) {
	kp, err := sessionid.NewKeyPair()
	require.NoError(t, err)
	cr := NewClientRecord(kp.ID, newTestPeerConnection(t), "u1")
	require.False(t, cr.SendRPCResponse(1, []byte("x")))
}

func TestSetDCIsSetOnce(t *testing.T) {
	kp, err := sessionid.NewKeyPair()
	require.NoError(t, err)
	pc := newTestPeerConnection(t)
	dc1, err := pc.CreateDataChannel("data", nil)
	require.NoError(t, err)
	dc2, err := pc.CreateDataChannel("data2", nil)
	require.NoError(t, err)

	cr := NewClientRecord(kp.ID, pc, "u1")
	require.True(t, cr.SetDC(dc1))
	require.False(t, cr.SetDC(dc2))
	require.Equal(t, dc1, cr.DataChannel())
}

func TestDisposeIsSafeToCallTwice(t *testing.T) {
	kp, err := sessionid.NewKeyPair()
	require.NoError(t, err)
	pc := newTestPeerConnection(t)
	dc, err := pc.CreateDataChannel("data", nil)
	require.NoError(t, err)

	cr := NewClientRecord(kp.ID, pc, "u1")
	cr.SetDC(dc)
	cr.Dispose()
	cr.Dispose()
}

func TestRoutingInfoDefaultsToNil(t *testing.T) {
	kp, err := sessionid.NewKeyPair()
	require.NoError(t, err)
	cr := NewClientRecord(kp.ID, newTestPeerConnection(t), "u1")
	require.Nil(t, cr.RoutingInfo())
}
