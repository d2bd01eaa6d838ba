package wire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRpcPacketRoundTrip(t *testing.T) {
	p := &RpcPacket{Request: &RpcRequest{RpcID: RPCIDTransfer, Param: []byte("small payload")}}
	data := p.Marshal()
	got, err := UnmarshalRpcPacket(data)
	require.NoError(t, err)
	require.False(t, got.IsCompressed)
	require.Equal(t, p.Request.RpcID, got.Request.RpcID)
	require.Equal(t, p.Request.Param, got.Request.Param)
}

func TestEncodeDecodePacketSkipsCompressionBelowThreshold(t *testing.T) {
	p := &RpcPacket{Request: &RpcRequest{RpcID: RPCIDTransfer, Param: []byte("short")}}
	data := EncodePacket(p)
	got, err := DecodePacket(data)
	require.NoError(t, err)
	require.Equal(t, []byte("short"), got.Request.Param)
}

func TestEncodeDecodePacketCompressesLargeCompressiblePayload(t *testing.T) {
	payload := []byte(strings.Repeat("a", 500))
	p := &RpcPacket{Response: &RpcResponse{RpcID: RPCIDExchangeRoutingInfo, Param: payload}}

	wireForm := p.Marshal()
	compressedForm := EncodePacket(p)
	require.Less(t, len(compressedForm), len(wireForm))

	got, err := DecodePacket(compressedForm)
	require.NoError(t, err)
	require.False(t, got.IsCompressed)
	require.Equal(t, payload, got.Response.Param)
}

func TestEncodePacketDoesNotCompressIncompressiblePayload(t *testing.T) {
	payload := make([]byte, 500)
	for i := range payload {
		payload[i] = byte(i * 97)
	}
	p := &RpcPacket{Request: &RpcRequest{RpcID: RPCIDTransfer, Param: payload}}
	data := EncodePacket(p)
	got, err := DecodePacket(data)
	require.NoError(t, err)
	require.Equal(t, payload, got.Request.Param)
}

func TestSwarmPacketRoundTrip(t *testing.T) {
	sp := &SwarmPacket{Request: &SwarmRequest{RpcID: RPCIDExchangeRoutingInfo, Param: []byte("x")}}
	data := sp.Marshal()
	got, err := UnmarshalSwarmPacket(data)
	require.NoError(t, err)
	require.Equal(t, sp.Request.RpcID, got.Request.RpcID)
	require.Equal(t, sp.Request.Param, got.Request.Param)
}

func TestTransferRequestRoundTrip(t *testing.T) {
	tr := &TransferRequest{
		ToSessionID: bytes.Repeat([]byte{0x01}, 32),
		Payload:     []byte("opaque blob"),
		TTL:         8,
		Sig: &Signature{
			FromSessionID: bytes.Repeat([]byte{0x02}, 32),
			Sig:           bytes.Repeat([]byte{0x03}, 64),
			Salt:          []byte("salt-value"),
		},
	}
	data := tr.Marshal()
	got, err := UnmarshalTransferRequest(data)
	require.NoError(t, err)
	require.Equal(t, tr.ToSessionID, got.ToSessionID)
	require.Equal(t, tr.Payload, got.Payload)
	require.Equal(t, tr.TTL, got.TTL)
	require.Equal(t, tr.Sig.FromSessionID, got.Sig.FromSessionID)
	require.Equal(t, tr.Sig.Sig, got.Sig.Sig)
	require.Equal(t, tr.Sig.Salt, got.Sig.Salt)
}

func TestTransferResponseRoundTrip(t *testing.T) {
	resp := &TransferResponse{Result: true, DestSessionID: bytes.Repeat([]byte{0xAB}, 32)}
	data := resp.Marshal()
	got, err := UnmarshalTransferResponse(data)
	require.NoError(t, err)
	require.Equal(t, resp.Result, got.Result)
	require.Equal(t, resp.DestSessionID, got.DestSessionID)
}

func TestRoutingInfoRoundTripLeaf(t *testing.T) {
	count := uint32(42)
	ri := &RoutingInfo{
		SessionID: bytes.Repeat([]byte{0x09}, 32),
		NodeType:  NodeGateway,
		Count:     &count,
		KnownGatewaySessionIDs: [][]byte{
			bytes.Repeat([]byte{0x10}, 32),
		},
		GatewayState: 3,
		Position:     &Position3D{X: 1.5, Y: -2.25, Z: 0},
	}
	data := ri.Marshal()
	got, err := UnmarshalRoutingInfo(data)
	require.NoError(t, err)
	require.Equal(t, ri.SessionID, got.SessionID)
	require.Equal(t, ri.NodeType, got.NodeType)
	require.NotNil(t, got.Count)
	require.Equal(t, *ri.Count, *got.Count)
	require.Equal(t, ri.KnownGatewaySessionIDs, got.KnownGatewaySessionIDs)
	require.Equal(t, ri.GatewayState, got.GatewayState)
	require.Equal(t, ri.Position.X, got.Position.X)
	require.Equal(t, ri.Position.Y, got.Position.Y)
}

func TestRoutingInfoRoundTripSubtrees(t *testing.T) {
	leftCount := uint32(3)
	rightCount := uint32(5)
	ri := &RoutingInfo{
		NodeType: NodeTracker,
		Subtrees: []*RoutingInfo{
			{NodeType: NodeNormal, Count: &leftCount},
			{NodeType: NodeNormal, Count: &rightCount},
		},
	}
	data := ri.Marshal()
	got, err := UnmarshalRoutingInfo(data)
	require.NoError(t, err)
	require.Len(t, got.Subtrees, 2)
	require.Equal(t, *ri.Subtrees[0].Count, *got.Subtrees[0].Count)
	require.Equal(t, *ri.Subtrees[1].Count, *got.Subtrees[1].Count)
}
