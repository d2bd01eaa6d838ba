// Package signaling implements C4 (client record), C5 (world record) and
// C6 (admission & registry): the concurrent per-session and per-world
// state the rest of the hub reads and writes. Grounded on the teacher's
// pion/webrtc wiring in dial.go, generalized from a client-initiated
// dial to a server-accepted session, and on
// original_source/hubserv/src/state.rs (ClientData/UrlData/State).
package signaling

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v3"

	"github.com/VerseEngine/verse-entrance-server/internal/sessionid"
	"github.com/VerseEngine/verse-entrance-server/internal/wire"
)

// ClientRecord is the per-session state described by spec.md section 3:
// an immutable identity/URL/peer-connection triple plus two mutable
// cells (the set-once data channel, and the mutex-guarded last
// published routing info).
type ClientRecord struct {
	SessionID sessionid.SessionId
	URL       string
	pc        *webrtc.PeerConnection

	dcOnce sync.Once
	dc     atomic.Pointer[webrtc.DataChannel]

	riMu sync.Mutex
	ri   *wire.RoutingInfo

	disposeOnce sync.Once
}

// NewClientRecord constructs a ClientRecord for an admitted session. The
// data channel is assigned later via SetDC, once pion delivers it.
func NewClientRecord(sid sessionid.SessionId, pc *webrtc.PeerConnection, url string) *ClientRecord {
	return &ClientRecord{SessionID: sid, URL: url, pc: pc}
}

// PeerConnection returns the owned peer connection.
func (c *ClientRecord) PeerConnection() *webrtc.PeerConnection { return c.pc }

// DataChannel returns the assigned data channel, or nil if SetDC has not
// been called yet.
func (c *ClientRecord) DataChannel() *webrtc.DataChannel { return c.dc.Load() }

// SetDC assigns the session's data channel. Only the first call has any
// effect; later calls are logged by the caller as programming errors
// (see spec.md section 9, "set-once mutable field") and are ignored here.
func (c *ClientRecord) SetDC(dc *webrtc.DataChannel) (assigned bool) {
	c.dcOnce.Do(func() {
		c.dc.Store(dc)
		assigned = true
	})
	return assigned
}

// AddICECandidate forwards an ICE candidate to the underlying peer
// connection.
func (c *ClientRecord) AddICECandidate(cand webrtc.ICECandidateInit) error {
	if err := c.pc.AddICECandidate(cand); err != nil {
		return fmt.Errorf("signaling: add ice candidate: %w", err)
	}
	return nil
}

// RoutingInfo returns this client's most recently published RoutingInfo,
// or nil if it has never published one.
func (c *ClientRecord) RoutingInfo() *wire.RoutingInfo {
	c.riMu.Lock()
	defer c.riMu.Unlock()
	return c.ri
}

// SetRoutingInfo replaces the client's published RoutingInfo wholesale.
func (c *ClientRecord) SetRoutingInfo(ri *wire.RoutingInfo) {
	c.riMu.Lock()
	c.ri = ri
	c.riMu.Unlock()
}

// SendRPCResponse wraps param into an RPC response envelope, encodes it
// (applying compression per internal/wire's rules) and sends it over the
// data channel. It returns false if no data channel has been assigned
// yet, matching spec.md section 4.4's "send_rpc_response ... returns
// false if the channel is not yet open" contract.
func (c *ClientRecord) SendRPCResponse(rpcID uint32, param []byte) bool {
	dc := c.dc.Load()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return false
	}
	data := wire.EncodePacket(&wire.RpcPacket{Response: &wire.RpcResponse{RpcID: rpcID, Param: param}})
	return dc.Send(data) == nil
}

// SendRPCRequest wraps param into an RPC request envelope, encodes it,
// and sends it over the data channel. Used by internal/swarm to forward
// a TRANSFER as a new request toward its destination session. Returns
// false if no data channel has been assigned yet or the send fails.
func (c *ClientRecord) SendRPCRequest(rpcID uint32, param []byte) bool {
	dc := c.dc.Load()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return false
	}
	data := wire.EncodePacket(&wire.RpcPacket{Request: &wire.RpcRequest{RpcID: rpcID, Param: param}})
	return dc.Send(data) == nil
}

// Dispose detaches all WebRTC callbacks (installing no-ops first, per
// spec.md section 9's reference-cycle note) and asynchronously closes
// the data channel and peer connection. Safe to call from any
// goroutine; safe to call more than once.
func (c *ClientRecord) Dispose() {
	c.disposeOnce.Do(func() {
		pc := c.pc
		dc := c.dc.Load()
		if dc != nil {
			dc.OnOpen(func() {})
			dc.OnClose(func() {})
			dc.OnError(func(error) {})
			dc.OnMessage(func(webrtc.DataChannelMessage) {})
		}
		if pc != nil {
			pc.OnICEConnectionStateChange(func(webrtc.ICEConnectionState) {})
			pc.OnConnectionStateChange(func(webrtc.PeerConnectionState) {})
			pc.OnDataChannel(func(*webrtc.DataChannel) {})
			pc.OnICECandidate(func(*webrtc.ICECandidate) {})
		}
		go func() {
			if dc != nil {
				_ = dc.Close()
			}
			if pc != nil {
				_ = pc.Close()
			}
		}()
	})
}
