// Package swarm implements C8: dispatch of in-band data-channel RPCs —
// keep-alive, addressed transfer, and routing-info exchange — grounded
// on original_source/hubserv/src/swarm.rs and rtc_api.rs's message
// handling, adapted to pion/webrtc's OnMessage callback shape the way
// the teacher wires OnOpen/OnError in dial.go.
package swarm

import (
	"github.com/VerseEngine/verse-entrance-server/internal/clusterhash"
	"github.com/VerseEngine/verse-entrance-server/internal/logx"
	"github.com/VerseEngine/verse-entrance-server/internal/routinginfo"
	"github.com/VerseEngine/verse-entrance-server/internal/sessionid"
	"github.com/VerseEngine/verse-entrance-server/internal/signaling"
	"github.com/VerseEngine/verse-entrance-server/internal/wire"
)

var _, warn, _ = logx.Tagged("swarm")

// Dispatcher handles every message arriving on a session's data
// channel.
type Dispatcher struct {
	registry          *signaling.Registry
	router            *clusterhash.Router
	maxRoutingResults int
}

// NewDispatcher builds a Dispatcher. router may be nil (single-node
// deployment, never reshards). maxRoutingResults <= 0 means unbounded.
func NewDispatcher(registry *signaling.Registry, router *clusterhash.Router, maxRoutingResults int) *Dispatcher {
	return &Dispatcher{registry: registry, router: router, maxRoutingResults: maxRoutingResults}
}

// Handle processes one raw data-channel message from cr. Ownership is
// re-validated before any message is served — including keep-alive —
// so a session a reshard moved elsewhere is drained instead of
// continuing to be served stale work, per spec.md section 4.8 and
// testable scenario S6. A decode failure at any depth is logged and
// discarded — the session is not torn down for a single bad frame, per
// spec.md section 4.2.
func (d *Dispatcher) Handle(cr *signaling.ClientRecord, raw []byte) {
	if !d.checkStillMyWork(cr) {
		return
	}

	pkt, err := wire.DecodePacket(raw)
	if err != nil {
		warn("decode rpc packet from %s: %v", cr.SessionID, err)
		return
	}
	if pkt.Request == nil {
		return
	}
	req := pkt.Request

	switch req.RpcID {
	case wire.RPCKeepAlive:
		return
	case wire.RPCSwarm:
		d.handleSwarm(cr, req)
	}
}

func (d *Dispatcher) handleSwarm(cr *signaling.ClientRecord, req *wire.RpcRequest) {
	sp, err := wire.UnmarshalSwarmPacket(req.Param)
	if err != nil {
		warn("decode swarm packet from %s: %v", cr.SessionID, err)
		return
	}
	if sp.Request == nil {
		return
	}
	sreq := sp.Request

	var respParam []byte
	switch sreq.RpcID {
	case wire.RPCIDTransfer:
		respParam = d.handleTransfer(cr, sreq.Param)
	case wire.RPCIDExchangeRoutingInfo:
		respParam = d.handleExchangeRoutingInfo(cr, sreq.Param)
		if respParam == nil {
			return
		}
	default:
		return
	}

	out := &wire.SwarmPacket{Response: &wire.SwarmResponse{RpcID: sreq.RpcID, Param: respParam}}
	cr.SendRPCResponse(wire.RPCSwarm, out.Marshal())
}

func (d *Dispatcher) handleTransfer(cr *signaling.ClientRecord, param []byte) []byte {
	treq, err := wire.UnmarshalTransferRequest(param)
	if err != nil {
		warn("decode transfer request from %s: %v", cr.SessionID, err)
		return (&wire.TransferResponse{Result: false}).Marshal()
	}

	from, err := sessionid.FromBytes(treq.Sig.FromSessionID)
	if err != nil {
		warn("transfer from %s: invalid from_session_id", cr.SessionID)
		return (&wire.TransferResponse{Result: false, DestSessionID: treq.ToSessionID}).Marshal()
	}
	sig := sessionid.SignatureSet{Signature: treq.Sig.Sig, Salt: treq.Sig.Salt}
	if err := sessionid.Verify(from, [][]byte{treq.ToSessionID, treq.Payload}, sig); err != nil {
		warn("transfer from %s: %v", cr.SessionID, err)
		return (&wire.TransferResponse{Result: false, DestSessionID: treq.ToSessionID}).Marshal()
	}

	if treq.TTL < 1 {
		return (&wire.TransferResponse{Result: false, DestSessionID: treq.ToSessionID}).Marshal()
	}

	destID, err := sessionid.FromBytes(treq.ToSessionID)
	result := false
	if err == nil {
		if dest, ok := d.registry.Get(destID); ok {
			fwd := &wire.TransferRequest{
				ToSessionID: treq.ToSessionID,
				Payload:     treq.Payload,
				TTL:         treq.TTL - 1,
				Sig:         treq.Sig,
			}
			sp := &wire.SwarmPacket{Request: &wire.SwarmRequest{RpcID: wire.RPCIDTransfer, Param: fwd.Marshal()}}
			result = dest.SendRPCRequest(wire.RPCSwarm, sp.Marshal())
		}
	}
	return (&wire.TransferResponse{Result: result, DestSessionID: treq.ToSessionID}).Marshal()
}

func (d *Dispatcher) handleExchangeRoutingInfo(cr *signaling.ClientRecord, param []byte) []byte {
	published, err := wire.UnmarshalRoutingInfo(param)
	if err != nil {
		warn("decode routing info from %s: %v", cr.SessionID, err)
		return nil
	}
	published.SessionID = append([]byte(nil), cr.SessionID[:]...)
	cr.SetRoutingInfo(routinginfo.NormalizePublished(published))

	w, ok := d.registry.World(cr.URL)
	if !ok {
		return (&wire.RoutingInfo{NodeType: wire.NodeTracker}).Marshal()
	}
	w.RefreshTreeIfDue(nil)
	tree := w.GetTree()
	if d.maxRoutingResults > 0 {
		tree = routinginfo.Sample(tree, d.maxRoutingResults)
	}
	return tree.Marshal()
}

// checkStillMyWork re-validates cluster ownership of cr's world,
// draining the session if a reshard moved it elsewhere, and reports
// whether the caller may keep serving it.
func (d *Dispatcher) checkStillMyWork(cr *signaling.ClientRecord) bool {
	if d.router == nil {
		return true
	}
	if d.router.IsMyWork(cr.URL) {
		return true
	}
	warn("session %s reassigned away from this node, draining", cr.SessionID)
	cr.Dispose()
	d.registry.Remove(cr.SessionID)
	return false
}
