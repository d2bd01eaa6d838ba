// Package wire implements C2: protobuf message framing with an
// is_compressed bit and C8's swarm/RPC payload shapes. Rather than
// shipping protoc-generated bindings (out of scope per spec.md's size
// budget — "excluding generated protobuf bindings"), the messages are
// encoded/decoded directly against the wire format using
// google.golang.org/protobuf/encoding/protowire, the same low-level
// package n0remac-robot-webrtc pulls in transitively through its own
// protobuf stack. Field numbers below are the wire contract; there is no
// .proto source of truth to regenerate from, so they must not be
// renumbered without a compatible migration.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// RPC ids dispatched by internal/swarm (C8), grounded on the rpc ids
// referenced by spec.md section 4.8 and the original hub's ids.rs.
const (
	RPCKeepAlive            uint32 = 0
	RPCSwarm                uint32 = 1
	RPCIDTransfer           uint32 = 100
	RPCIDExchangeRoutingInfo uint32 = 101
)

// NodeType tags a RoutingInfo node, per spec.md section 3.
type NodeType int32

const (
	NodeNormal NodeType = iota
	NodeGateway
	NodeTracker
)

// --- RpcPacket / RpcRequest / RpcResponse --------------------------------

// RpcRequest is the request half of an RpcPacket.
type RpcRequest struct {
	RpcID uint32
	Param []byte
}

// RpcResponse is the response half of an RpcPacket.
type RpcResponse struct {
	RpcID uint32
	Param []byte
}

// RpcPacket is the outermost envelope exchanged over the data channel.
// IsCompressed is part of the wire format; decoders must tolerate but
// never re-emit a message where the flag is set but the payload turns
// out to be incompressible (legacy senders), per spec.md section 9.
type RpcPacket struct {
	IsCompressed bool
	Request      *RpcRequest
	Response     *RpcResponse
}

const (
	fieldRpcPacketIsCompressed = 1
	fieldRpcPacketRequest      = 2
	fieldRpcPacketResponse     = 3

	fieldRpcRequestID    = 1
	fieldRpcRequestParam = 2

	fieldRpcResponseID    = 1
	fieldRpcResponseParam = 2
)

func (m *RpcRequest) marshalAppend(b []byte) []byte {
	if m.RpcID != 0 {
		b = protowire.AppendTag(b, fieldRpcRequestID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.RpcID))
	}
	if len(m.Param) > 0 {
		b = protowire.AppendTag(b, fieldRpcRequestParam, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Param)
	}
	return b
}

func unmarshalRpcRequest(data []byte) (*RpcRequest, error) {
	m := &RpcRequest{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == fieldRpcRequestID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.RpcID = uint32(v)
			data = data[n:]
		case num == fieldRpcRequestParam && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.Param = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return m, nil
}

func (m *RpcResponse) marshalAppend(b []byte) []byte {
	if m.RpcID != 0 {
		b = protowire.AppendTag(b, fieldRpcResponseID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.RpcID))
	}
	if len(m.Param) > 0 {
		b = protowire.AppendTag(b, fieldRpcResponseParam, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Param)
	}
	return b
}

func unmarshalRpcResponse(data []byte) (*RpcResponse, error) {
	m := &RpcResponse{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == fieldRpcResponseID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.RpcID = uint32(v)
			data = data[n:]
		case num == fieldRpcResponseParam && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.Param = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return m, nil
}

// Marshal encodes the envelope as protobuf bytes (no compression
// applied — see EncodePacket in codec.go for the compressing variant).
func (p *RpcPacket) Marshal() []byte {
	var b []byte
	if p.IsCompressed {
		b = protowire.AppendTag(b, fieldRpcPacketIsCompressed, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	if p.Request != nil {
		b = protowire.AppendTag(b, fieldRpcPacketRequest, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Request.marshalAppend(nil))
	}
	if p.Response != nil {
		b = protowire.AppendTag(b, fieldRpcPacketResponse, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Response.marshalAppend(nil))
	}
	return b
}

// UnmarshalRpcPacket decodes an envelope. It does not itself decompress;
// callers use DecodePacket for the full decode+decompress contract.
func UnmarshalRpcPacket(data []byte) (*RpcPacket, error) {
	p := &RpcPacket{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == fieldRpcPacketIsCompressed && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			p.IsCompressed = v != 0
			data = data[n:]
		case num == fieldRpcPacketRequest && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			req, err := unmarshalRpcRequest(v)
			if err != nil {
				return nil, fmt.Errorf("wire: rpc request: %w", err)
			}
			p.Request = req
			data = data[n:]
		case num == fieldRpcPacketResponse && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			res, err := unmarshalRpcResponse(v)
			if err != nil {
				return nil, fmt.Errorf("wire: rpc response: %w", err)
			}
			p.Response = res
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return p, nil
}

// --- SwarmPacket / SwarmRequest / SwarmResponse --------------------------

const (
	fieldSwarmPacketRequest  = 1
	fieldSwarmPacketResponse = 2
)

// SwarmRequest is an inner request carried by RPCSwarm.
type SwarmRequest struct {
	RpcID uint32
	Param []byte
}

// SwarmResponse is an inner response carried by RPCSwarm.
type SwarmResponse struct {
	RpcID uint32
	Param []byte
}

// SwarmPacket wraps one of SwarmRequest/SwarmResponse.
type SwarmPacket struct {
	Request  *SwarmRequest
	Response *SwarmResponse
}

func (m *SwarmRequest) marshalAppend(b []byte) []byte {
	if m.RpcID != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.RpcID))
	}
	if len(m.Param) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Param)
	}
	return b
}

func unmarshalSwarmRequest(data []byte) (*SwarmRequest, error) {
	m := &SwarmRequest{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.RpcID = uint32(v)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.Param = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return m, nil
}

func (m *SwarmResponse) marshalAppend(b []byte) []byte {
	if m.RpcID != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.RpcID))
	}
	if len(m.Param) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Param)
	}
	return b
}

func unmarshalSwarmResponse(data []byte) (*SwarmResponse, error) {
	m := &SwarmResponse{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.RpcID = uint32(v)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.Param = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return m, nil
}

// Marshal encodes the swarm envelope as protobuf bytes.
func (p *SwarmPacket) Marshal() []byte {
	var b []byte
	if p.Request != nil {
		b = protowire.AppendTag(b, fieldSwarmPacketRequest, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Request.marshalAppend(nil))
	}
	if p.Response != nil {
		b = protowire.AppendTag(b, fieldSwarmPacketResponse, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Response.marshalAppend(nil))
	}
	return b
}

// UnmarshalSwarmPacket decodes a swarm envelope.
func UnmarshalSwarmPacket(data []byte) (*SwarmPacket, error) {
	p := &SwarmPacket{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == fieldSwarmPacketRequest && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			req, err := unmarshalSwarmRequest(v)
			if err != nil {
				return nil, fmt.Errorf("wire: swarm request: %w", err)
			}
			p.Request = req
			data = data[n:]
		case num == fieldSwarmPacketResponse && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			res, err := unmarshalSwarmResponse(v)
			if err != nil {
				return nil, fmt.Errorf("wire: swarm response: %w", err)
			}
			p.Response = res
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return p, nil
}
