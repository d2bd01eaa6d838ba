package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Signature is the (from_session_id, signature, salt) triple that
// accompanies a TransferRequest, matching the (SignatureSet, SessionId)
// pair internal/sessionid verifies.
type Signature struct {
	FromSessionID []byte
	Sig           []byte
	Salt          []byte
}

const (
	fieldSigFrom = 1
	fieldSigSig  = 2
	fieldSigSalt = 3
)

func (s *Signature) marshalAppend(b []byte) []byte {
	if len(s.FromSessionID) > 0 {
		b = protowire.AppendTag(b, fieldSigFrom, protowire.BytesType)
		b = protowire.AppendBytes(b, s.FromSessionID)
	}
	if len(s.Sig) > 0 {
		b = protowire.AppendTag(b, fieldSigSig, protowire.BytesType)
		b = protowire.AppendBytes(b, s.Sig)
	}
	if len(s.Salt) > 0 {
		b = protowire.AppendTag(b, fieldSigSalt, protowire.BytesType)
		b = protowire.AppendBytes(b, s.Salt)
	}
	return b
}

func unmarshalSignature(data []byte) (*Signature, error) {
	s := &Signature{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == fieldSigFrom && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			s.FromSessionID = append([]byte(nil), v...)
			data = data[n:]
		case num == fieldSigSig && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			s.Sig = append([]byte(nil), v...)
			data = data[n:]
		case num == fieldSigSalt && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			s.Salt = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return s, nil
}

// TransferRequest is C8's TRANSFER rpc param: an opaque end-to-end
// payload the hub relays without inspecting, plus a hop-count ttl and a
// signature binding the payload to the sender.
type TransferRequest struct {
	ToSessionID []byte
	Payload     []byte
	TTL         uint32
	Sig         *Signature
}

const (
	fieldTransferReqTo      = 1
	fieldTransferReqPayload = 2
	fieldTransferReqTTL     = 3
	fieldTransferReqSig     = 4
)

// Marshal encodes a TransferRequest.
func (m *TransferRequest) Marshal() []byte {
	var b []byte
	if len(m.ToSessionID) > 0 {
		b = protowire.AppendTag(b, fieldTransferReqTo, protowire.BytesType)
		b = protowire.AppendBytes(b, m.ToSessionID)
	}
	if len(m.Payload) > 0 {
		b = protowire.AppendTag(b, fieldTransferReqPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Payload)
	}
	if m.TTL != 0 {
		b = protowire.AppendTag(b, fieldTransferReqTTL, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.TTL))
	}
	if m.Sig != nil {
		b = protowire.AppendTag(b, fieldTransferReqSig, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Sig.marshalAppend(nil))
	}
	return b
}

// UnmarshalTransferRequest decodes a TransferRequest.
func UnmarshalTransferRequest(data []byte) (*TransferRequest, error) {
	m := &TransferRequest{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == fieldTransferReqTo && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.ToSessionID = append([]byte(nil), v...)
			data = data[n:]
		case num == fieldTransferReqPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.Payload = append([]byte(nil), v...)
			data = data[n:]
		case num == fieldTransferReqTTL && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.TTL = uint32(v)
			data = data[n:]
		case num == fieldTransferReqSig && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			sig, err := unmarshalSignature(v)
			if err != nil {
				return nil, fmt.Errorf("wire: transfer signature: %w", err)
			}
			m.Sig = sig
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

// TransferResponse is the best-effort delivery ack for a TRANSFER rpc.
type TransferResponse struct {
	Result        bool
	DestSessionID []byte
}

const (
	fieldTransferRespResult = 1
	fieldTransferRespDest   = 2
)

// Marshal encodes a TransferResponse.
func (m *TransferResponse) Marshal() []byte {
	var b []byte
	if m.Result {
		b = protowire.AppendTag(b, fieldTransferRespResult, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	if len(m.DestSessionID) > 0 {
		b = protowire.AppendTag(b, fieldTransferRespDest, protowire.BytesType)
		b = protowire.AppendBytes(b, m.DestSessionID)
	}
	return b
}

// UnmarshalTransferResponse decodes a TransferResponse.
func UnmarshalTransferResponse(data []byte) (*TransferResponse, error) {
	m := &TransferResponse{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == fieldTransferRespResult && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.Result = v != 0
			data = data[n:]
		case num == fieldTransferRespDest && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.DestSessionID = append([]byte(nil), v...)
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

// Position3D is a client's last-known world position, carried opaquely
// through RoutingInfo (internal/signaling never interprets it).
type Position3D struct {
	X, Y, Z float64
}

func (p *Position3D) marshalAppend(b []byte) []byte {
	if p.X != 0 {
		b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(p.X))
	}
	if p.Y != 0 {
		b = protowire.AppendTag(b, 2, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(p.Y))
	}
	if p.Z != 0 {
		b = protowire.AppendTag(b, 3, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(p.Z))
	}
	return b
}

func unmarshalPosition3D(data []byte) (*Position3D, error) {
	p := &Position3D{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		if typ != protowire.Fixed64Type {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
			continue
		}
		v, n := protowire.ConsumeFixed64(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		f := math.Float64frombits(v)
		switch num {
		case 1:
			p.X = f
		case 2:
			p.Y = f
		case 3:
			p.Z = f
		}
		data = data[n:]
	}
	return p, nil
}

// RoutingInfo is the recursive aggregation-tree node described by
// spec.md section 3: one peer session's published summary, or a world's
// Tracker root over its members' summaries, with the relation given
// either as a leaf Count or a list of child Subtrees.
type RoutingInfo struct {
	SessionID             []byte
	NodeType              NodeType
	Count                 *uint32
	Subtrees              []*RoutingInfo
	KnownGatewaySessionIDs [][]byte
	GatewayState          uint32
	Position              *Position3D
}

const (
	fieldRISessionID  = 1
	fieldRINodeType   = 2
	fieldRICount      = 3
	fieldRISubtrees   = 4
	fieldRIKnownGWIDs = 5
	fieldRIGWState    = 6
	fieldRIPosition   = 7
)

// Marshal encodes a RoutingInfo tree.
func (m *RoutingInfo) Marshal() []byte {
	var b []byte
	if len(m.SessionID) > 0 {
		b = protowire.AppendTag(b, fieldRISessionID, protowire.BytesType)
		b = protowire.AppendBytes(b, m.SessionID)
	}
	if m.NodeType != NodeNormal {
		b = protowire.AppendTag(b, fieldRINodeType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.NodeType))
	}
	if m.Count != nil {
		b = protowire.AppendTag(b, fieldRICount, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*m.Count))
	}
	for _, sub := range m.Subtrees {
		b = protowire.AppendTag(b, fieldRISubtrees, protowire.BytesType)
		b = protowire.AppendBytes(b, sub.Marshal())
	}
	for _, id := range m.KnownGatewaySessionIDs {
		b = protowire.AppendTag(b, fieldRIKnownGWIDs, protowire.BytesType)
		b = protowire.AppendBytes(b, id)
	}
	if m.GatewayState != 0 {
		b = protowire.AppendTag(b, fieldRIGWState, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.GatewayState))
	}
	if m.Position != nil {
		b = protowire.AppendTag(b, fieldRIPosition, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Position.marshalAppend(nil))
	}
	return b
}

// UnmarshalRoutingInfo decodes a RoutingInfo tree.
func UnmarshalRoutingInfo(data []byte) (*RoutingInfo, error) {
	m := &RoutingInfo{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == fieldRISessionID && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.SessionID = append([]byte(nil), v...)
			data = data[n:]
		case num == fieldRINodeType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.NodeType = NodeType(v)
			data = data[n:]
		case num == fieldRICount && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			c := uint32(v)
			m.Count = &c
			data = data[n:]
		case num == fieldRISubtrees && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			sub, err := UnmarshalRoutingInfo(v)
			if err != nil {
				return nil, fmt.Errorf("wire: routing subtree: %w", err)
			}
			m.Subtrees = append(m.Subtrees, sub)
			data = data[n:]
		case num == fieldRIKnownGWIDs && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.KnownGatewaySessionIDs = append(m.KnownGatewaySessionIDs, append([]byte(nil), v...))
			data = data[n:]
		case num == fieldRIGWState && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			m.GatewayState = uint32(v)
			data = data[n:]
		case num == fieldRIPosition && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			pos, err := unmarshalPosition3D(v)
			if err != nil {
				return nil, fmt.Errorf("wire: routing position: %w", err)
			}
			m.Position = pos
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
