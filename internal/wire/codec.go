package wire

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// Compression thresholds grounded on original_source/common/src/compress.rs:
// payloads shorter than minCompressLength are never worth the zlib framing
// overhead, and a compressed result is only kept if it actually shrank.
const (
	minCompressLength = 100
	compressionLevel  = 6
)

// compressIfSmaller zlib-compresses data at level 6 and returns the
// compressed bytes plus true only if doing so strictly reduced the size
// and data met the minimum length. Otherwise it returns data unchanged
// and false.
func compressIfSmaller(data []byte) ([]byte, bool) {
	if len(data) < minCompressLength {
		return data, false
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, compressionLevel)
	if err != nil {
		return data, false
	}
	if _, err := w.Write(data); err != nil {
		return data, false
	}
	if err := w.Close(); err != nil {
		return data, false
	}
	if buf.Len() >= len(data) {
		return data, false
	}
	return buf.Bytes(), true
}

// decompress inflates zlib-compressed data.
func decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("wire: zlib reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("wire: zlib inflate: %w", err)
	}
	return out, nil
}

// EncodePacket builds the wire bytes for an RpcPacket whose
// request/response param has already been populated with plaintext;
// the param is replaced in a copy of the message with its compressed
// form when that's smaller, and IsCompressed is set accordingly.
func EncodePacket(p *RpcPacket) []byte {
	out := *p
	switch {
	case out.Request != nil:
		req := *out.Request
		if c, ok := compressIfSmaller(req.Param); ok {
			req.Param = c
			out.IsCompressed = true
		}
		out.Request = &req
	case out.Response != nil:
		resp := *out.Response
		if c, ok := compressIfSmaller(resp.Param); ok {
			resp.Param = c
			out.IsCompressed = true
		}
		out.Response = &resp
	}
	return out.Marshal()
}

// DecodePacket parses wire bytes into an RpcPacket and transparently
// inflates the param if IsCompressed was set.
func DecodePacket(data []byte) (*RpcPacket, error) {
	p, err := UnmarshalRpcPacket(data)
	if err != nil {
		return nil, err
	}
	if !p.IsCompressed {
		return p, nil
	}
	switch {
	case p.Request != nil:
		plain, err := decompress(p.Request.Param)
		if err != nil {
			return nil, err
		}
		p.Request.Param = plain
	case p.Response != nil:
		plain, err := decompress(p.Response.Param)
		if err != nil {
			return nil, err
		}
		p.Response.Param = plain
	}
	p.IsCompressed = false
	return p, nil
}
