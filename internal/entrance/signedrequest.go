package entrance

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/VerseEngine/verse-entrance-server/internal/apperr"
	"github.com/VerseEngine/verse-entrance-server/internal/sessionid"
)

// signedRequestJSON is the HTTP body shape from spec.md section 6:
// SignedRequest{session_id, sign, payload}.
type signedRequestJSON struct {
	SessionID string          `json:"session_id"`
	Sign      signatureJSON   `json:"sign"`
	Payload   string          `json:"payload"`
}

type signatureJSON struct {
	Signature string `json:"signature"`
	Salt      string `json:"salt"`
}

// verifySignedRequest decodes body, verifies the signature covers the
// raw payload string bytes, and returns the session id plus the
// still-undecoded payload JSON string. No field of payload may be read
// by a caller before this returns successfully, per spec.md section 4.1.
func verifySignedRequest(body []byte) (sessionid.SessionId, string, error) {
	var sr signedRequestJSON
	if err := json.Unmarshal(body, &sr); err != nil {
		return sessionid.SessionId{}, "", apperr.New(apperr.KindInvalidInput, "decode signed request", err)
	}
	sid, err := sessionid.Parse(sr.SessionID)
	if err != nil {
		return sessionid.SessionId{}, "", apperr.New(apperr.KindInvalidInput, "parse session id", err)
	}
	sigBytes, err := base64.StdEncoding.DecodeString(sr.Sign.Signature)
	if err != nil {
		return sessionid.SessionId{}, "", apperr.New(apperr.KindInvalidInput, "decode signature", err)
	}
	saltBytes, err := base64.StdEncoding.DecodeString(sr.Sign.Salt)
	if err != nil {
		return sessionid.SessionId{}, "", apperr.New(apperr.KindInvalidInput, "decode salt", err)
	}
	sigSet := sessionid.SignatureSet{Signature: sigBytes, Salt: saltBytes}
	if err := sessionid.Verify(sid, [][]byte{[]byte(sr.Payload)}, sigSet); err != nil {
		return sessionid.SessionId{}, "", apperr.New(apperr.KindSignatureInvalid, "verify signed request", err)
	}
	return sid, sr.Payload, nil
}

func invalidPayload(op string) error {
	return apperr.New(apperr.KindInvalidInput, op, fmt.Errorf("malformed payload"))
}

// unprocessable marks a well-formed payload whose fields are semantically
// empty — spec.md section 6's 422 "unprocessable (candidate-only)" case.
func unprocessable(op string) error {
	return apperr.New(apperr.KindUnprocessable, op, fmt.Errorf("empty field"))
}
