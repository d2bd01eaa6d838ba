// Package entrance implements C7: the "enter" and "candidate" signaling
// operations, fed by verified SignedRequests. Peer-connection setup is
// grounded on the teacher's dial.go (pion/webrtc wiring style), adapted
// from a client dialing out to a server accepting an incoming offer.
package entrance

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/VerseEngine/verse-entrance-server/internal/apperr"
	"github.com/VerseEngine/verse-entrance-server/internal/clusterhash"
	"github.com/VerseEngine/verse-entrance-server/internal/logx"
	"github.com/VerseEngine/verse-entrance-server/internal/signaling"
)

var info, warn, _ = logx.Tagged("entrance")

// sdpSetupTimeout bounds offer->answer negotiation, per spec.md section 5.
const sdpSetupTimeout = 5 * time.Second

// MessageHandler is called with every byte message a session's data
// channel delivers (internal/swarm.Dispatcher.Handle satisfies this).
type MessageHandler func(cr *signaling.ClientRecord, data []byte)

// AccessLogFunc is invoked once, on the first transition of a peer
// connection to Connected, per spec.md section 4.7 step 4.
type AccessLogFunc func(r *http.Request, url string, worldClientCount int32)

// Handler serves the enter/candidate HTTP endpoints.
type Handler struct {
	Registry   *signaling.Registry
	Router     *clusterhash.Router // nil in single-node deployments
	GlobalCap  int32
	PerURLCap  int32
	OnMessage  MessageHandler
	AccessLog  AccessLogFunc
	ICEServers []string // advertised to clients in every offered PeerConnection

	rtcAPI *webrtc.API
}

func (h *Handler) rtcConfiguration() webrtc.Configuration {
	if len(h.ICEServers) == 0 {
		return webrtc.Configuration{}
	}
	return webrtc.Configuration{ICEServers: []webrtc.ICEServer{{URLs: h.ICEServers}}}
}

// NewHandler builds a Handler whose pion API is configured ICE-lite,
// UDP4-only, with multicast DNS disabled and (when publicIP is set) a
// 1:1 NAT mapping to it — the same knobs
// original_source/hubserv/src/main.rs's create_webrtc_api sets, minus
// the UDP socket mux (pion's default per-connection sockets are used
// instead of a shared mux).
func NewHandler(publicIP string) *Handler {
	se := webrtc.SettingEngine{}
	se.SetLite(true)
	se.SetICEMulticastDNSMode(webrtc.ICEMulticastDNSModeDisabled)
	se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	if publicIP != "" {
		_ = se.SetNAT1To1IPs([]string{publicIP}, webrtc.ICECandidateTypeHost)
	}
	return &Handler{rtcAPI: webrtc.NewAPI(webrtc.WithSettingEngine(se))}
}

type sdpJSON struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type enterPayload struct {
	URL string  `json:"url"`
	SDP sdpJSON `json:"sdp"`
}

type candidatePayload struct {
	URL string                  `json:"url"`
	SDP webrtc.ICECandidateInit `json:"sdp"`
}

type enterResponse struct {
	SDP sdpJSON `json:"sdp"`
}

// clusterDecision mirrors spec.md section 4.3's get_worker outcomes.
type clusterDecision int

const (
	decisionProceed clusterDecision = iota
	decisionRedirect
	decisionForbidden
)

// api returns the Handler's configured pion API, falling back to
// defaults for a Handler built by struct literal rather than NewHandler
// (as httpapi's tests do).
func (h *Handler) api() *webrtc.API {
	if h.rtcAPI != nil {
		return h.rtcAPI
	}
	return webrtc.NewAPI()
}

func (h *Handler) checkCluster(requestHost, worldURL string) (clusterDecision, string) {
	if h.Router == nil {
		return decisionProceed, ""
	}
	w := h.Router.GetWorker(worldURL)
	switch w.Kind {
	case clusterhash.WorkerMe:
		return decisionProceed, ""
	case clusterhash.WorkerOther:
		if h.Router.CanRedirect(requestHost) {
			return decisionRedirect, w.Host
		}
		return decisionForbidden, ""
	default: // WorkerNothing
		return decisionForbidden, ""
	}
}

// ServeEnter handles POST /enter.
func (h *Handler) ServeEnter(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, apperr.New(apperr.KindInvalidInput, "read body", err))
		return
	}
	sid, payloadStr, err := verifySignedRequest(body)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload enterPayload
	if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
		writeError(w, invalidPayload("decode enter payload"))
		return
	}
	worldURL := NormalizeURL(payload.URL)
	if worldURL == "" || payload.SDP.SDP == "" {
		writeError(w, invalidPayload("enter: empty url or sdp"))
		return
	}

	decision, redirectHost := h.checkCluster(r.Host, worldURL)
	switch decision {
	case decisionRedirect:
		http.Redirect(w, r, "https://"+redirectHost+"/enter", http.StatusTemporaryRedirect)
		return
	case decisionForbidden:
		writeError(w, apperr.New(apperr.KindClusterForbidden, "enter: cluster mismatch", nil))
		return
	}

	if !h.Registry.IsNewConnectionAvailable(worldURL, h.GlobalCap, h.PerURLCap) {
		writeError(w, apperr.New(apperr.KindCapacityExhausted, "enter: capacity exhausted", nil))
		return
	}

	pc, err := h.api().NewPeerConnection(h.rtcConfiguration())
	if err != nil {
		writeError(w, apperr.New(apperr.KindInternal, "enter: new peer connection", err))
		return
	}

	cr := signaling.NewClientRecord(sid, pc, worldURL)
	h.wireCallbacks(pc, cr, r)

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: payload.SDP.SDP}
	answer, err := negotiateAnswer(pc, offer)
	if err != nil {
		pc.Close()
		writeError(w, err)
		return
	}

	h.Registry.Remove(sid)
	if !h.Registry.Admit(cr, h.GlobalCap, h.PerURLCap) {
		pc.Close()
		writeError(w, apperr.New(apperr.KindCapacityExhausted, "enter: admission failed", nil))
		return
	}
	info("session %s entered %s", sid, worldURL)

	writeJSON(w, http.StatusOK, enterResponse{SDP: sdpJSON{Type: answer.Type.String(), SDP: answer.SDP}})
}

// ServeCandidate handles POST /candidate.
func (h *Handler) ServeCandidate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, apperr.New(apperr.KindInvalidInput, "read body", err))
		return
	}
	sid, payloadStr, err := verifySignedRequest(body)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload candidatePayload
	if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
		writeError(w, invalidPayload("decode candidate payload"))
		return
	}
	worldURL := NormalizeURL(payload.URL)
	if worldURL == "" || payload.SDP.Candidate == "" {
		writeError(w, unprocessable("candidate: empty url or candidate"))
		return
	}

	decision, redirectHost := h.checkCluster(r.Host, worldURL)
	switch decision {
	case decisionRedirect:
		http.Redirect(w, r, "https://"+redirectHost+"/candidate", http.StatusTemporaryRedirect)
		return
	case decisionForbidden:
		writeError(w, apperr.New(apperr.KindClusterForbidden, "candidate: cluster mismatch", nil))
		return
	}

	cr, ok := h.Registry.Get(sid)
	if !ok {
		writeError(w, apperr.New(apperr.KindNotFoundSession, "candidate: unknown session", nil))
		return
	}
	if err := cr.AddICECandidate(payload.SDP); err != nil {
		writeError(w, apperr.New(apperr.KindInvalidInput, "candidate: add ice candidate", err))
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) wireCallbacks(pc *webrtc.PeerConnection, cr *signaling.ClientRecord, r *http.Request) {
	var connectedOnce bool
	teardown := func() {
		cr.Dispose()
		h.Registry.Remove(cr.SessionID)
	}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		switch s {
		case webrtc.ICEConnectionStateDisconnected, webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateClosed:
			teardown()
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
			teardown()
		case webrtc.PeerConnectionStateConnected:
			if !connectedOnce {
				connectedOnce = true
				if h.AccessLog != nil {
					count := int32(0)
					if w, ok := h.Registry.World(cr.URL); ok {
						count = w.ClientCount()
					}
					h.AccessLog(r, cr.URL, count)
				}
			}
		}
	})
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnOpen(func() {
			if !cr.SetDC(dc) {
				warn("session %s: data channel already assigned", cr.SessionID)
			}
		})
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			if h.OnMessage != nil {
				h.OnMessage(cr, msg.Data)
			}
		})
	})
}

// negotiateAnswer runs the offer->answer setup with a wall-clock budget,
// per spec.md section 4.7 step 5.
func negotiateAnswer(pc *webrtc.PeerConnection, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sdpSetupTimeout)
	defer cancel()

	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, apperr.New(apperr.KindInvalidInput, "set remote description", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, "create answer", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return nil, apperr.New(apperr.KindInternal, "set local description", err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return nil, apperr.New(apperr.KindTimeout, "sdp setup", ctx.Err())
	}
	return pc.LocalDescription(), nil
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	warn("%v", err)
	http.Error(w, http.StatusText(kind.HTTPStatus()), kind.HTTPStatus())
}
