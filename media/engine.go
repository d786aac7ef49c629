package media

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/signaling"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

// Events receives native engine reports. *call.Manager implements it.
type Events interface {
	OnLocalIceCandidates(callID signaling.CallID, deviceID signaling.DeviceID, candidates []signaling.IceCandidate) error
	OnConnectionMediaConnected(callID signaling.CallID, deviceID signaling.DeviceID) error
	OnConnectionMediaDisconnected(callID signaling.CallID, deviceID signaling.DeviceID) error
	OnConnectionFailed(callID signaling.CallID, deviceID signaling.DeviceID) error
	OnIncomingMediaStream(callID signaling.CallID, deviceID signaling.DeviceID, stream call.MediaStream) error
	OnRemoteVideoStatus(callID signaling.CallID, deviceID signaling.DeviceID, enabled bool) error
}

// Config configures the engine.
type Config struct {
	// ICEServers are STUN or TURN urls.
	ICEServers []string

	// MaxBitrateBps is advertised in every parameter block.
	MaxBitrateBps uint64

	// VideoIdleTimeout is the silence after which remote video counts as
	// disabled. Zero means DefaultVideoIdleTimeout.
	VideoIdleTimeout time.Duration
}

// Engine creates PeerConnection-backed connection handles.
type Engine struct {
	api        *webrtc.API
	rtcConfig  webrtc.Configuration
	maxBitrate uint64
	videoIdle  time.Duration

	mu       sync.Mutex
	events   Events
	sessions map[signaling.CallID]*session
	closed   bool
}

// NewEngine creates an engine with the default pion codecs registered.
func NewEngine(cfg Config) (*Engine, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	rtcConfig := webrtc.Configuration{}
	if len(cfg.ICEServers) > 0 {
		rtcConfig.ICEServers = []webrtc.ICEServer{{URLs: append([]string(nil), cfg.ICEServers...)}}
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewEngine",
		"ice_servers": len(cfg.ICEServers),
	}).Info("Media engine created")

	videoIdle := cfg.VideoIdleTimeout
	if videoIdle <= 0 {
		videoIdle = DefaultVideoIdleTimeout
	}

	return &Engine{
		api:        webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine)),
		rtcConfig:  rtcConfig,
		maxBitrate: cfg.MaxBitrateBps,
		videoIdle:  videoIdle,
		sessions:   make(map[signaling.CallID]*session),
	}, nil
}

// Attach sets the sink of engine events. Events raised before Attach are
// dropped.
func (e *Engine) Attach(events Events) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = events
}

func (e *Engine) sink() Events {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events
}

// NewHandle returns a handle for one device leg of a call. Legs of the same
// call share a PeerConnection.
func (e *Engine) NewHandle(callID signaling.CallID, deviceID signaling.DeviceID, mediaType signaling.MediaType) (call.ConnectionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	s, ok := e.sessions[callID]
	if !ok {
		var err error
		if s, err = e.newSessionLocked(callID, mediaType); err != nil {
			return nil, err
		}
		e.sessions[callID] = s
	}
	s.attach(deviceID)
	return &Handle{session: s, deviceID: deviceID}, nil
}

// Sessions returns the number of open PeerConnections.
func (e *Engine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Close closes every PeerConnection. Handles created earlier fail afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	sessions := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.sessions = make(map[signaling.CallID]*session)
	e.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Engine) forget(s *session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessions[s.callID] == s {
		delete(e.sessions, s.callID)
	}
}

func (e *Engine) newSessionLocked(callID signaling.CallID, mediaType signaling.MediaType) (*session, error) {
	pc, err := e.api.NewPeerConnection(e.rtcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	publicKey, err := newPublicKey()
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("failed to create key: %w", err)
	}
	s := &session{
		engine:    e,
		callID:    callID,
		mediaType: mediaType,
		pc:        pc,
		publicKey: publicKey,
		legs:      make(map[signaling.DeviceID]bool),
	}

	pc.OnICECandidate(s.onCandidate)
	pc.OnICEConnectionStateChange(s.onICEState)
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.onTrack(track)
	})
	return s, nil
}

// session is one PeerConnection shared by the legs of a call.
type session struct {
	engine    *Engine
	callID    signaling.CallID
	mediaType signaling.MediaType
	pc        *webrtc.PeerConnection
	publicKey []byte

	mu        sync.Mutex
	legs      map[signaling.DeviceID]bool
	responder signaling.DeviceID
	offer     *signaling.Offer
	closed    bool
}

func (s *session) attach(deviceID signaling.DeviceID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legs[deviceID] = true
}

// release drops one leg and closes the PeerConnection with the last one.
func (s *session) release(deviceID signaling.DeviceID) error {
	s.mu.Lock()
	delete(s.legs, deviceID)
	last := len(s.legs) == 0
	s.mu.Unlock()
	if !last {
		return nil
	}
	s.engine.forget(s)
	return s.close()
}

func (s *session) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "session.close",
		"call_id":  s.callID,
	}).Debug("Closing peer connection")
	return s.pc.Close()
}

// targets returns the legs an engine event concerns: the responder once
// known, otherwise every live leg.
func (s *session) targets() []signaling.DeviceID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.responder != 0 {
		return []signaling.DeviceID{s.responder}
	}
	out := make([]signaling.DeviceID, 0, len(s.legs))
	for id := range s.legs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *session) setResponder(deviceID signaling.DeviceID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = deviceID
}

func (s *session) onCandidate(candidate *webrtc.ICECandidate) {
	if candidate == nil {
		return
	}
	events := s.engine.sink()
	if events == nil {
		return
	}
	cand, err := signaling.IceCandidateFromSDP(candidate.ToJSON().Candidate)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "onCandidate",
			"call_id":  s.callID,
			"error":    err.Error(),
		}).Warn("Dropping unusable local candidate")
		return
	}
	for _, deviceID := range s.targets() {
		if err := events.OnLocalIceCandidates(s.callID, deviceID, []signaling.IceCandidate{cand}); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "onCandidate",
				"call_id":   s.callID,
				"device_id": deviceID,
				"error":     err.Error(),
			}).Debug("Local candidate not routed")
		}
	}
}

func (s *session) onICEState(state webrtc.ICEConnectionState) {
	events := s.engine.sink()
	if events == nil {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "onICEState",
		"call_id":  s.callID,
		"state":    state.String(),
	}).Info("ICE connection state changed")

	var report func(signaling.CallID, signaling.DeviceID) error
	switch state {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		report = events.OnConnectionMediaConnected
	case webrtc.ICEConnectionStateDisconnected:
		report = events.OnConnectionMediaDisconnected
	case webrtc.ICEConnectionStateFailed:
		report = events.OnConnectionFailed
	default:
		return
	}
	for _, deviceID := range s.targets() {
		if err := report(s.callID, deviceID); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "onICEState",
				"call_id":   s.callID,
				"device_id": deviceID,
				"state":     state.String(),
				"error":     err.Error(),
			}).Debug("ICE state not applied")
		}
	}
}

func (s *session) onTrack(track *webrtc.TrackRemote) {
	events := s.engine.sink()
	if events == nil {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "onTrack",
		"call_id":  s.callID,
		"kind":     track.Kind().String(),
		"codec":    track.Codec().MimeType,
	}).Info("Remote track received")
	for _, deviceID := range s.targets() {
		if err := events.OnIncomingMediaStream(s.callID, deviceID, track); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "onTrack",
				"call_id":   s.callID,
				"device_id": deviceID,
				"error":     err.Error(),
			}).Debug("Remote track not routed")
		}
	}
	if track.Kind() != webrtc.RTPCodecTypeVideo {
		return
	}
	read := func() error {
		_, _, err := track.ReadRTP()
		return err
	}
	go watchVideo(read, s.engine.videoIdle, func(enabled bool) {
		s.reportVideo(events, enabled)
	})
}

func (s *session) reportVideo(events Events, enabled bool) {
	for _, deviceID := range s.targets() {
		if err := events.OnRemoteVideoStatus(s.callID, deviceID, enabled); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "reportVideo",
				"call_id":   s.callID,
				"device_id": deviceID,
				"enabled":   enabled,
				"error":     err.Error(),
			}).Debug("Remote video status not applied")
		}
	}
}
