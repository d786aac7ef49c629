package groupcall

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Default policy values for group call clients.
const (
	DefaultProofRefreshLimit = 3
	DefaultConnectTimeout    = 30 * time.Second
)

// Config holds group call client policy.
type Config struct {
	// ProofRefreshLimit bounds how many fresh membership proofs are requested
	// after authentication failures within one join. Zero makes the first
	// failure terminal.
	ProofRefreshLimit int

	// ConnectTimeout bounds the time spent in Connecting.
	ConnectTimeout time.Duration
}

// DefaultConfig returns the default group call policy.
func DefaultConfig() Config {
	return Config{
		ProofRefreshLimit: DefaultProofRefreshLimit,
		ConnectTimeout:    DefaultConnectTimeout,
	}
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Client is one relay-mediated group call session. All methods are safe for
// concurrent use; observer notifications are delivered after the internal
// lock is released.
type Client struct {
	id       ClientID
	groupID  GroupID
	endpoint string
	observer Observer
	requests RequestSender
	clock    Clock
	config   Config

	mu               sync.Mutex
	connState        ConnectionState
	joinState        JoinState
	localDemuxID     DemuxID
	roster           map[DemuxID]RemoteDeviceState
	groupMembers     []UserID
	joinedMembers    []UserID
	awaitingProof    bool
	proofRefreshes   int
	requestPending   bool
	pendingRequestID uint32
	connectStartedAt time.Time
}

// NewClient creates a disconnected client for the given group and relay.
func NewClient(id ClientID, groupID GroupID, relayURL string, observer Observer, requests RequestSender, clock Clock, config Config) (*Client, error) {
	endpoint, err := participantsURL(relayURL)
	if err != nil {
		return nil, err
	}
	if observer == nil || requests == nil || clock == nil {
		return nil, errors.New("observer, request sender and clock are required")
	}
	if config.ProofRefreshLimit < 0 {
		config.ProofRefreshLimit = 0
	}

	logrus.WithFields(logrus.Fields{
		"function":  "NewClient",
		"client_id": id,
		"group_id":  groupID.String(),
		"endpoint":  endpoint,
	}).Info("Created group call client")

	return &Client{
		id:       id,
		groupID:  append(GroupID(nil), groupID...),
		endpoint: endpoint,
		observer: observer,
		requests: requests,
		clock:    clock,
		config:   config,
		roster:   make(map[DemuxID]RemoteDeviceState),
	}, nil
}

// ID returns the client id.
func (c *Client) ID() ClientID { return c.id }

// GroupID returns a copy of the group id.
func (c *Client) GroupID() GroupID { return append(GroupID(nil), c.groupID...) }

// ConnectionState returns the current relay link state.
func (c *Client) ConnectionState() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// JoinState returns the current join state and the local demux id, which is
// zero unless joined.
func (c *Client) JoinState() (JoinState, DemuxID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joinState, c.localDemuxID
}

// RemoteDevices returns the roster ordered by demux id.
func (c *Client) RemoteDevices() []RemoteDeviceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rosterLocked()
}

// GroupMembers returns the last member list supplied by the host.
func (c *Client) GroupMembers() []UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneMembers(c.groupMembers)
}

// JoinedMembers returns the relay-confirmed member set.
func (c *Client) JoinedMembers() []UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneMembers(c.joinedMembers)
}

func (c *Client) rosterLocked() []RemoteDeviceState {
	out := make([]RemoteDeviceState, 0, len(c.roster))
	for _, state := range c.roster {
		out = append(out, state.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DemuxID < out[j].DemuxID })
	return out
}

type effects []func()

func (e *effects) add(f func()) { *e = append(*e, f) }

func (e effects) run() {
	for _, f := range e {
		f()
	}
}

// Join starts connecting to the relay. The membership proof and the group
// member list are requested from the observer.
func (c *Client) Join() error {
	c.mu.Lock()
	if c.connState != ConnectionStateNotConnected {
		state := c.connState
		c.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrAlreadyJoined, state)
	}

	var fx effects
	c.connState = ConnectionStateConnecting
	c.joinState = JoinStateJoining
	c.connectStartedAt = c.clock.Now()
	c.awaitingProof = true
	c.proofRefreshes = 0
	c.notifyStatesLocked(&fx)
	fx.add(func() { c.observer.RequestMembershipProof(c.id) })
	fx.add(func() { c.observer.RequestGroupMembers(c.id) })
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "Join",
		"client_id": c.id,
	}).Info("Joining group call")

	fx.run()
	return nil
}

// Leave ends the session from any state. Leaving a disconnected client is a
// no-op.
func (c *Client) Leave() {
	c.End(EndReasonUserLeft)
}

// End moves the client to NotConnected and NotJoined with the given reason.
func (c *Client) End(reason EndReason) {
	c.mu.Lock()
	var fx effects
	ended := c.endLocked(reason, &fx)
	c.mu.Unlock()

	if ended {
		logrus.WithFields(logrus.Fields{
			"function":  "End",
			"client_id": c.id,
			"reason":    reason.String(),
		}).Info("Group call client ended")
	}
	fx.run()
}

func (c *Client) endLocked(reason EndReason, fx *effects) bool {
	if c.connState == ConnectionStateNotConnected && c.joinState == JoinStateNotJoined {
		return false
	}
	hadRoster := len(c.roster) > 0
	c.connState = ConnectionStateNotConnected
	c.joinState = JoinStateNotJoined
	c.localDemuxID = 0
	c.roster = make(map[DemuxID]RemoteDeviceState)
	c.joinedMembers = nil
	c.awaitingProof = false
	c.requestPending = false
	c.notifyStatesLocked(fx)
	if hadRoster {
		fx.add(func() { c.observer.HandleRemoteDevicesChanged(c.id, []RemoteDeviceState{}) })
	}
	fx.add(func() { c.observer.HandleEnded(c.id, reason) })
	return true
}

func (c *Client) notifyStatesLocked(fx *effects) {
	conn, join, demux := c.connState, c.joinState, c.localDemuxID
	fx.add(func() { c.observer.HandleConnectionStateChanged(c.id, conn) })
	fx.add(func() { c.observer.HandleJoinStateChanged(c.id, join, demux) })
}

// SetMembershipProof delivers a proof requested earlier and issues the relay
// join request. Proofs that arrive when none is expected are discarded.
func (c *Client) SetMembershipProof(proof []byte) {
	c.mu.Lock()
	if !c.awaitingProof || c.connState == ConnectionStateNotConnected {
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":  "SetMembershipProof",
			"client_id": c.id,
		}).Info("Discarding membership proof, none expected")
		return
	}
	c.awaitingProof = false
	req, err := buildJoinRequest(c.endpoint, c.groupID, proof)
	if err != nil {
		var fx effects
		c.endLocked(EndReasonRelayError, &fx)
		c.mu.Unlock()
		fx.run()
		return
	}
	c.mu.Unlock()

	requestID := c.requests.AllocateHTTPRequest(c.id)

	c.mu.Lock()
	if c.connState == ConnectionStateNotConnected {
		c.mu.Unlock()
		return
	}
	c.requestPending = true
	c.pendingRequestID = requestID
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "SetMembershipProof",
		"client_id":  c.id,
		"request_id": requestID,
		"refreshes":  c.refreshes(),
	}).Debug("Sending relay join request")

	if err := c.requests.SendHTTPRequest(requestID, req); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "SetMembershipProof",
			"client_id":  c.id,
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Relay join request failed to send")
		c.HandleHTTPFailure(requestID)
	}
}

func (c *Client) refreshes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proofRefreshes
}

// SetGroupMembers stores the member list requested from the host. It is
// discarded when the client is not connecting or connected.
func (c *Client) SetGroupMembers(members []UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connState == ConnectionStateNotConnected {
		return
	}
	c.groupMembers = cloneMembers(members)
}

// HandleHTTPResponse completes the relay join request with the given id.
// It reports whether the response belonged to the pending request.
func (c *Client) HandleHTTPResponse(requestID uint32, status int, body []byte) bool {
	c.mu.Lock()
	if !c.requestPending || c.pendingRequestID != requestID {
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":   "HandleHTTPResponse",
			"client_id":  c.id,
			"request_id": requestID,
		}).Info("Discarding response for request that is no longer pending")
		return false
	}
	c.requestPending = false

	var fx effects
	switch {
	case status == http.StatusOK:
		demuxID, err := parseJoinResponse(body)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "HandleHTTPResponse",
				"client_id": c.id,
				"error":     err.Error(),
			}).Warn("Relay returned an unusable join response")
			c.endLocked(EndReasonRelayError, &fx)
			break
		}
		c.localDemuxID = demuxID
		c.connState = ConnectionStateConnected
		fx.add(func() { c.observer.HandleConnectionStateChanged(c.id, ConnectionStateConnected) })
		c.joinState = JoinStateJoined
		fx.add(func() { c.observer.HandleJoinStateChanged(c.id, JoinStateJoined, demuxID) })
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if c.proofRefreshes >= c.config.ProofRefreshLimit {
			c.endLocked(EndReasonAuthFailure, &fx)
			break
		}
		c.proofRefreshes++
		c.awaitingProof = true
		fx.add(func() { c.observer.RequestMembershipProof(c.id) })
	default:
		c.endLocked(EndReasonRelayError, &fx)
	}
	refreshes := c.proofRefreshes
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "HandleHTTPResponse",
		"client_id":  c.id,
		"request_id": requestID,
		"status":     status,
		"refreshes":  refreshes,
	}).Info("Relay join response handled")

	fx.run()
	return true
}

// HandleHTTPFailure completes the pending request with a transport failure.
func (c *Client) HandleHTTPFailure(requestID uint32) bool {
	c.mu.Lock()
	if !c.requestPending || c.pendingRequestID != requestID {
		c.mu.Unlock()
		return false
	}
	c.requestPending = false
	var fx effects
	c.endLocked(EndReasonRelayError, &fx)
	c.mu.Unlock()
	fx.run()
	return true
}

// OnRelayDisconnected reports a dropped relay link.
func (c *Client) OnRelayDisconnected() {
	c.transition(ConnectionStateConnected, ConnectionStateReconnecting)
}

// OnRelayReconnected reports a restored relay link.
func (c *Client) OnRelayReconnected() {
	c.transition(ConnectionStateReconnecting, ConnectionStateConnected)
}

func (c *Client) transition(from, to ConnectionState) {
	c.mu.Lock()
	if c.connState != from {
		c.mu.Unlock()
		return
	}
	c.connState = to
	c.mu.Unlock()
	c.observer.HandleConnectionStateChanged(c.id, to)
}

// SetRemoteDevices replaces the entire roster. Devices missing from the list
// are removed; the local demux id is never part of the roster.
func (c *Client) SetRemoteDevices(devices []RemoteDeviceState) {
	c.mu.Lock()
	if c.joinState != JoinStateJoined {
		c.mu.Unlock()
		return
	}
	roster := make(map[DemuxID]RemoteDeviceState, len(devices))
	for _, d := range devices {
		if d.DemuxID == c.localDemuxID {
			continue
		}
		roster[d.DemuxID] = d.clone()
	}
	c.roster = roster
	snapshot := c.rosterLocked()
	c.mu.Unlock()
	c.observer.HandleRemoteDevicesChanged(c.id, snapshot)
}

// UpdateRemoteDevice replaces the state of one device wholesale, adding it
// when it is new.
func (c *Client) UpdateRemoteDevice(state RemoteDeviceState) {
	c.mu.Lock()
	if c.joinState != JoinStateJoined || state.DemuxID == c.localDemuxID {
		c.mu.Unlock()
		return
	}
	c.roster[state.DemuxID] = state.clone()
	snapshot := c.rosterLocked()
	c.mu.Unlock()
	c.observer.HandleRemoteDevicesChanged(c.id, snapshot)
}

// RemoveRemoteDevice drops one device from the roster.
func (c *Client) RemoveRemoteDevice(demuxID DemuxID) {
	c.mu.Lock()
	if _, ok := c.roster[demuxID]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.roster, demuxID)
	snapshot := c.rosterLocked()
	c.mu.Unlock()
	c.observer.HandleRemoteDevicesChanged(c.id, snapshot)
}

// OnIncomingVideoTrack routes a track to the host. Tracks for demux ids not
// in the roster are dropped and false is returned.
func (c *Client) OnIncomingVideoTrack(demuxID DemuxID, track VideoTrack) bool {
	c.mu.Lock()
	_, ok := c.roster[demuxID]
	c.mu.Unlock()
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function":  "OnIncomingVideoTrack",
			"client_id": c.id,
			"demux_id":  demuxID,
		}).Info("Dropping video track for participant not in roster")
		return false
	}
	c.observer.HandleIncomingVideoTrack(c.id, demuxID, track)
	return true
}

// SetJoinedMembers records the relay-confirmed member set and notifies the
// observer when it changed.
func (c *Client) SetJoinedMembers(members []UserID) {
	c.mu.Lock()
	if c.connState == ConnectionStateNotConnected || sameMembers(c.joinedMembers, members) {
		c.mu.Unlock()
		return
	}
	c.joinedMembers = cloneMembers(members)
	snapshot := cloneMembers(members)
	c.mu.Unlock()
	c.observer.HandleJoinedMembersChanged(c.id, snapshot)
}

// Tick ends a client that stayed in Connecting longer than the connect
// timeout.
func (c *Client) Tick(now time.Time) {
	c.mu.Lock()
	if c.connState != ConnectionStateConnecting || now.Sub(c.connectStartedAt) <= c.config.ConnectTimeout {
		c.mu.Unlock()
		return
	}
	var fx effects
	c.endLocked(EndReasonTimeout, &fx)
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "Tick",
		"client_id": c.id,
		"timeout":   c.config.ConnectTimeout,
	}).Warn("Group call connect timed out")
	fx.run()
}

// OnRemovedFromCall ends the session after the relay removed the local
// device from the call.
func (c *Client) OnRemovedFromCall() error {
	return c.endFromRelay(EndReasonKicked)
}

// OnRelayError ends the session after an unrecoverable relay failure.
func (c *Client) OnRelayError() error {
	return c.endFromRelay(EndReasonRelayError)
}

func (c *Client) endFromRelay(reason EndReason) error {
	c.mu.Lock()
	if c.connState == ConnectionStateNotConnected {
		c.mu.Unlock()
		return ErrNotJoined
	}
	var fx effects
	c.endLocked(reason, &fx)
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "endFromRelay",
		"client_id": c.id,
		"reason":    reason.String(),
	}).Warn("Relay ended group call session")
	fx.run()
	return nil
}
