package groupcall

// Observer receives group call requests and notifications. Every method is
// fire-and-forget; the client never waits on the result and results that
// arrive later are delivered through the Client methods.
type Observer interface {
	RequestMembershipProof(clientID ClientID)
	RequestGroupMembers(clientID ClientID)
	HandleConnectionStateChanged(clientID ClientID, state ConnectionState)
	HandleJoinStateChanged(clientID ClientID, state JoinState, localDemuxID DemuxID)
	HandleRemoteDevicesChanged(clientID ClientID, devices []RemoteDeviceState)
	HandleIncomingVideoTrack(clientID ClientID, demuxID DemuxID, track VideoTrack)
	HandleJoinedMembersChanged(clientID ClientID, members []UserID)
	HandleEnded(clientID ClientID, reason EndReason)
}

// HTTPMethod is the method of a proxied HTTP request.
type HTTPMethod uint8

const (
	HTTPMethodGet HTTPMethod = iota
	HTTPMethodPut
	HTTPMethodPost
	HTTPMethodDelete
)

// String returns the HTTP verb.
func (m HTTPMethod) String() string {
	switch m {
	case HTTPMethodGet:
		return "GET"
	case HTTPMethodPut:
		return "PUT"
	case HTTPMethodPost:
		return "POST"
	case HTTPMethodDelete:
		return "DELETE"
	default:
		return "GET"
	}
}

// HTTPRequest is a request proxied through the host network stack.
type HTTPRequest struct {
	URL     string
	Method  HTTPMethod
	Headers map[string]string
	Body    []byte
}

// RequestSender allocates request ids and issues proxied HTTP requests.
// The id keys the asynchronous completion.
type RequestSender interface {
	AllocateHTTPRequest(clientID ClientID) uint32
	SendHTTPRequest(requestID uint32, req HTTPRequest) error
}
