package groupcall

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// participantsPath is the relay endpoint that admits a device into a call.
const participantsPath = "/v1/conference/participants"

type joinRequest struct {
	GroupID string `json:"groupId"`
}

type joinResponse struct {
	DemuxID *uint32 `json:"demuxId"`
}

func participantsURL(relayURL string) (string, error) {
	u, err := url.Parse(relayURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidRelayURL, relayURL)
	}
	return strings.TrimSuffix(u.String(), "/") + participantsPath, nil
}

func buildJoinRequest(endpoint string, groupID GroupID, proof []byte) (HTTPRequest, error) {
	body, err := json.Marshal(joinRequest{GroupID: groupID.String()})
	if err != nil {
		return HTTPRequest{}, fmt.Errorf("encode join request: %w", err)
	}
	return HTTPRequest{
		URL:    endpoint,
		Method: HTTPMethodPut,
		Headers: map[string]string{
			"Authorization": "Bearer " + base64.StdEncoding.EncodeToString(proof),
			"Content-Type":  "application/json",
		},
		Body: body,
	}, nil
}

func parseJoinResponse(body []byte) (DemuxID, error) {
	var resp joinResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.DemuxID == nil {
		return 0, fmt.Errorf("%w: missing demuxId", ErrMalformedResponse)
	}
	return DemuxID(*resp.DemuxID), nil
}
