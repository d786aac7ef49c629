package bridge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/opd-ai/callcore/groupcall"
	"github.com/opd-ai/callcore/limits"
	"github.com/sirupsen/logrus"
)

// SendHTTPRequest implements call.Platform. The request runs in the
// background and its outcome is delivered to the bound manager.
func (a *Adapter) SendHTTPRequest(requestID uint32, req groupcall.HTTPRequest) error {
	if a.closed() {
		return ErrClosed
	}
	httpReq, err := http.NewRequestWithContext(context.Background(), req.Method.String(), req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return fmt.Errorf("build http request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.complete(requestID, httpReq)
	}()
	return nil
}

func (a *Adapter) complete(requestID uint32, req *http.Request) {
	logger := logrus.WithFields(logrus.Fields{
		"function":   "complete",
		"request_id": requestID,
		"method":     req.Method,
		"url":        req.URL.String(),
	})
	mgr, err := a.manager()
	if err != nil {
		logger.Warn("Dropping HTTP completion, no manager bound")
		return
	}

	resp, err := a.client.Do(req)
	if err != nil {
		logger.WithField("error", err.Error()).Warn("Proxied HTTP request failed")
		_ = mgr.HTTPRequestFailed(requestID)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limits.MaxHTTPBody+1))
	if err != nil || len(body) > limits.MaxHTTPBody {
		logger.Warn("Proxied HTTP response unreadable or too large")
		_ = mgr.HTTPRequestFailed(requestID)
		return
	}
	logger.WithField("status", resp.StatusCode).Debug("Proxied HTTP request completed")
	_ = mgr.ReceivedHTTPResponse(requestID, resp.StatusCode, body)
}
