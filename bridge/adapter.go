package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/signaling"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// ConnectionFactory creates native connection handles. *media.Engine
// implements it.
type ConnectionFactory interface {
	NewHandle(callID signaling.CallID, deviceID signaling.DeviceID, mediaType signaling.MediaType) (call.ConnectionHandle, error)
}

// Adapter is a call.Platform backed by a websocket link to the host.
type Adapter struct {
	conn    *websocket.Conn
	factory ConnectionFactory
	client  *http.Client

	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
	inflight  sync.WaitGroup

	mu       sync.Mutex
	mgr      *call.Manager
	relayURL string
}

// Dial connects to the host websocket at url.
func Dial(ctx context.Context, url string, factory ConnectionFactory, client *http.Client) (*Adapter, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial host: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "Dial",
		"url":      url,
	}).Info("Connected to host")
	return New(conn, factory, client), nil
}

// New wraps an established websocket connection. A nil client uses
// http.DefaultClient for proxied requests.
func New(conn *websocket.Conn, factory ConnectionFactory, client *http.Client) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{
		conn:    conn,
		factory: factory,
		client:  client,
		send:    make(chan Frame, sendBuffer),
		done:    make(chan struct{}),
	}
}

// Bind sets the manager that host frames are dispatched to.
func (a *Adapter) Bind(mgr *call.Manager) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mgr = mgr
}

// SetDefaultRelayURL sets the relay used by group_create frames that name
// none.
func (a *Adapter) SetDefaultRelayURL(url string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.relayURL = url
}

func (a *Adapter) defaultRelayURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.relayURL
}

func (a *Adapter) manager() (*call.Manager, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mgr == nil {
		return nil, ErrNotBound
	}
	return a.mgr, nil
}

// Run pumps frames until ctx is cancelled or the link closes. It returns nil
// after a cancellation or a clean close by the host.
func (a *Adapter) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer a.shutdown()
		return a.readPump()
	})
	g.Go(func() error { return a.writePump(gctx) })
	g.Go(func() error {
		select {
		case <-gctx.Done():
			a.shutdown()
		case <-a.done:
		}
		return nil
	})
	err := g.Wait()
	a.inflight.Wait()
	return err
}

// Close shuts the link down.
func (a *Adapter) Close() error {
	a.shutdown()
	return nil
}

func (a *Adapter) shutdown() {
	a.closeOnce.Do(func() {
		close(a.done)
		_ = a.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		_ = a.conn.Close()
	})
}

func (a *Adapter) closed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

func (a *Adapter) readPump() error {
	_ = a.conn.SetReadDeadline(time.Now().Add(pongWait))
	a.conn.SetPongHandler(func(string) error {
		return a.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var f Frame
		if err := a.conn.ReadJSON(&f); err != nil {
			if a.closed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			logrus.WithFields(logrus.Fields{
				"function": "readPump",
				"error":    err.Error(),
			}).Error("Host link read failed")
			return fmt.Errorf("read frame: %w", err)
		}
		a.handle(f)
	}
}

func (a *Adapter) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.done:
			return nil
		case f := <-a.send:
			_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := a.conn.WriteJSON(f); err != nil {
				if a.closed() {
					return nil
				}
				return fmt.Errorf("write %s frame: %w", f.Kind, err)
			}
		case <-ticker.C:
			_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := a.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if a.closed() {
					return nil
				}
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}

// enqueue hands a frame to the write pump.
func (a *Adapter) enqueue(f Frame) error {
	select {
	case <-a.done:
		return ErrClosed
	default:
	}
	select {
	case a.send <- f:
		return nil
	case <-a.done:
		return ErrClosed
	}
}

func (a *Adapter) emit(kind string, callID signaling.CallID, payload any) error {
	f, err := newFrame(kind, payload)
	if err != nil {
		return err
	}
	f.CallID = callID
	return a.enqueue(f)
}

// handle dispatches one host frame and reports failures back to the host.
func (a *Adapter) handle(f Frame) {
	err := a.dispatch(f)
	if err == nil {
		return
	}
	protocol := call.IsProtocolError(err)
	logger := logrus.WithFields(logrus.Fields{
		"function": "handle",
		"kind":     f.Kind,
		"frame_id": f.ID,
		"call_id":  f.CallID,
		"error":    err.Error(),
	})
	if protocol {
		logger.Info("Host frame dropped by call policy")
	} else {
		logger.Warn("Host frame failed")
	}
	reply, ferr := newFrame(KindError, ErrorPayload{Message: err.Error(), Protocol: protocol})
	if ferr != nil {
		return
	}
	reply.Ref = f.ID
	reply.CallID = f.CallID
	reply.ClientID = f.ClientID
	if qerr := a.enqueue(reply); qerr != nil && !errors.Is(qerr, ErrClosed) {
		logger.WithField("reply_error", qerr.Error()).Warn("Could not report failure to host")
	}
}
