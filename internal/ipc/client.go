package ipc

import (
	"encoding/json"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client is a connection to the daemon's control socket. It is not meant to
// be shared across goroutines that close it independently.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the daemon listening on the unix socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: jsonrpc.NewClient(conn)}, nil
}

// Close releases the connection. Calls in flight fail with rpc.ErrShutdown.
func (c *Client) Close() error {
	if c == nil || c.rpc == nil {
		return nil
	}
	return c.rpc.Close()
}

// call issues ServiceName.method and decodes the reply into a fresh R.
func call[R any](c *Client, method string, req any) (*R, error) {
	resp := new(R)
	if err := c.rpc.Call(ServiceName+"."+method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Start asks the daemon to launch the worker.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{})
}

// Stop asks the daemon to stop the worker. The daemon itself keeps running.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Invoke forwards method and params to the worker. A worker-reported error
// arrives in the response; transport failures are returned as err.
func (c *Client) Invoke(method string, params json.RawMessage) (*InvokeResponse, error) {
	return call[InvokeResponse](c, "Invoke", InvokeRequest{Method: method, Params: params})
}

// Events fetches buffered events after req.Since, waiting up to
// req.WaitMillis when none are available yet.
func (c *Client) Events(req EventsRequest) (*EventsResponse, error) {
	return call[EventsResponse](c, "Events", req)
}

// History reads archived events, newest first.
func (c *Client) History(name string, limit int) (*HistoryResponse, error) {
	return call[HistoryResponse](c, "History", HistoryRequest{Name: name, Limit: limit})
}

func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
