package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/yamux"

	"github.com/waymark-dev/waymark/internal/engine"
	"github.com/waymark-dev/waymark/internal/protocol"
)

// Client connects the CLI (or any other process) to a running bridge
// daemon. Calls are synchronous: one yamux stream per request.
type Client struct {
	url     string
	session *yamux.Session
	nextID  atomic.Int64
}

func NewClient(url string) *Client {
	return &Client{url: url}
}

func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	session, err := yamux.Client(newWSConn(conn), nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("yamux client: %w", err)
	}
	c.session = session
	return nil
}

func (c *Client) Close() {
	if c.session != nil {
		c.session.Close()
	}
}

// call sends one request on a fresh stream and decodes the response
// payload into out.
func (c *Client) call(msgType string, payload interface{}, out interface{}) error {
	stream, err := c.session.Open()
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	req := protocol.RPCMessage{
		ID:      c.nextID.Add(1),
		Type:    msgType,
		Payload: protocol.EncodeRPC(payload),
	}
	if err := json.NewEncoder(stream).Encode(req); err != nil {
		return err
	}

	var resp protocol.RPCMessage
	if err := json.NewDecoder(stream).Decode(&resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("bridge: %s", resp.Error)
	}
	if out != nil {
		return protocol.DecodeRPC(resp.Payload, out)
	}
	return nil
}

func (c *Client) Start(templatePath string) (*protocol.StatusResponse, error) {
	var resp protocol.StatusResponse
	err := c.call(protocol.TypeStart, protocol.StartRequest{TemplatePath: templatePath}, &resp)
	return &resp, err
}

func (c *Client) Advance(instanceID, output string) (*protocol.StatusResponse, error) {
	var resp protocol.StatusResponse
	err := c.call(protocol.TypeAdvance, protocol.AdvanceRequest{InstanceID: instanceID, Output: output}, &resp)
	return &resp, err
}

func (c *Client) SetTasks(instanceID, loopID string, tasks []engine.Task) (*protocol.StatusResponse, error) {
	var resp protocol.StatusResponse
	err := c.call(protocol.TypeSetTasks, protocol.SetTasksRequest{InstanceID: instanceID, LoopID: loopID, Tasks: tasks}, &resp)
	return &resp, err
}

func (c *Client) Status(instanceID string) (*protocol.StatusResponse, error) {
	var resp protocol.StatusResponse
	err := c.call(protocol.TypeStatus, protocol.InstanceRequest{InstanceID: instanceID}, &resp)
	return &resp, err
}

func (c *Client) Context(instanceID string) (*protocol.ContextResponse, error) {
	var resp protocol.ContextResponse
	err := c.call(protocol.TypeContext, protocol.InstanceRequest{InstanceID: instanceID}, &resp)
	return &resp, err
}

func (c *Client) RegisterArtefacts(instanceID string, paths []string) (*protocol.StatusResponse, error) {
	var resp protocol.StatusResponse
	err := c.call(protocol.TypeArtefacts, protocol.ArtefactsRequest{InstanceID: instanceID, Paths: paths}, &resp)
	return &resp, err
}

func (c *Client) SetSummary(instanceID, summary string) (*protocol.StatusResponse, error) {
	var resp protocol.StatusResponse
	err := c.call(protocol.TypeSummary, protocol.SummaryRequest{InstanceID: instanceID, Summary: summary}, &resp)
	return &resp, err
}

func (c *Client) List() (*protocol.ListResponse, error) {
	var resp protocol.ListResponse
	err := c.call(protocol.TypeList, nil, &resp)
	return &resp, err
}
