// Package bridge lets other processes (an editor extension, a remote
// shell) drive workflow instances over a websocket. Each client
// connection carries a yamux session; every request opens its own
// stream, so slow calls never block each other.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/yamux"

	"github.com/waymark-dev/waymark/internal/engine"
	"github.com/waymark-dev/waymark/internal/instance"
	"github.com/waymark-dev/waymark/internal/protocol"
)

// Server exposes one workspace's instance manager over websocket+yamux.
type Server struct {
	manager  *instance.Manager
	upgrader websocket.Upgrader
	addr     string
}

func NewServer(addr string, manager *instance.Manager) *Server {
	return &Server{
		addr:    addr,
		manager: manager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	server := &http.Server{Addr: s.addr, Handler: mux}

	log.Printf("Bridge listening on %s...", s.addr)

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}

	session, err := yamux.Server(newWSConn(conn), nil)
	if err != nil {
		log.Printf("Yamux session failed: %v", err)
		conn.Close()
		return
	}
	defer session.Close()

	for {
		stream, err := session.Accept()
		if err != nil {
			if err != io.EOF {
				log.Printf("Client session closed: %v", err)
			}
			return
		}
		go s.handleStream(stream)
	}
}

func (s *Server) handleStream(stream io.ReadWriteCloser) {
	defer stream.Close()

	dec := json.NewDecoder(stream)
	enc := json.NewEncoder(stream)

	for {
		var msg protocol.RPCMessage
		if err := dec.Decode(&msg); err != nil {
			if err != io.EOF {
				log.Printf("Bad request frame: %v", err)
			}
			return
		}

		resp := s.dispatch(msg)
		if err := enc.Encode(resp); err != nil {
			log.Printf("Failed to write response: %v", err)
			return
		}
	}
}

func (s *Server) dispatch(msg protocol.RPCMessage) protocol.RPCMessage {
	payload, err := s.handle(msg)
	resp := protocol.RPCMessage{ID: msg.ID, Type: protocol.TypeResponse}
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Payload = protocol.EncodeRPC(payload)
	return resp
}

func (s *Server) handle(msg protocol.RPCMessage) (interface{}, error) {
	switch msg.Type {
	case protocol.TypeStart:
		var req protocol.StartRequest
		if err := protocol.DecodeRPC(msg.Payload, &req); err != nil {
			return nil, err
		}
		id, snap, err := s.manager.Start(req.TemplatePath)
		if err != nil {
			return nil, err
		}
		return s.statusResponse(id, snap)

	case protocol.TypeAdvance:
		var req protocol.AdvanceRequest
		if err := protocol.DecodeRPC(msg.Payload, &req); err != nil {
			return nil, err
		}
		snap, err := s.manager.Advance(req.InstanceID, req.Output)
		if err != nil {
			return nil, err
		}
		return s.statusResponse(req.InstanceID, snap)

	case protocol.TypeSetTasks:
		var req protocol.SetTasksRequest
		if err := protocol.DecodeRPC(msg.Payload, &req); err != nil {
			return nil, err
		}
		snap, err := s.manager.SetTasks(req.InstanceID, req.LoopID, req.Tasks)
		if err != nil {
			return nil, err
		}
		return s.statusResponse(req.InstanceID, snap)

	case protocol.TypeStatus:
		var req protocol.InstanceRequest
		if err := protocol.DecodeRPC(msg.Payload, &req); err != nil {
			return nil, err
		}
		name, snap, err := s.manager.Status(req.InstanceID)
		if err != nil {
			return nil, err
		}
		return &protocol.StatusResponse{InstanceID: req.InstanceID, Template: name, Snapshot: snap}, nil

	case protocol.TypeContext:
		var req protocol.InstanceRequest
		if err := protocol.DecodeRPC(msg.Payload, &req); err != nil {
			return nil, err
		}
		outputs, err := s.manager.Context(req.InstanceID)
		if err != nil {
			return nil, err
		}
		return &protocol.ContextResponse{InstanceID: req.InstanceID, Outputs: outputs}, nil

	case protocol.TypeArtefacts:
		var req protocol.ArtefactsRequest
		if err := protocol.DecodeRPC(msg.Payload, &req); err != nil {
			return nil, err
		}
		snap, err := s.manager.RegisterArtefacts(req.InstanceID, req.Paths)
		if err != nil {
			return nil, err
		}
		return s.statusResponse(req.InstanceID, snap)

	case protocol.TypeSummary:
		var req protocol.SummaryRequest
		if err := protocol.DecodeRPC(msg.Payload, &req); err != nil {
			return nil, err
		}
		snap, err := s.manager.SetSummary(req.InstanceID, req.Summary)
		if err != nil {
			return nil, err
		}
		return s.statusResponse(req.InstanceID, snap)

	case protocol.TypeList:
		docs, err := s.manager.List()
		if err != nil {
			return nil, err
		}
		resp := &protocol.ListResponse{}
		for _, doc := range docs {
			resp.Instances = append(resp.Instances, protocol.InstanceInfo{
				InstanceID: doc.ID,
				Template:   doc.TemplatePath,
				Status:     doc.State.Status,
				StepID:     doc.State.StepID,
			})
		}
		return resp, nil
	}

	return nil, fmt.Errorf("unknown request type %q", msg.Type)
}

func (s *Server) statusResponse(id string, snap engine.Snapshot) (*protocol.StatusResponse, error) {
	name, _, err := s.manager.Status(id)
	if err != nil {
		return nil, err
	}
	return &protocol.StatusResponse{InstanceID: id, Template: name, Snapshot: snap}, nil
}
