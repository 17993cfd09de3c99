package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"

	"github.com/xiaot623/gogo/therapy/internal/domain"
	"github.com/xiaot623/gogo/therapy/internal/logging"
	"github.com/xiaot623/gogo/therapy/internal/service"
)

// Server exposes the chat operations to internal clients over JSON-RPC.
type Server struct {
	mu        sync.Mutex
	listener  net.Listener
	rpcServer *rpc.Server
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the therapy service.
func NewServer(svc *service.Service) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc}
	if err := rpcServer.RegisterName("Therapy", handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts RPC connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			logging.Warn().Err(err).Msg("RPC accept error")
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	if err := ln.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the Therapy RPC methods.
type Handler struct {
	service *service.Service
}

// CreateSessionArgs identifies the session owner.
type CreateSessionArgs struct {
	UserID string `json:"user_id"`
}

// CreateSessionReply returns the new session id.
type CreateSessionReply struct {
	SessionID string `json:"session_id"`
}

// SendMessageArgs carries one user turn.
type SendMessageArgs struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

// SendMessageReply carries the assistant reply of a turn.
type SendMessageReply struct {
	Response string                 `json:"response"`
	Analysis domain.Analysis        `json:"analysis"`
	Metadata domain.MessageMetadata `json:"metadata"`
	Degraded bool                   `json:"degraded"`
}

// GetHistoryArgs identifies a session and its reader.
type GetHistoryArgs struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// GetHistoryReply returns the ordered messages.
type GetHistoryReply struct {
	Messages []domain.Message `json:"messages"`
}

// CreateSession starts a new session.
func (h *Handler) CreateSession(args *CreateSessionArgs, reply *CreateSessionReply) error {
	if args == nil || args.UserID == "" {
		return errors.New("invalid_input: user_id is required")
	}
	session, err := h.service.CreateSession(context.Background(), args.UserID)
	if err != nil {
		return rpcError(err)
	}
	reply.SessionID = session.SessionID
	return nil
}

// SendMessage runs one chat turn. Degraded replies are returned without error.
func (h *Handler) SendMessage(args *SendMessageArgs, reply *SendMessageReply) error {
	if args == nil {
		return errors.New("invalid_input: request is required")
	}
	result, err := h.service.SendMessage(context.Background(), args.SessionID, args.UserID, args.Message)
	if err != nil && (result == nil || !errors.Is(err, domain.ErrGeneration)) {
		return rpcError(err)
	}
	reply.Response = result.Reply
	reply.Analysis = result.Analysis
	reply.Metadata = result.Metadata
	reply.Degraded = result.Degraded
	return nil
}

// GetHistory returns the ordered messages of a session.
func (h *Handler) GetHistory(args *GetHistoryArgs, reply *GetHistoryReply) error {
	if args == nil {
		return errors.New("invalid_input: request is required")
	}
	messages, err := h.service.GetHistory(context.Background(), args.SessionID, args.UserID)
	if err != nil {
		return rpcError(err)
	}
	reply.Messages = messages
	return nil
}

// rpcError flattens domain errors into stable code-prefixed messages.
func rpcError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fmt.Errorf("invalid_input: %s", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return errors.New("not_found")
	case errors.Is(err, domain.ErrForbidden):
		return errors.New("forbidden")
	case errors.Is(err, domain.ErrConflict):
		return errors.New("conflict: session busy")
	default:
		logging.Error().Err(err).Msg("rpc request failed")
		return errors.New("internal")
	}
}
