package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	imagegen "github.com/mhpenta/imagen-mcp"
	"github.com/mhpenta/imagen-mcp/internal/metrics"
)

// ToolHandler runs a tool with schema-validated arguments. A returned error
// means the arguments could not be decoded and is reported as invalid params.
type ToolHandler func(ctx context.Context, args json.RawMessage) (*imagegen.ToolResult, error)

// ResourceReader produces the text of a resource.
type ResourceReader func(ctx context.Context) (string, error)

type tool struct {
	def     ToolDefinition
	schema  *jsonschema.Schema
	handler ToolHandler
}

type resource struct {
	def  Resource
	read ResourceReader
}

// Server dispatches MCP requests to registered tools and resources.
// Requests are handled one at a time in arrival order.
type Server struct {
	info ServerInfo

	mu        sync.RWMutex
	tools     map[string]*tool
	toolOrder []string
	resources map[string]*resource
	resOrder  []string

	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger. Logs must not go to stdout.
func WithServerLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.With(zap.String("component", "mcp_server"))
		}
	}
}

// WithServerMetrics records tool calls on c.
func WithServerMetrics(c *metrics.Collector) ServerOption {
	return func(s *Server) {
		s.metrics = c
	}
}

// NewServer creates a server with no tools registered.
func NewServer(info ServerInfo, opts ...ServerOption) *Server {
	s := &Server{
		info:      info,
		tools:     make(map[string]*tool),
		resources: make(map[string]*resource),
		logger:    zap.NewNop(),
		tracer:    otel.Tracer("github.com/mhpenta/imagen-mcp/mcp"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterTool adds a tool. The input schema is compiled once here.
func (s *Server) RegisterTool(def ToolDefinition, handler ToolHandler) error {
	if def.Name == "" {
		return errors.New("tool name is required")
	}
	if def.InputSchema == nil {
		def.InputSchema = map[string]any{"type": "object"}
	}
	compiled, err := compileSchema(def.Name, def.InputSchema)
	if err != nil {
		return fmt.Errorf("tool %s: %w", def.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[def.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	s.tools[def.Name] = &tool{def: def, schema: compiled, handler: handler}
	s.toolOrder = append(s.toolOrder, def.Name)
	return nil
}

// RegisterResource adds a readable resource.
func (s *Server) RegisterResource(def Resource, read ResourceReader) error {
	if def.URI == "" {
		return errors.New("resource URI is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.resources[def.URI]; exists {
		return fmt.Errorf("resource %s already registered", def.URI)
	}
	s.resources[def.URI] = &resource{def: def, read: read}
	s.resOrder = append(s.resOrder, def.URI)
	return nil
}

// Serve reads requests from t until EOF or ctx is done.
func (s *Server) Serve(ctx context.Context, t Transport) error {
	frames := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(frames)
		for {
			frame, err := t.Receive(ctx)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				readErr <- ctx.Err()
				return
			}
		}
	}()

	s.logger.Info("mcp server ready",
		zap.String("name", s.info.Name),
		zap.String("version", s.info.Version),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("mcp server stopping", zap.Error(ctx.Err()))
			return nil
		case frame, ok := <-frames:
			if !ok {
				err := <-readErr
				if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
					s.logger.Info("client disconnected")
					return nil
				}
				return fmt.Errorf("receive: %w", err)
			}
			resp := s.Handle(ctx, frame)
			if resp == nil {
				continue
			}
			if err := t.Send(ctx, resp); err != nil {
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}

// Handle processes one raw frame. It returns nil for notifications.
func (s *Server) Handle(ctx context.Context, frame []byte) *Message {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		s.logger.Warn("unparseable message", zap.Error(err))
		return NewErrorResponse(nil, ErrorCodeParseError, "parse error")
	}
	if msg.JSONRPC != jsonRPCVersion || msg.Method == "" {
		if msg.IsNotification() {
			return nil
		}
		return NewErrorResponse(msg.ID, ErrorCodeInvalidRequest, "invalid request")
	}

	if msg.IsNotification() {
		s.logger.Debug("notification", zap.String("method", msg.Method))
		return nil
	}

	switch msg.Method {
	case "initialize":
		return NewResponse(msg.ID, initializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      s.info,
		})
	case "ping":
		return NewResponse(msg.ID, struct{}{})
	case "tools/list":
		return NewResponse(msg.ID, toolListResult{Tools: s.toolDefinitions()})
	case "tools/call":
		return s.callTool(ctx, &msg)
	case "resources/list":
		return NewResponse(msg.ID, resourceListResult{Resources: s.resourceDefinitions()})
	case "resources/read":
		return s.readResource(ctx, &msg)
	default:
		return NewErrorResponse(msg.ID, ErrorCodeMethodNotFound, "method not found: "+msg.Method)
	}
}

func (s *Server) toolDefinitions() []ToolDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(s.toolOrder))
	for _, name := range s.toolOrder {
		defs = append(defs, s.tools[name].def)
	}
	return defs
}

func (s *Server) resourceDefinitions() []Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]Resource, 0, len(s.resOrder))
	for _, uri := range s.resOrder {
		defs = append(defs, s.resources[uri].def)
	}
	return defs
}

func (s *Server) callTool(ctx context.Context, msg *Message) *Message {
	var params callToolParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || params.Name == "" {
		return NewErrorResponse(msg.ID, ErrorCodeInvalidParams, "tools/call requires a tool name")
	}

	s.mu.RLock()
	t, ok := s.tools[params.Name]
	s.mu.RUnlock()
	if !ok {
		return NewErrorResponse(msg.ID, ErrorCodeInvalidParams, "unknown tool: "+params.Name)
	}

	requestID := uuid.NewString()
	logger := s.logger.With(zap.String("request_id", requestID), zap.String("tool", params.Name))

	if err := validateArguments(t.schema, params.Arguments); err != nil {
		logger.Warn("invalid tool arguments", zap.Error(err))
		s.metrics.RecordToolCall(params.Name, true, 0)
		return NewErrorResponse(msg.ID, ErrorCodeInvalidParams,
			fmt.Sprintf("invalid arguments for %s: %v", params.Name, err))
	}

	ctx, span := s.tracer.Start(ctx, "mcp.CallTool", trace.WithAttributes(
		attribute.String("mcp.tool", params.Name),
		attribute.String("mcp.request_id", requestID),
	))
	defer span.End()

	start := time.Now()
	logger.Info("tool call started")

	result, err := t.handler(ctx, params.Arguments)
	duration := time.Since(start)
	if err != nil {
		logger.Warn("tool arguments rejected", zap.Error(err))
		s.metrics.RecordToolCall(params.Name, true, duration)
		return NewErrorResponse(msg.ID, ErrorCodeInvalidParams,
			fmt.Sprintf("invalid arguments for %s: %v", params.Name, err))
	}
	if result == nil {
		result = imagegen.TextResult("")
	}

	s.metrics.RecordToolCall(params.Name, result.IsError, duration)
	span.SetAttributes(attribute.Bool("mcp.is_error", result.IsError))
	logger.Info("tool call finished",
		zap.Bool("is_error", result.IsError),
		zap.Int64("duration_ms", duration.Milliseconds()),
	)
	return NewResponse(msg.ID, result)
}

func (s *Server) readResource(ctx context.Context, msg *Message) *Message {
	var params readResourceParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || params.URI == "" {
		return NewErrorResponse(msg.ID, ErrorCodeInvalidParams, "resources/read requires a uri")
	}

	s.mu.RLock()
	r, ok := s.resources[params.URI]
	s.mu.RUnlock()
	if !ok {
		return NewErrorResponse(msg.ID, ErrorCodeInvalidParams, "unknown resource: "+params.URI)
	}

	text, err := r.read(ctx)
	if err != nil {
		s.logger.Error("reading resource failed", zap.String("uri", params.URI), zap.Error(err))
		return NewErrorResponse(msg.ID, ErrorCodeInternalError, err.Error())
	}
	return NewResponse(msg.ID, readResourceResult{Contents: []ResourceContent{{
		URI:      r.def.URI,
		MimeType: r.def.MimeType,
		Text:     text,
	}}})
}
