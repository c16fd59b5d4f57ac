package roomrelease

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saaga0h/jeeves-roomrelease/pkg/mqtt"
)

// ErrRequestTimeout is returned when the device bridge does not answer in time
var ErrRequestTimeout = errors.New("device request timed out")

type rpcRequest struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Requester correlates requests to room device bridges with their replies
type Requester struct {
	mqtt    mqtt.Client
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]chan rpcResponse
}

// NewRequester creates a requester publishing through mqttClient
func NewRequester(mqttClient mqtt.Client, timeout time.Duration, logger *slog.Logger) *Requester {
	return &Requester{
		mqtt:    mqttClient,
		timeout: timeout,
		logger:  logger,
		pending: make(map[string]chan rpcResponse),
	}
}

// Call sends a request and waits for the reply. result may be nil.
func (r *Requester) Call(ctx context.Context, room, method string, params, result interface{}) error {
	id := uuid.NewString()
	ch := make(chan rpcResponse, 1)

	r.mu.Lock()
	r.pending[id] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	if err := r.publish(room, rpcRequest{ID: id, Method: method, Params: params}); err != nil {
		return err
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if !resp.OK {
			if resp.Error == "" {
				resp.Error = "unknown error"
			}
			return fmt.Errorf("%s failed: %s", method, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("failed to decode %s result: %w", method, err)
			}
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w", method, ErrRequestTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

// Send publishes a request without waiting for a reply
func (r *Requester) Send(room, method string, params interface{}) error {
	return r.publish(room, rpcRequest{ID: uuid.NewString(), Method: method, Params: params})
}

func (r *Requester) publish(room string, req rpcRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", req.Method, err)
	}

	if err := r.mqtt.Publish(mqtt.RequestTopic(room), 1, false, payload); err != nil {
		return fmt.Errorf("failed to send %s request: %w", req.Method, err)
	}
	return nil
}

// HandleResponse delivers a bridge reply to the waiting caller. It never blocks.
func (r *Requester) HandleResponse(msg mqtt.Message) {
	var resp rpcResponse
	if err := json.Unmarshal(msg.Payload(), &resp); err != nil {
		r.logger.Warn("Failed to parse device response", "topic", msg.Topic(), "error", err)
		return
	}

	r.mu.Lock()
	ch, ok := r.pending[resp.ID]
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("Dropping response without pending request", "topic", msg.Topic(), "id", resp.ID)
		return
	}

	select {
	case ch <- resp:
	default:
	}
}
