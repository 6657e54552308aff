package control

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/visiona/scandesk/internal/config"
)

// Command represents a control plane command
type Command struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a command response
type Response struct {
	CommandAck string                 `json:"command_ack"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

// Handler handles control plane commands
type Handler struct {
	cfg      *config.Config
	client   mqtt.Client
	commands chan Command

	callbacks CommandCallbacks
}

// CommandCallbacks contains callback functions for commands
type CommandCallbacks struct {
	OnGetStatus func() map[string]interface{}
	OnShutdown  func() error
	// Session lifecycle
	OnSelectStudent func(studentID string) error
	OnCloseSession  func() error
	// Capture workflow
	OnCapture     func() error
	OnImportPage  func(name string, data []byte) error
	OnKeep        func() error
	OnRetake      func() error
	OnRemovePage  func(pageID string) error
	OnFinish      func() (map[string]interface{}, error)
	OnSkip        func() (map[string]interface{}, error)
	OnRetryCamera func() error
	// Roster mutations
	OnSetStatus func(studentID, status string) error
	OnSetRemark func(studentID, remark string) error
	// PDF trigger
	OnGeneratePDF func(studentID string) error
}

// NewHandler creates a new control plane handler
func NewHandler(cfg *config.Config, client mqtt.Client, callbacks CommandCallbacks) *Handler {
	return &Handler{
		cfg:       cfg,
		client:    client,
		commands:  make(chan Command, 10),
		callbacks: callbacks,
	}
}

// Start starts listening for control commands
func (h *Handler) Start(ctx context.Context) error {
	topic := h.cfg.MQTT.Topics.Control
	qos := h.cfg.MQTT.QoS["control"]

	slog.Info("subscribing to control plane", "topic", topic, "qos", qos)

	token := h.client.Subscribe(topic, qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control plane subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control plane subscription failed: %w", err)
	}

	slog.Info("control plane handler started")

	// Process commands
	go h.processCommands(ctx)

	return nil
}

// Stop stops the control plane handler
func (h *Handler) Stop() error {
	topic := h.cfg.MQTT.Topics.Control

	if h.client != nil && h.client.IsConnected() {
		token := h.client.Unsubscribe(topic)
		token.Wait()
	}

	close(h.commands)

	slog.Info("control plane handler stopped")
	return nil
}

// messageHandler is called when a control message is received
func (h *Handler) messageHandler(client mqtt.Client, msg mqtt.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		slog.Error("failed to parse control command", "error", err)
		h.sendResponse(Response{
			CommandAck: "unknown",
			Status:     "error",
			Error:      "invalid JSON",
		})
		return
	}

	slog.Info("control command received", "command", cmd.Command)

	// Send to processing channel
	select {
	case h.commands <- cmd:
	default:
		slog.Warn("command queue full, dropping command", "command", cmd.Command)
	}
}

// processCommands processes commands from the queue
func (h *Handler) processCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-h.commands:
			if !ok {
				return
			}
			h.handleCommand(cmd)
		}
	}
}

// handleCommand executes a command
func (h *Handler) handleCommand(cmd Command) {
	var resp Response
	resp.CommandAck = cmd.Command

	switch cmd.Command {
	case "get_status":
		if h.callbacks.OnGetStatus != nil {
			resp.Status = "success"
			resp.Data = h.callbacks.OnGetStatus()
		} else {
			resp.Status = "error"
			resp.Error = "get_status not implemented"
		}

	case "select_student":
		if h.callbacks.OnSelectStudent != nil {
			// Empty student_id means "first eligible"
			studentID, _ := cmd.Params["student_id"].(string)
			if err := h.callbacks.OnSelectStudent(studentID); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"session_started": true,
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "select_student not implemented"
		}

	case "capture":
		if h.callbacks.OnCapture != nil {
			if err := h.callbacks.OnCapture(); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"frame_pending": true,
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "capture not implemented"
		}

	case "import_page":
		if h.callbacks.OnImportPage != nil {
			name, _ := cmd.Params["name"].(string)
			encoded, ok := cmd.Params["data"].(string)
			if !ok {
				resp.Status = "error"
				resp.Error = "missing or invalid 'data' parameter (expected base64 string)"
			} else {
				data, err := base64.StdEncoding.DecodeString(encoded)
				if err != nil {
					resp.Status = "error"
					resp.Error = "invalid base64 in 'data' parameter"
				} else if err := h.callbacks.OnImportPage(name, data); err != nil {
					resp.Status = "error"
					resp.Error = err.Error()
				} else {
					resp.Status = "success"
					resp.Data = map[string]interface{}{
						"frame_pending": true,
						"imported":      name,
					}
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "import_page not implemented"
		}

	case "keep":
		if h.callbacks.OnKeep != nil {
			if err := h.callbacks.OnKeep(); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"page_committed": true,
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "keep not implemented"
		}

	case "retake":
		if h.callbacks.OnRetake != nil {
			if err := h.callbacks.OnRetake(); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"frame_discarded": true,
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "retake not implemented"
		}

	case "remove_page":
		if h.callbacks.OnRemovePage != nil {
			pageID, ok := cmd.Params["page_id"].(string)
			if !ok {
				resp.Status = "error"
				resp.Error = "missing or invalid 'page_id' parameter (expected string)"
			} else if err := h.callbacks.OnRemovePage(pageID); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"page_removed": pageID,
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "remove_page not implemented"
		}

	case "finish":
		if h.callbacks.OnFinish != nil {
			data, err := h.callbacks.OnFinish()
			if err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = data
			}
		} else {
			resp.Status = "error"
			resp.Error = "finish not implemented"
		}

	case "skip":
		if h.callbacks.OnSkip != nil {
			data, err := h.callbacks.OnSkip()
			if err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = data
			}
		} else {
			resp.Status = "error"
			resp.Error = "skip not implemented"
		}

	case "retry_camera":
		if h.callbacks.OnRetryCamera != nil {
			if err := h.callbacks.OnRetryCamera(); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"camera_ready": true,
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "retry_camera not implemented"
		}

	case "set_status":
		if h.callbacks.OnSetStatus != nil {
			studentID, okID := cmd.Params["student_id"].(string)
			status, okStatus := cmd.Params["status"].(string)
			if !okID || !okStatus {
				resp.Status = "error"
				resp.Error = "missing 'student_id' or 'status' parameter (expected strings)"
			} else if err := h.callbacks.OnSetStatus(studentID, status); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"student_id": studentID,
					"status":     status,
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "set_status not implemented"
		}

	case "set_remark":
		if h.callbacks.OnSetRemark != nil {
			studentID, okID := cmd.Params["student_id"].(string)
			remark, okRemark := cmd.Params["remark"].(string)
			if !okID || !okRemark {
				resp.Status = "error"
				resp.Error = "missing 'student_id' or 'remark' parameter (expected strings)"
			} else if err := h.callbacks.OnSetRemark(studentID, remark); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"student_id":   studentID,
					"remark_saved": true,
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "set_remark not implemented"
		}

	case "generate_pdf":
		if h.callbacks.OnGeneratePDF != nil {
			studentID, ok := cmd.Params["student_id"].(string)
			if !ok {
				resp.Status = "error"
				resp.Error = "missing or invalid 'student_id' parameter (expected string)"
			} else if err := h.callbacks.OnGeneratePDF(studentID); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"student_id":    studentID,
					"pdf_triggered": true,
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "generate_pdf not implemented"
		}

	case "close_session":
		if h.callbacks.OnCloseSession != nil {
			if err := h.callbacks.OnCloseSession(); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"session_closed": true,
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "close_session not implemented"
		}

	case "shutdown":
		if h.callbacks.OnShutdown != nil {
			slog.Warn("shutdown command received via MQTT control plane")
			resp.Status = "success"
			resp.Data = map[string]interface{}{
				"shutdown_initiated": true,
				"message":            "graceful shutdown in progress",
			}
			// Send response BEFORE triggering shutdown
			h.sendResponse(resp)

			// Trigger shutdown asynchronously
			go func() {
				time.Sleep(500 * time.Millisecond) // Brief delay to ensure response is sent
				if err := h.callbacks.OnShutdown(); err != nil {
					slog.Error("shutdown callback failed", "error", err)
				}
			}()
			return // Don't send response again
		} else {
			resp.Status = "error"
			resp.Error = "shutdown not implemented"
		}

	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}

	h.sendResponse(resp)
}

// sendResponse sends a response to the health topic
func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		return
	}

	topic := h.cfg.MQTT.Topics.Health
	qos := h.cfg.MQTT.QoS["health"]

	token := h.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		slog.Error("response publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		slog.Error("failed to publish response", "error", err)
		return
	}

	slog.Debug("response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}
