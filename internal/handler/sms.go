package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/safenotsorry/checkin/internal/checkin"
	"github.com/safenotsorry/checkin/internal/middleware"
	"github.com/safenotsorry/checkin/internal/model"
)

// emptyTwiML tells the SMS provider there is nothing to send back inline.
const emptyTwiML = "<Response></Response>"

// Intake processes one inbound reply.
type Intake interface {
	Receive(ctx context.Context, phone, text string) (*checkin.IntakeResult, error)
}

// SMSHandler receives reply webhooks from the SMS provider.
type SMSHandler struct {
	intake  Intake
	timeout time.Duration
	logger  *slog.Logger
}

// NewSMSHandler creates an SMSHandler. Each reply gets its own context
// bounded by timeout and detached from the request.
func NewSMSHandler(intake Intake, timeout time.Duration, logger *slog.Logger) *SMSHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMSHandler{
		intake:  intake,
		timeout: timeout,
		logger:  logger.With("component", "handler.sms"),
	}
}

// Receive handles a form-encoded reply (From, Body). The response is always
// 200 with empty TwiML, whatever happened, so the provider never retries.
//
// POST /sms-response
func (h *SMSHandler) Receive(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if err := r.ParseForm(); err != nil {
		h.logger.Warn("unreadable reply form", "request_id", requestID, "error", err)
	} else {
		from := strings.TrimSpace(r.PostForm.Get("From"))
		if from == "" {
			// Still logged as a response; intake never completes anything for it.
			h.logger.Warn("reply without sender", "request_id", requestID)
		}
		h.process(r.Context(), requestID, from, r.PostForm.Get("Body"))
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

func (h *SMSHandler) process(parent context.Context, requestID, from, body string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), h.timeout)
	defer cancel()

	defer func() {
		if rvr := recover(); rvr != nil {
			h.logger.Error("reply processing panicked", "request_id", requestID, "panic", rvr)
		}
	}()

	result, err := h.intake.Receive(ctx, from, body)
	if err != nil {
		h.logger.Error("reply processing failed",
			"request_id", requestID,
			"phone", model.MaskPhone(from),
			"error", err,
		)
		return
	}

	h.logger.Info("reply received",
		"request_id", requestID,
		"phone", model.MaskPhone(from),
		"affirmative", result.Affirmative,
		"completed", result.CheckIn != nil,
	)
}
