package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jun/policydraft/internal/controller"
)

// AssistantHandler handles draft generation and policy questions.
type AssistantHandler struct {
	ctrl    *controller.Controller
	cookies Cookies
	logger  *slog.Logger
}

// NewAssistantHandler creates a new AssistantHandler.
func NewAssistantHandler(ctrl *controller.Controller, cookies Cookies, logger *slog.Logger) *AssistantHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssistantHandler{ctrl: ctrl, cookies: cookies, logger: logger}
}

// Generate drafts a section for the requested topic.
func (h *AssistantHandler) Generate(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, err := GetSessionID(req, h.cookies.Secret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	var body struct {
		Topic string `json:"topic"`
	}
	if err := decodeBody(req, &body); err != nil {
		return errorResponse(err, nil), nil
	}

	view, err := h.ctrl.Generate(ctx, sid, body.Topic)
	return viewResponse(h.logger, sid, view, err), nil
}

// Insert appends the last draft to the document.
func (h *AssistantHandler) Insert(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, err := GetSessionID(req, h.cookies.Secret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	if err := h.ctrl.InsertDraft(sid); err != nil {
		return errorResponse(err, nil), nil
	}
	return jsonResponse(http.StatusOK, h.ctrl.View(ctx, sid)), nil
}

// Ask answers a question about policy.
func (h *AssistantHandler) Ask(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, err := GetSessionID(req, h.cookies.Secret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	var body struct {
		Question string `json:"question"`
	}
	if err := decodeBody(req, &body); err != nil {
		return errorResponse(err, nil), nil
	}

	view, err := h.ctrl.Ask(ctx, sid, body.Question)
	return viewResponse(h.logger, sid, view, err), nil
}

// viewResponse renders the result of an async intent. On failure the body
// still carries the view so the error slot reaches the client.
func viewResponse(logger *slog.Logger, sid string, view controller.View, err error) events.APIGatewayProxyResponse {
	if err != nil {
		logger.Info("intent rejected", "session_id", sid, "error", err)
		if view.SessionID == "" {
			return errorResponse(err, nil)
		}
		return errorResponse(err, &view)
	}
	return jsonResponse(http.StatusOK, view)
}
