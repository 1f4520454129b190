package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jun/policydraft/internal/controller"
	"github.com/jun/policydraft/internal/markdown"
)

// DocumentHandler serves the workspace document and its view state.
type DocumentHandler struct {
	ctrl     *controller.Controller
	cookies  Cookies
	renderer *markdown.Renderer
	logger   *slog.Logger
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(ctrl *controller.Controller, cookies Cookies, renderer *markdown.Renderer, logger *slog.Logger) *DocumentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandler{ctrl: ctrl, cookies: cookies, renderer: renderer, logger: logger}
}

// GetDocument returns the full workspace view.
func (h *DocumentHandler) GetDocument(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, setCookie, err := h.cookies.Workspace(req)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return withCookie(jsonResponse(http.StatusOK, h.ctrl.View(ctx, sid)), setCookie), nil
}

// PutDocument replaces the document with the user's text.
func (h *DocumentHandler) PutDocument(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, setCookie, err := h.cookies.Workspace(req)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	var body struct {
		Text *string `json:"text"`
	}
	if err := decodeBody(req, &body); err != nil {
		return withCookie(errorResponse(err, nil), setCookie), nil
	}
	if body.Text == nil {
		return withCookie(events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Missing text"}, setCookie), nil
	}

	h.ctrl.Edit(sid, *body.Text)
	return withCookie(jsonResponse(http.StatusOK, h.ctrl.View(ctx, sid)), setCookie), nil
}

// Download returns the document as a text attachment.
func (h *DocumentHandler) Download(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, err := GetSessionID(req, h.cookies.Secret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	name, body, err := h.ctrl.Download(sid)
	if err != nil {
		return errorResponse(err, nil), nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type":        "text/plain; charset=utf-8",
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
		},
	}, nil
}

// Preview renders the document as HTML.
func (h *DocumentHandler) Preview(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, setCookie, err := h.cookies.Workspace(req)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	view := h.ctrl.View(ctx, sid)
	html, err := h.renderer.Render([]byte(view.Document))
	if err != nil {
		h.logger.Error("render preview", "session_id", sid, "error", err)
		return withCookie(events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to render preview"}, setCookie), nil
	}
	return withCookie(events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       string(html),
		Headers: map[string]string{
			"Content-Type": "text/html; charset=utf-8",
		},
	}, setCookie), nil
}

// ClearError empties the error slot.
func (h *DocumentHandler) ClearError(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, err := GetSessionID(req, h.cookies.Secret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}
	h.ctrl.ClearError(sid)
	return jsonResponse(http.StatusOK, h.ctrl.View(ctx, sid)), nil
}

// CloseWorkspace tears the workspace down and drops the cookie.
func (h *DocumentHandler) CloseWorkspace(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, err := GetSessionID(req, h.cookies.Secret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}, nil
	}
	h.ctrl.Close(sid)
	return withCookie(events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}, h.cookies.Expired()), nil
}
