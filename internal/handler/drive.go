package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jun/policydraft/internal/controller"
)

// DriveHandler handles the save/load dialog.
type DriveHandler struct {
	ctrl    *controller.Controller
	cookies Cookies
	logger  *slog.Logger
}

// NewDriveHandler creates a new DriveHandler.
func NewDriveHandler(ctrl *controller.Controller, cookies Cookies, logger *slog.Logger) *DriveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DriveHandler{ctrl: ctrl, cookies: cookies, logger: logger}
}

// ListFiles opens the dialog and lists the storage folder.
func (h *DriveHandler) ListFiles(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, err := GetSessionID(req, h.cookies.Secret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}
	view, err := h.ctrl.OpenSaveDialog(ctx, sid)
	return viewResponse(h.logger, sid, view, err), nil
}

// CloseDialog hides the dialog.
func (h *DriveHandler) CloseDialog(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, err := GetSessionID(req, h.cookies.Secret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}
	h.ctrl.CloseSaveDialog(sid)
	return jsonResponse(http.StatusOK, h.ctrl.View(ctx, sid)), nil
}

// SaveNew stores the document as a new file.
func (h *DriveHandler) SaveNew(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, err := GetSessionID(req, h.cookies.Secret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(req, &body); err != nil {
		return errorResponse(err, nil), nil
	}

	view, err := h.ctrl.SaveNew(ctx, sid, body.Name)
	if err == nil {
		return jsonResponse(http.StatusCreated, view), nil
	}
	return viewResponse(h.logger, sid, view, err), nil
}

// LoadFile replaces the document with the file {id}.
func (h *DriveHandler) LoadFile(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, err := GetSessionID(req, h.cookies.Secret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}
	fileID := req.PathParameters["id"]
	if fileID == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Missing file ID"}, nil
	}

	view, err := h.ctrl.LoadFile(ctx, sid, fileID)
	return viewResponse(h.logger, sid, view, err), nil
}

// UpdateFile overwrites the file {id} with the document.
func (h *DriveHandler) UpdateFile(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, err := GetSessionID(req, h.cookies.Secret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}
	fileID := req.PathParameters["id"]
	if fileID == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Missing file ID"}, nil
	}

	view, err := h.ctrl.UpdateExisting(ctx, sid, fileID)
	return viewResponse(h.logger, sid, view, err), nil
}
