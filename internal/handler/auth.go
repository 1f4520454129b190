package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jun/policydraft/internal/controller"
)

// AuthHandler handles sign-in and sign-out of a workspace.
type AuthHandler struct {
	ctrl        *controller.Controller
	cookies     Cookies
	frontendURL string
	logger      *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(ctrl *controller.Controller, cookies Cookies, frontendURL string, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{ctrl: ctrl, cookies: cookies, frontendURL: frontendURL, logger: logger}
}

// Login redirects the browser to the consent page.
func (h *AuthHandler) Login(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, setCookie, err := h.cookies.Workspace(req)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	state, err := h.cookies.State(sid)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("sign oauth state: %w", err)
	}

	url, err := h.ctrl.SignIn(sid, state)
	if err != nil {
		h.logger.Warn("sign-in unavailable", "session_id", sid, "error", err)
		return withCookie(errorResponse(err, nil), setCookie), nil
	}

	return withCookie(events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": url,
		},
	}, setCookie), nil
}

// Callback completes sign-in and returns the browser to the frontend.
func (h *AuthHandler) Callback(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	code := req.QueryStringParameters["code"]
	if code == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Missing code"}, nil
	}

	sid, err := GetSessionID(req, h.cookies.Secret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}
	if err := h.cookies.VerifyState(req.QueryStringParameters["state"], sid); err != nil {
		h.logger.Warn("oauth state rejected", "session_id", sid, "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Invalid state"}, nil
	}

	success := "true"
	if _, err := h.ctrl.CompleteSignIn(ctx, sid, code); err != nil {
		h.logger.Error("sign-in failed", "session_id", sid, "error", err)
		success = "false"
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": fmt.Sprintf("%s/?success=%s", h.frontendURL, success),
		},
	}, nil
}

// Logout revokes the workspace's token. The workspace itself survives.
func (h *AuthHandler) Logout(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, err := GetSessionID(req, h.cookies.Secret)
	if err != nil {
		// Nothing to sign out of.
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}, nil
	}

	if err := h.ctrl.SignOut(ctx, sid); err != nil {
		view := h.ctrl.View(ctx, sid)
		return errorResponse(err, &view), nil
	}
	return jsonResponse(http.StatusOK, h.ctrl.View(ctx, sid)), nil
}

// GetUser returns the session part of the workspace view.
func (h *AuthHandler) GetUser(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	sid, setCookie, err := h.cookies.Workspace(req)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	view := h.ctrl.View(ctx, sid)
	return withCookie(jsonResponse(http.StatusOK, map[string]any{
		"signedIn":    view.SignedIn,
		"displayName": view.DisplayName,
	}), setCookie), nil
}
