package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jun/policydraft/internal/controller"
	"github.com/jun/policydraft/internal/domain"
	"github.com/jun/policydraft/internal/pending"
)

const (
	cookieName    = "session_token"
	sessionMaxAge = 24 * time.Hour
	stateMaxAge   = 10 * time.Minute
)

// Cookies issues and verifies the workspace cookie and the OAuth state value.
type Cookies struct {
	Secret  string
	DevMode bool
}

// GetSessionID extracts the workspace session ID from the Authorization header
// or the session cookie.
func GetSessionID(req events.APIGatewayProxyRequest, jwtSecret string) (string, error) {
	tokenString := ""
	authHeader := getHeader(req, "Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	}

	if tokenString == "" {
		// Cookie format: session_token=xxx; ...
		for _, part := range strings.Split(getHeader(req, "Cookie"), ";") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(part, cookieName+"=") {
				tokenString = strings.TrimPrefix(part, cookieName+"=")
				break
			}
		}
	}

	if tokenString == "" {
		return "", fmt.Errorf("no session token found")
	}
	return parseClaim(tokenString, jwtSecret, "sid")
}

func parseClaim(tokenString, jwtSecret, claim string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		if v, ok := claims[claim].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid token claims")
}

func sign(jwtSecret string, claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
}

// Workspace returns the session ID of the request. A request without a valid
// cookie gets a fresh workspace; the returned cookie must then be set on the
// response.
func (c Cookies) Workspace(req events.APIGatewayProxyRequest) (sessionID, setCookie string, err error) {
	if sid, err := GetSessionID(req, c.Secret); err == nil {
		return sid, "", nil
	}
	sid := uuid.NewString()
	signed, err := sign(c.Secret, jwt.MapClaims{
		"sid": sid,
		"exp": time.Now().Add(sessionMaxAge).Unix(),
	})
	if err != nil {
		return "", "", fmt.Errorf("sign session token: %w", err)
	}
	return sid, c.cookie(signed, int(sessionMaxAge.Seconds())), nil
}

// Expired returns a Set-Cookie value that removes the workspace cookie.
func (c Cookies) Expired() string {
	return c.cookie("", 0)
}

func (c Cookies) cookie(value string, maxAge int) string {
	sameSite := "Lax"
	if !c.DevMode {
		sameSite = "None"
	}
	return fmt.Sprintf("%s=%s; HttpOnly; Path=/; Max-Age=%d; SameSite=%s; Secure", cookieName, value, maxAge, sameSite)
}

// State binds an OAuth state value to the workspace that started sign-in.
func (c Cookies) State(sessionID string) (string, error) {
	return sign(c.Secret, jwt.MapClaims{
		"sid":   sessionID,
		"nonce": uuid.NewString(),
		"exp":   time.Now().Add(stateMaxAge).Unix(),
	})
}

// VerifyState checks that state was issued for sessionID.
func (c Cookies) VerifyState(state, sessionID string) error {
	sid, err := parseClaim(state, c.Secret, "sid")
	if err != nil {
		return err
	}
	if sid != sessionID {
		return fmt.Errorf("state issued for another workspace")
	}
	return nil
}

func getHeader(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// errorStatus maps an error to its HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, pending.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, controller.ErrWorkspaceClosed):
		return http.StatusGone
	default:
		return domain.StatusCode(err)
	}
}

type errorBody struct {
	Error string           `json:"error"`
	View  *controller.View `json:"view,omitempty"`
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode response", "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

func errorResponse(err error, view *controller.View) events.APIGatewayProxyResponse {
	return jsonResponse(errorStatus(err), errorBody{Error: err.Error(), View: view})
}

// withCookie attaches setCookie to resp when non-empty.
func withCookie(resp events.APIGatewayProxyResponse, setCookie string) events.APIGatewayProxyResponse {
	if setCookie == "" {
		return resp
	}
	if resp.MultiValueHeaders == nil {
		resp.MultiValueHeaders = make(map[string][]string)
	}
	resp.MultiValueHeaders["Set-Cookie"] = append(resp.MultiValueHeaders["Set-Cookie"], setCookie)
	return resp
}

func decodeBody(req events.APIGatewayProxyRequest, dst any) error {
	if req.Body == "" {
		return &domain.ValidationError{Message: "Request body is required."}
	}
	if err := json.Unmarshal([]byte(req.Body), dst); err != nil {
		return &domain.ValidationError{Message: "Invalid request body."}
	}
	return nil
}
