package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/jun/policydraft/internal/adapter"
	"github.com/jun/policydraft/internal/adapter/googledrive"
	"github.com/jun/policydraft/internal/adapter/memory"
	"github.com/jun/policydraft/internal/assistant"
	"github.com/jun/policydraft/internal/auth"
	"github.com/jun/policydraft/internal/config"
	"github.com/jun/policydraft/internal/controller"
	"github.com/jun/policydraft/internal/crypto"
	"github.com/jun/policydraft/internal/handler"
	"github.com/jun/policydraft/internal/markdown"
	"github.com/jun/policydraft/internal/pending"
	"github.com/jun/policydraft/internal/secret"
)

// Scopes requested at sign-in: files created by this app, plus the profile
// for the display name.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Deps are the external clients the application is built on. A nil Dynamo
// client keeps every table in memory.
type Deps struct {
	Dynamo    *dynamodb.Client
	Sealer    crypto.Sealer
	Generator assistant.Generator
	Logger    *slog.Logger
}

// App holds the dependencies for the Lambda function.
type App struct {
	authHandler      *handler.AuthHandler
	documentHandler  *handler.DocumentHandler
	assistantHandler *handler.AssistantHandler
	driveHandler     *handler.DriveHandler
	apiGatewaySecret string
	frontendURL      string
	devMode          bool
	logger           *slog.Logger
}

// NewApp initializes the application dependencies from the environment.
func NewApp(ctx context.Context) *App {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("unable to load config, %v", err))
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel, os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "")
	slog.SetDefault(logger)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		panic(fmt.Sprintf("unable to load SDK config, %v", err))
	}

	// ---------- Secret Resolver ----------
	var resolver secret.Resolver
	if cfg.DevMode {
		resolver = secret.NewEnvResolver()
		logger.Info("using EnvResolver (DEV_MODE=true)")
	} else {
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(awsCfg))
		logger.Info("using SSMResolver (SSM Parameter Store)")
	}

	secrets, err := secret.Load(ctx, resolver)
	if err != nil {
		logger.Warn("some secrets could not be resolved", "error", err)
	}
	cfg.APIKey = secrets.GeminiAPIKey
	cfg.ClientSecret = secrets.GoogleClientSecret
	cfg.APIGatewaySecret = secrets.APIGatewaySecret
	cfg.JWTSecret = secrets.JWTSecret
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "default-dev-secret"
	}

	// KMS
	var sealer crypto.Sealer
	if cfg.DevMode {
		sealer = crypto.NewDevSealer()
		logger.Info("using DevSealer (DEV_MODE=true)")
	} else {
		sealer = crypto.NewKMSSealer(kms.NewFromConfig(awsCfg), cfg.KMSKeyID)
	}

	var generator assistant.Generator
	if cfg.APIKey != "" {
		gen, err := assistant.NewGenaiGenerator(ctx, cfg.APIKey)
		if err != nil {
			logger.Error("unable to create Gemini client", "error", err)
		} else {
			generator = gen
		}
	}

	return New(ctx, cfg, Deps{
		Dynamo:    dynamodb.NewFromConfig(awsCfg),
		Sealer:    sealer,
		Generator: generator,
		Logger:    logger,
	})
}

// New wires the application from an already resolved configuration.
func New(ctx context.Context, cfg *config.Config, deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sealer := deps.Sealer
	if sealer == nil {
		sealer = crypto.NewDevSealer()
	}

	var (
		tokenTable auth.DynamoClient
		fileTable  memory.DynamoClient
		guard      pending.Guard = pending.NewMemoryGuard(cfg.BusyTTL)
	)
	if deps.Dynamo != nil {
		tokenTable = deps.Dynamo
		fileTable = deps.Dynamo
		guard = pending.NewDynamoGuard(deps.Dynamo, cfg.PendingTable, cfg.BusyTTL)
	}

	opts := auth.Options{
		Store:            auth.NewSessionStore(tokenTable, cfg.SessionsTable, sealer),
		StorageFolderURL: cfg.StorageFolderURL,
		Logger:           logger,
	}

	var storageProvider adapter.StorageProvider
	if cfg.DevMode {
		// Demo sign-in against the file store table (LocalStack) or memory.
		storageProvider = memory.NewProvider(fileTable, cfg.FileStoreTable)
		opts.Granter = auth.DemoGranter{RedirectURL: cfg.RedirectURL}
		opts.Profiles = auth.DemoProfile{}
		opts.Revoker = auth.NoopRevoker{}
		logger.Info("using demo sign-in and MemoryProvider (DEV_MODE=true)")
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		}
		storageProvider = googledrive.NewProvider()
		opts.Granter = oauthConfig
		opts.Profiles = auth.NewGoogleProfileFetcher()
		opts.Revoker = auth.NewHTTPRevoker(nil, "")
	}
	opts.Storage = storageProvider

	sessions := auth.NewManager(opts)
	if err := sessions.Initialize(ctx); err != nil {
		// Storage operations keep reporting it; the editor still works.
		logger.Error("session manager unavailable", "error", err)
	}

	ai := assistant.NewClient(deps.Generator, assistant.Config{
		Model:     cfg.Model,
		CorpusURL: cfg.CorpusFolderURL,
		Timeout:   cfg.AITimeout,
	}, logger)

	ctrl := controller.New(sessions, ai, guard, logger)
	sessions.Subscribe(ctrl)

	cookies := handler.Cookies{Secret: cfg.JWTSecret, DevMode: cfg.DevMode}

	return &App{
		authHandler:      handler.NewAuthHandler(ctrl, cookies, cfg.FrontendURL, logger),
		documentHandler:  handler.NewDocumentHandler(ctrl, cookies, markdown.NewRenderer(), logger),
		assistantHandler: handler.NewAssistantHandler(ctrl, cookies, logger),
		driveHandler:     handler.NewDriveHandler(ctrl, cookies, logger),
		apiGatewaySecret: cfg.APIGatewaySecret,
		frontendURL:      cfg.FrontendURL,
		devMode:          cfg.DevMode,
		logger:           logger,
	}
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := req.Path
	method := req.HTTPMethod

	app.logger.Info("request", "method", method, "path", path)

	// CORS Preflight
	if method == http.MethodOptions {
		return app.corsResponse(events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}), nil
	}

	// Only CloudFront knows the origin secret.
	if !app.devMode {
		if req.Headers["X-Origin-Verify"] != app.apiGatewaySecret && req.Headers["x-origin-verify"] != app.apiGatewaySecret {
			app.logger.Warn("security block: missing or invalid X-Origin-Verify header")
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusForbidden,
				Body:       "Forbidden: Access denied",
			}, nil
		}
	}

	// Strip /api prefix if present (for CloudFront proxying)
	path = strings.TrimPrefix(path, "/api")

	if req.PathParameters == nil {
		req.PathParameters = make(map[string]string)
	}

	h := app.route(method, path, req.PathParameters)
	if h == nil {
		return app.corsResponse(events.APIGatewayProxyResponse{
			StatusCode: http.StatusNotFound,
			Body:       fmt.Sprintf("Not Found: %s %s", method, path),
		}), nil
	}
	return app.corsResponse(app.must(h(ctx, req))), nil
}

type handlerFunc func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

func (app *App) route(method, path string, params map[string]string) handlerFunc {
	switch {
	case path == "/auth/login" && method == http.MethodGet:
		return app.authHandler.Login
	case path == "/auth/callback" && method == http.MethodGet:
		return app.authHandler.Callback
	case path == "/auth/logout" && method == http.MethodPost:
		return app.authHandler.Logout
	case path == "/auth/user" && method == http.MethodGet:
		return app.authHandler.GetUser

	case path == "/document" && method == http.MethodGet:
		return app.documentHandler.GetDocument
	case path == "/document" && method == http.MethodPut:
		return app.documentHandler.PutDocument
	case path == "/document/download" && method == http.MethodGet:
		return app.documentHandler.Download
	case path == "/document/preview" && method == http.MethodGet:
		return app.documentHandler.Preview
	case path == "/error" && method == http.MethodDelete:
		return app.documentHandler.ClearError
	case path == "/workspace" && method == http.MethodDelete:
		return app.documentHandler.CloseWorkspace

	case path == "/assistant/generate" && method == http.MethodPost:
		return app.assistantHandler.Generate
	case path == "/assistant/insert" && method == http.MethodPost:
		return app.assistantHandler.Insert
	case path == "/assistant/ask" && method == http.MethodPost:
		return app.assistantHandler.Ask

	case path == "/drive/files" && method == http.MethodGet:
		return app.driveHandler.ListFiles
	case path == "/drive/files" && method == http.MethodPost:
		return app.driveHandler.SaveNew
	case path == "/drive/dialog" && method == http.MethodDelete:
		return app.driveHandler.CloseDialog
	}

	// /drive/files/{id}
	if id, ok := strings.CutPrefix(path, "/drive/files/"); ok && id != "" && !strings.Contains(id, "/") {
		params["id"] = id
		switch method {
		case http.MethodGet:
			return app.driveHandler.LoadFile
		case http.MethodPut:
			return app.driveHandler.UpdateFile
		}
	}
	return nil
}

// corsResponse adds CORS headers to an API Gateway response.
func (app *App) corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = app.frontendURL
	if resp.Headers["Access-Control-Allow-Origin"] == "" {
		resp.Headers["Access-Control-Allow-Origin"] = "http://localhost:3000"
	}
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,PUT,DELETE,OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization"
	return resp
}

// must unwraps a handler response, hiding the error from the client.
func (app *App) must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		app.logger.Error("handler error", "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
