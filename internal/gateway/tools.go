package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"nutrigate/pkg/logging"
)

// Tool names exposed by the gateway.
const (
	AuthConfigureToolName = "auth_configure"
	AuthStartToolName     = "auth_start"
	AuthCompleteToolName  = "auth_complete"
	AuthStatusToolName    = "auth_status"
	APICallToolName       = "api_call"
	APICallAppToolName    = "api_call_app"
)

// tools returns the gateway's tool surface. Every handler resolves its
// tenant from the request context, so the same surface serves both the
// single local tenant and per-session tenants.
func (s *Server) tools() []mcpserver.ServerTool {
	return []mcpserver.ServerTool{
		{
			Tool: mcp.Tool{
				Name:        AuthConfigureToolName,
				Description: "Set the API consumer key and consumer secret for this session. Required before any other operation.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"consumer_key": map[string]interface{}{
							"type":        "string",
							"description": "The application's consumer key",
						},
						"consumer_secret": map[string]interface{}{
							"type":        "string",
							"description": "The application's consumer secret",
						},
					},
					Required: []string{"consumer_key", "consumer_secret"},
				},
			},
			Handler: s.handleAuthConfigure,
		},
		{
			Tool: mcp.Tool{
				Name:        AuthStartToolName,
				Description: "Begin user authorization. Returns a URL the user must open in a browser to approve access and receive a verifier PIN.",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]interface{}{},
				},
			},
			Handler: s.handleAuthStart,
		},
		{
			Tool: mcp.Tool{
				Name:        AuthCompleteToolName,
				Description: "Finish user authorization by submitting the verifier PIN shown after approving access in the browser.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"verifier": map[string]interface{}{
							"type":        "string",
							"description": "The verifier PIN displayed after authorization",
						},
					},
					Required: []string{"verifier"},
				},
			},
			Handler: s.handleAuthComplete,
		},
		{
			Tool: mcp.Tool{
				Name:        AuthStatusToolName,
				Description: "Report the authorization state of this session: whether consumer credentials are set, an authorization is pending, and a user token is held.",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]interface{}{},
				},
			},
			Handler: s.handleAuthStatus,
		},
		{
			Tool: mcp.Tool{
				Name:        APICallToolName,
				Description: "Call the platform API on behalf of the authorized user. Requires completed authorization. Pass API parameters such as method and search_expression.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"params": map[string]interface{}{
							"type":        "object",
							"description": "API parameters, e.g. {\"method\": \"foods.search\", \"search_expression\": \"apple\"}",
						},
						"http_method": map[string]interface{}{
							"type":        "string",
							"description": "HTTP method to use (GET or POST, default GET)",
						},
					},
					Required: []string{"params"},
				},
			},
			Handler: s.handleAPICall,
		},
		{
			Tool: mcp.Tool{
				Name:        APICallAppToolName,
				Description: "Call the platform API with application-level access (no user authorization needed). Requires consumer credentials only.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"params": map[string]interface{}{
							"type":        "object",
							"description": "API parameters, e.g. {\"method\": \"foods.search\", \"search_expression\": \"apple\"}",
						},
					},
					Required: []string{"params"},
				},
			},
			Handler: s.handleAPICallApp,
		},
	}
}

func (s *Server) handleAuthConfigure(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := req.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments format"), nil
	}

	consumerKey, ok := args["consumer_key"].(string)
	if !ok || consumerKey == "" {
		return mcp.NewToolResultError("consumer_key is required"), nil
	}
	consumerSecret, ok := args["consumer_secret"].(string)
	if !ok || consumerSecret == "" {
		return mcp.NewToolResultError("consumer_secret is required"), nil
	}

	tn, err := s.tenantFromContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := tn.Configure(consumerKey, consumerSecret); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to store credentials: %v", err)), nil
	}

	logging.Debug("Gateway", "Consumer credentials configured")
	return mcp.NewToolResultText("Consumer credentials configured."), nil
}

func (s *Server) handleAuthStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tn, err := s.tenantFromContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	authURL, err := tn.StartAuthorization(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonToolResult(map[string]string{
		"authorization_url": authURL,
		"next_step":         "Open the URL in a browser, approve access, then call " + AuthCompleteToolName + " with the displayed verifier PIN.",
	})
}

func (s *Server) handleAuthComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := req.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments format"), nil
	}

	verifier, ok := args["verifier"].(string)
	if !ok || strings.TrimSpace(verifier) == "" {
		return mcp.NewToolResultError("verifier is required"), nil
	}

	tn, err := s.tenantFromContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := tn.CompleteAuthorization(ctx, strings.TrimSpace(verifier)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Authorization complete. User-scoped API calls are now available."), nil
}

func (s *Server) handleAuthStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tn, err := s.tenantFromContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status := tn.Status()
	return jsonToolResult(map[string]interface{}{
		"state":                 string(status.State),
		"configured":            status.Configured,
		"pending_authorization": status.PendingAuthorization,
		"authorized":            status.Authorized,
	})
}

func (s *Server) handleAPICall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := req.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments format"), nil
	}

	params, err := extractParams(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	httpMethod := http.MethodGet
	if raw, ok := args["http_method"].(string); ok && raw != "" {
		httpMethod = strings.ToUpper(raw)
		if httpMethod != http.MethodGet && httpMethod != http.MethodPost {
			return mcp.NewToolResultError("http_method must be GET or POST"), nil
		}
	}

	tn, err := s.tenantFromContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := tn.InvokeSigned(ctx, httpMethod, params)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) handleAPICallApp(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := req.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments format"), nil
	}

	params, err := extractParams(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tn, err := s.tenantFromContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := tn.InvokeApp(ctx, params)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// extractParams converts the params argument into string API parameters.
// JSON numbers and booleans are rendered with their default formatting.
func extractParams(args map[string]interface{}) (map[string]string, error) {
	raw, ok := args["params"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("params is required and must be an object")
	}

	params := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			params[key] = v
		case float64, bool:
			params[key] = fmt.Sprintf("%v", v)
		default:
			return nil, fmt.Errorf("parameter %q must be a string, number, or boolean", key)
		}
	}
	return params, nil
}

func jsonToolResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
