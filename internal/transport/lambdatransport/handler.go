package lambdatransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/cashbridge/advance-engine/internal/advance"
	"github.com/cashbridge/advance-engine/internal/app"
	"github.com/cashbridge/advance-engine/internal/transport/advancedto"
)

type Handler struct {
	svc app.ApprovalService
}

func NewHandler(svc app.ApprovalService) *Handler {
	return &Handler{svc: svc}
}

// Handle routes an API Gateway v2 request to the approval service.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := req.RequestContext.HTTP.Method
	path := req.RawPath

	switch {
	case method == http.MethodPost && path == "/approvals":
		return h.approve(ctx, req)
	case method == http.MethodGet && strings.HasPrefix(path, "/approvals/"):
		return h.run(ctx, strings.TrimPrefix(path, "/approvals/"))
	case method == http.MethodGet && path == "/graph":
		return h.graph(ctx, req.QueryStringParameters["format"])
	default:
		return respondJSON(http.StatusNotFound, map[string]any{"error": "not found"})
	}
}

func (h *Handler) approve(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	body, err := readBody(req)
	if err != nil {
		return respondJSON(http.StatusBadRequest, map[string]any{"error": "invalid body", "details": err.Error()})
	}

	var in advancedto.ApproveRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return respondJSON(http.StatusBadRequest, map[string]any{"error": "invalid json", "details": err.Error()})
	}

	run, records, err := h.svc.Approve(ctx, in.ToApp())
	if err != nil {
		return respondError(err)
	}
	return respondJSON(http.StatusCreated, advancedto.RunDocument(run, records))
}

func (h *Handler) run(ctx context.Context, runID string) (events.APIGatewayV2HTTPResponse, error) {
	run, records, err := h.svc.Run(ctx, runID)
	if err != nil {
		return respondError(err)
	}
	return respondJSON(http.StatusOK, advancedto.RunDocument(run, records))
}

func (h *Handler) graph(ctx context.Context, format string) (events.APIGatewayV2HTTPResponse, error) {
	body, contentType, err := h.svc.RenderGraph(ctx, format)
	if err != nil {
		return respondError(err)
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode:      http.StatusOK,
		Body:            base64.StdEncoding.EncodeToString(body),
		IsBase64Encoded: true,
		Headers:         map[string]string{"content-type": contentType},
	}, nil
}

func readBody(req events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if req.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(req.Body)
	}
	return []byte(req.Body), nil
}

func respondError(err error) (events.APIGatewayV2HTTPResponse, error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, advance.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, advance.ErrAccountNotFound),
		errors.Is(err, advance.ErrRunNotFound):
		status = http.StatusNotFound
	}
	return respondJSON(status, map[string]any{"error": err.Error()})
}

func respondJSON(status int, body any) (events.APIGatewayV2HTTPResponse, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"error":"failed to encode response"}`,
			Headers:    map[string]string{"content-type": "application/json"},
		}, nil
	}

	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(b),
		Headers:    map[string]string{"content-type": "application/json"},
	}, nil
}
