package runs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/AryanB1/Source-Graph/internal/core/runs"
)

// mockService implements runs.Service for handler tests
type mockService struct {
	createFunc func(ctx context.Context, req runs.CreateRunRequest) (uuid.UUID, error)
	graphFunc  func(ctx context.Context, runID uuid.UUID, maxNodes int) (*runs.Graph, error)
}

func (m *mockService) CreateRun(ctx context.Context, req runs.CreateRunRequest) (uuid.UUID, error) {
	return m.createFunc(ctx, req)
}

func (m *mockService) GetRunGraph(ctx context.Context, runID uuid.UUID, maxNodes int) (*runs.Graph, error) {
	return m.graphFunc(ctx, runID, maxNodes)
}

func TestHandleCreateSuccess(t *testing.T) {
	runID := uuid.New()
	handler := NewCreateHandler(&mockService{
		createFunc: func(ctx context.Context, req runs.CreateRunRequest) (uuid.UUID, error) {
			if req.Mode != "query" || req.Query != "golang" {
				t.Errorf("request not forwarded: %+v", req)
			}
			return runID, nil
		},
	})

	body := `{"mode": "query", "query": "golang", "params": {"maxPages": 2}}`
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandleCreate(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp runs.CreateRunResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.RunID != runID.String() {
		t.Errorf("expected runId %s, got %s", runID, resp.RunID)
	}
}

func TestHandleCreateInvalidBody(t *testing.T) {
	handler := NewCreateHandler(&mockService{
		createFunc: func(ctx context.Context, req runs.CreateRunRequest) (uuid.UUID, error) {
			t.Fatal("service must not be called for malformed JSON")
			return uuid.Nil, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()

	handler.HandleCreate(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleCreateValidationError(t *testing.T) {
	handler := NewCreateHandler(&mockService{
		createFunc: func(ctx context.Context, req runs.CreateRunRequest) (uuid.UUID, error) {
			return uuid.Nil, &runs.ValidationError{Reason: "query mode requires 'query' field"}
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{"mode": "query"}`))
	w := httptest.NewRecorder()

	handler.HandleCreate(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "InvalidRequest") {
		t.Errorf("expected InvalidRequest error type, got %s", w.Body.String())
	}
}

func TestHandleCreateIngestionFailure(t *testing.T) {
	handler := NewCreateHandler(&mockService{
		createFunc: func(ctx context.Context, req runs.CreateRunRequest) (uuid.UUID, error) {
			return uuid.Nil, &runs.IngestionError{Err: errors.New("upstream unavailable")}
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{"mode": "query", "query": "x"}`))
	w := httptest.NewRecorder()

	handler.HandleCreate(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "IngestionFailed") {
		t.Errorf("expected IngestionFailed error type, got %s", w.Body.String())
	}
}

func TestHandleCreateInternalError(t *testing.T) {
	handler := NewCreateHandler(&mockService{
		createFunc: func(ctx context.Context, req runs.CreateRunRequest) (uuid.UUID, error) {
			return uuid.Nil, errors.New("database connection lost")
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{"mode": "query", "query": "x"}`))
	w := httptest.NewRecorder()

	handler.HandleCreate(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	// Internal details must not leak
	if strings.Contains(w.Body.String(), "database connection lost") {
		t.Errorf("internal error leaked to client: %s", w.Body.String())
	}
}
