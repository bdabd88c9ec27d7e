package semaphore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, Token: "test-token"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, srv
}

func TestCreateTemplate(t *testing.T) {
	var gotAuth, gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path

		var spec TemplateSpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			t.Fatalf("decode spec: %v", err)
		}
		if spec.Playbook == "" {
			t.Fatal("spec missing playbook")
		}

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 7, "name": spec.Name})
	}))

	tpl, err := client.CreateTemplate(context.Background(), 1, TemplateSpec{
		ProjectID: 1,
		Name:      "db1",
		Playbook:  "/var/lib/haforge/playbooks/db1.yml",
		App:       "ansible",
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if tpl.ID != 7 {
		t.Fatalf("template id = %d", tpl.ID)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if gotPath != "/api/project/1/templates" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestCreateTemplateMissingID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "db1"})
	}))

	_, err := client.CreateTemplate(context.Background(), 1, TemplateSpec{Name: "db1"})
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestUpstreamErrorCarriesStatusAndBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"inventory not found"}`))
	}))

	_, err := client.StartTask(context.Background(), 1, 7)
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upErr.Status != http.StatusBadRequest {
		t.Fatalf("status = %d", upErr.Status)
	}
	if upErr.Body == "" {
		t.Fatal("body not captured")
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	srv.Close()

	_, err = client.TaskStatus(context.Background(), 1, 7)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestTaskStatusPassesThroughUnknownStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 9, "status": "waiting_in_queue"})
	}))

	task, err := client.TaskStatus(context.Background(), 1, 9)
	if err != nil {
		t.Fatalf("TaskStatus: %v", err)
	}
	if task.Status != "waiting_in_queue" {
		t.Fatalf("status = %q", task.Status)
	}
}

func TestStartTaskSendsTemplateID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["template_id"] != float64(42) {
			t.Fatalf("template_id = %v", body["template_id"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 100, "status": "pending"})
	}))

	task, err := client.StartTask(context.Background(), 1, 42)
	if err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	if task.ID != 100 || task.Status != "pending" {
		t.Fatalf("task = %+v", task)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}
