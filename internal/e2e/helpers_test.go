package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"taskd/internal/httpapi"
	"taskd/internal/inference"
	"taskd/internal/orchestrator"
	"taskd/pkg/types"
)

// fakeHF emulates the Hugging Face inference API for the built-in catalog.
type fakeHF struct {
	*httptest.Server
	calls atomic.Int64
}

func newFakeHF(t *testing.T, delay time.Duration) *fakeHF {
	t.Helper()
	f := &fakeHF{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		model := strings.TrimPrefix(r.URL.Path, "/models/")
		if strings.Contains(model, "vit") {
			_, _ = w.Write([]byte(`[{"label":"tabby, tabby cat","score":0.75},{"label":"Egyptian cat","score":0.2}]`))
			return
		}
		var req struct {
			Inputs     string         `json:"inputs"`
			Parameters map[string]any `json:"parameters"`
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &req)
		if req.Inputs == "fail" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"upstream exploded"}`))
			return
		}
		key := "generated_text"
		switch {
		case strings.Contains(model, "bart"):
			key = "summary_text"
		case strings.Contains(model, "opus-mt"):
			key = "translation_text"
		}
		out, _ := json.Marshal([]map[string]string{{key: model + ": " + req.Inputs}})
		_, _ = w.Write(out)
	}))
	t.Cleanup(f.Close)
	return f
}

// newStack wires fake HF, the hf backend, the orchestrator and the HTTP API.
func newStack(t *testing.T, hf *fakeHF, outputs string) (*httptest.Server, *orchestrator.Orchestrator) {
	t.Helper()
	backend, err := inference.New(context.Background(), inference.Config{
		Name:           "hf",
		BaseURL:        hf.URL,
		RequestTimeout: 5 * time.Second,
		ConnectTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	orch, err := orchestrator.New(orchestrator.Config{Backend: backend, OutputsDir: outputs})
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	api := httpapi.NewServer(orch)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(func() {
		srv.Close()
		api.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Close(ctx)
	})
	return srv, orch
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// submit posts a run and returns the job id.
func submit(t *testing.T, base string, req types.RunRequest) string {
	t.Helper()
	resp, body := httpPostJSON(t, base+"/run", req)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("run status=%d body=%s", resp.StatusCode, body)
	}
	var rr types.RunResponse
	if err := json.Unmarshal(body, &rr); err != nil || rr.JobID == "" {
		t.Fatalf("run response %s: %v", body, err)
	}
	return rr.JobID
}

// waitJob polls /jobs/{id} until the job reaches a terminal state.
func waitJob(t *testing.T, base, id string) types.JobResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, body := httpGet(t, base+"/jobs/"+id)
		if resp.StatusCode == http.StatusOK {
			var jr types.JobResponse
			if err := json.Unmarshal(body, &jr); err != nil {
				t.Fatalf("decode job: %v", err)
			}
			if jr.State == "succeeded" || jr.State == "failed" {
				return jr
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return types.JobResponse{}
}
