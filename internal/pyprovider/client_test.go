package pyprovider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyerfyer/nerf-processor/internal/ner"
	"github.com/fyerfyer/nerf-processor/internal/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient 创建指向测试服务器的客户端
func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(DefaultConfig().
		WithBaseURL(server.URL).
		WithTimeout(5*time.Second).
		WithRetry(1, 10*time.Millisecond))
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(nil)
	require.NoError(t, err)

	config := client.GetConfig()
	assert.Equal(t, "http://localhost:8000/api", config.BaseURL)
	assert.Equal(t, 3, config.MaxRetries)

	_, err = NewClient(&PyServiceConfig{})
	assert.Error(t, err)
}

func TestHTTPClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"text too long"}`))
	})

	err := client.Post(context.Background(), "/python/ner", map[string]string{"text": "x"}, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "text too long", apiErr.Detail)
}

func TestHTTPClient_RetryOnNetworkError(t *testing.T) {
	client, err := NewClient(DefaultConfig().
		WithBaseURL("http://127.0.0.1:1").
		WithTimeout(time.Second).
		WithRetry(2, time.Millisecond))
	require.NoError(t, err)

	err = client.Get(context.Background(), "/health", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP request failed")
}

func TestNERClient_Recognize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/python/ner", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req NERRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Jane works at Acme", req.Text)
		assert.Equal(t, DefaultNERModel, req.Model)
		assert.Equal(t, "simple", req.AggregationStrategy)

		json.NewEncoder(w).Encode(NERResponse{
			Entities: []NERSpan{
				{Word: "Jane", EntityGroup: "PER", Score: 0.99, Start: 0, End: 4},
				{Word: "Acme", EntityGroup: "ORG", Score: 0.97, Start: 14, End: 18},
			},
			Model: DefaultNERModel,
		})
	})

	nerClient := NewNERClient(client, "")
	entities, err := nerClient.Recognize(context.Background(), "Jane works at Acme")

	require.NoError(t, err)
	assert.Equal(t, []ner.RawEntity{
		{Text: "Jane", Label: "PER"},
		{Text: "Acme", Label: "ORG"},
	}, entities)
}

func TestNERClient_EmptyTextSkipsCall(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	entities, err := NewNERClient(client, "custom-model").Recognize(context.Background(), "  \n ")
	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSummarizeClient_Summarize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/python/summarize", r.URL.Path)

		var req SummarizeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 150, req.MaxLength)
		assert.Equal(t, 40, req.MinLength)
		assert.False(t, req.DoSample)
		assert.Equal(t, DefaultSummarizationModel, req.Model)

		json.NewEncoder(w).Encode(SummarizeResponse{SummaryText: "Jane is an engineer."})
	})

	out, err := NewSummarizeClient(client, "").Summarize(context.Background(), "narrative", summary.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "Jane is an engineer.", out)
}

func TestSummarizeClient_Error(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := NewSummarizeClient(client, "").Summarize(context.Background(), "narrative", summary.DefaultOptions())
	require.Error(t, err)

	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestPyServiceConfig_Validate(t *testing.T) {
	cfg := &PyServiceConfig{BaseURL: "http://inference:8000/api"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultNERPath, cfg.NERPath)
	assert.Equal(t, DefaultSummarizePath, cfg.SummarizePath)

	assert.Error(t, (&PyServiceConfig{BaseURL: "inference"}).Validate())
	assert.Error(t, (&PyServiceConfig{BaseURL: "http://inference", EnableTLS: true}).Validate())
	assert.NoError(t, (&PyServiceConfig{BaseURL: "https://inference", EnableTLS: true}).Validate())
	assert.Error(t, (&PyServiceConfig{BaseURL: "http://inference", MaxRetries: -1}).Validate())

	cfg = DefaultConfig().WithBaseURL("http://inference:8000/api/")
	assert.Equal(t, "http://inference:8000/api", cfg.BaseURL)
}

func TestNERClient_CustomEndpoint(t *testing.T) {
	var calledPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calledPath = r.URL.Path
		json.NewEncoder(w).Encode(NERResponse{Entities: []NERSpan{{Word: "Berlin", EntityGroup: "LOC"}}})
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(DefaultConfig().
		WithBaseURL(server.URL).
		WithEndpoints("/v2/ner", "/v2/summarize"))
	require.NoError(t, err)

	entities, err := NewNERClient(client, "").Recognize(context.Background(), "Berlin")
	require.NoError(t, err)
	assert.Equal(t, "/v2/ner", calledPath)
	assert.Equal(t, []ner.RawEntity{{Text: "Berlin", Label: "LOC"}}, entities)
}

func TestHTTPClient_RetriesGatewayErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	var out map[string]string
	require.NoError(t, client.Get(context.Background(), "/health", &out))
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	})

	err := client.Get(context.Background(), "/health", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"string detail", `{"detail":"model not loaded"}`, "model not loaded"},
		{"validation list", `{"detail":[{"loc":["body","text"],"msg":"field required"}]}`, "body.text: field required"},
		{"plain body", "Internal Server Error\n", "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorDetail([]byte(tt.payload)))
		})
	}
}
