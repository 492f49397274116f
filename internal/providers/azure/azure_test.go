package azure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/models"
)

func TestConfigured(t *testing.T) {
	full := config.ProviderConfig{Enabled: true, APIKey: "k", BaseURL: "https://acme.openai.azure.com", Model: "gpt-4o"}
	assert.True(t, Configured(full))

	noDeployment := full
	noDeployment.Model = ""
	assert.False(t, Configured(noDeployment))

	noEndpoint := full
	noEndpoint.BaseURL = ""
	assert.False(t, Configured(noEndpoint))
}

func TestExecuteUsesDeploymentAndKeyHeader(t *testing.T) {
	var path, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("Api-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"Acme is listed at https://acme.com/crm"}}],"usage":{"prompt_tokens":100,"completion_tokens":50,"total_tokens":150}}`))
	}))
	defer srv.Close()

	a := New(config.ProviderConfig{
		Enabled:           true,
		APIKey:            "azure-key",
		BaseURL:           srv.URL,
		Model:             "brand-deploy",
		MaxAttempts:       1,
		RetryDelaySeconds: -1,
	})
	assert.Equal(t, "azure-openai", a.Name())

	resp, err := a.Execute(context.Background(), &models.ProviderRequest{ID: "r1", Prompt: "best crm"})
	require.NoError(t, err)
	require.Equal(t, models.StatusSuccess, resp.Status, resp.Error)

	assert.Equal(t, "azure-key", key)
	assert.Contains(t, path, "brand-deploy")
	require.Len(t, resp.Data.Citations, 1)
	assert.Equal(t, "https://acme.com/crm", resp.Data.Citations[0].URL)
	assert.InDelta(t, 100*2.5/1e6+50*10.0/1e6, resp.Cost, 1e-9)
}
