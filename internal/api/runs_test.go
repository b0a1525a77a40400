package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshrana/laddertest/internal/backtest"
	"github.com/bikeshrana/laddertest/internal/config"
	"github.com/bikeshrana/laddertest/internal/core/bar"
	"github.com/bikeshrana/laddertest/pkg/types"
)

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

func TestOverrides_Apply_OnlySetsNonNilFields(t *testing.T) {
	cfg := backtest.DefaultConfig()
	o := &Overrides{InitialCapital: float64Ptr(50_000), MaxConcurrentPositions: intPtr(1)}

	o.apply(&cfg)

	assert.Equal(t, 50_000.0, cfg.InitialCapital)
	assert.Equal(t, 1, cfg.MaxConcurrentPositions)
	assert.Equal(t, backtest.DefaultConfig().RiskPerTradePct, cfg.RiskPerTradePct, "unset fields must keep the default")
}

func TestOverrides_Apply_NilReceiverIsNoop(t *testing.T) {
	cfg := backtest.DefaultConfig()
	before := cfg

	var o *Overrides
	o.apply(&cfg)

	assert.Equal(t, before, cfg)
}

func syntheticAPIBars(symbol string) []types.Bar {
	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	var bars []types.Bar
	price := 100.0
	for i := 0; i < 40; i++ {
		price -= 0.75
		bars = append(bars, types.Bar{
			Symbol: symbol, Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open: price + 0.1, High: price + 0.3, Low: price - 0.3, Close: price, Volume: 1000,
		})
	}
	for i := 0; i < 60; i++ {
		price += 1.0
		bars = append(bars, types.Bar{
			Symbol: symbol, Timestamp: base.Add(time.Duration(40+i) * time.Minute),
			Open: price - 0.1, High: price + 0.3, Low: price - 0.3, Close: price, Volume: 1000,
		})
	}
	return bars
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	symbol := "TEST"
	source := bar.NewMemorySource(map[string][]types.Bar{symbol: syntheticAPIBars(symbol)})
	return NewServer(&config.ServerConfig{}, source, nil, nil, zerolog.Nop())
}

func TestServer_HealthzReportsHealthy(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestServer_SubmitRun_RejectsMissingSymbols(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(RunRequest{})
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/runs/", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_SubmitRun_CompletesAndIsListedAndFetchable(t *testing.T) {
	s := newTestServer(t)

	req := RunRequest{
		Symbols: []string{"TEST"},
		Start:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	body, _ := json.Marshal(req)

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/runs/", bytes.NewReader(body)))
	require.Equal(t, http.StatusAccepted, w.Code)

	var submitResp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitResp))
	runID := submitResp["run_id"]
	require.NotEmpty(t, runID)

	var status map[string]any
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w = httptest.NewRecorder()
		s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/"+runID, nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		if status["status"] == string(statusCompleted) || status["status"] == string(statusFailed) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, string(statusCompleted), status["status"], "run must complete within the test deadline")

	w = httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var listResp map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Contains(t, listResp["run_ids"], runID)

	w = httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/"+runID+"/trades", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_GetRun_UnknownIDIsNotFound(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/"+"00000000-0000-0000-0000-000000000000", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_GetRun_InvalidIDIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
