package geocode

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestClient_Reverse_Success はジオコーダの正常応答を座標候補に変換することを検証する。
func TestClient_Reverse_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("expected key query param, got %q", r.URL.Query().Get("key"))
		}
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("expected format=json, got %q", r.URL.Query().Get("format"))
		}
		if r.URL.Query().Get("lat") == "" || r.URL.Query().Get("lon") == "" {
			t.Error("expected lat/lon query params")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"address":{"city":"Cairo","country":"Egypt"}}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), Config{
		Endpoint: server.URL,
		APIKey:   "test-key",
	})

	locations, err := client.Reverse(context.Background(), 30.0444, 31.2357)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locations) != 1 {
		t.Fatalf("expected 1 location, got %d", len(locations))
	}
	if locations[0].City != "Cairo" || locations[0].Country != "Egypt" {
		t.Errorf("unexpected location: %+v", locations[0])
	}
}

// TestClient_Reverse_TownFallback はcityが空の場合にtown/villageで補完することを検証する。
func TestClient_Reverse_TownFallback(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCity string
	}{
		{"town", `{"address":{"town":"Rosetta","country":"Egypt"}}`, "Rosetta"},
		{"village", `{"address":{"village":"Tunis Village","country":"Egypt"}}`, "Tunis Village"},
		{"city wins over town", `{"address":{"city":"Cairo","town":"Giza","country":"Egypt"}}`, "Cairo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.Client(), testLogger(), Config{Endpoint: server.URL, APIKey: "k"})

			locations, err := client.Reverse(context.Background(), 31.4, 30.4)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(locations) != 1 || locations[0].City != tt.wantCity {
				t.Errorf("expected city %q, got %+v", tt.wantCity, locations)
			}
		})
	}
}

// TestClient_Reverse_NotFound は該当なし応答（404）を空スライスとして返すことを検証する。
func TestClient_Reverse_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), Config{Endpoint: server.URL, APIKey: "k"})

	locations, err := client.Reverse(context.Background(), 0.0, 0.0)
	if err != nil {
		t.Fatalf("expected no error for zero-candidate coordinates, got %v", err)
	}
	if len(locations) != 0 {
		t.Errorf("expected empty slice, got %+v", locations)
	}
}

// TestClient_Reverse_BareNotFound はジオコードエラーボディを伴わない404
// （エンドポイント設定ミス等）をエラーとして返すことを検証する。
func TestClient_Reverse_BareNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`404 page not found`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), Config{Endpoint: server.URL, APIKey: "k"})

	_, err := client.Reverse(context.Background(), 30.0, 31.0)
	if err == nil {
		t.Fatal("expected error for 404 without geocode error body")
	}
}

// TestClient_Reverse_ErrorField は200応答内のerrorフィールドを候補ゼロとして
// 扱うことを検証する。
func TestClient_Reverse_ErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), Config{Endpoint: server.URL, APIKey: "k"})

	locations, err := client.Reverse(context.Background(), 0.0, 0.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locations) != 0 {
		t.Errorf("expected empty slice, got %+v", locations)
	}
}

// TestClient_Reverse_ServerError は5xx応答をエラーとして返すことを検証する。
func TestClient_Reverse_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), Config{Endpoint: server.URL, APIKey: "k"})

	_, err := client.Reverse(context.Background(), 30.0, 31.0)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

// TestClient_Reverse_RetryOn5xx はMaxRetries設定時に5xxで再試行することを検証する。
func TestClient_Reverse_RetryOn5xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"address":{"city":"Cairo","country":"Egypt"}}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), Config{
		Endpoint:   server.URL,
		APIKey:     "k",
		MaxRetries: 2,
	})

	locations, err := client.Reverse(context.Background(), 30.0, 31.0)
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if len(locations) != 1 {
		t.Fatalf("expected 1 location, got %d", len(locations))
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
}

// TestClient_Reverse_NoRetryByDefault はデフォルト設定（MaxRetries=0）で
// 再試行しないことを検証する。
func TestClient_Reverse_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), Config{Endpoint: server.URL, APIKey: "k"})

	_, err := client.Reverse(context.Background(), 30.0, 31.0)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 call, got %d", got)
	}
}

// TestClient_Reverse_NoRetryOn4xx はクライアントエラー（401等）で再試行しない
// ことを検証する。
func TestClient_Reverse_NoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), Config{
		Endpoint:   server.URL,
		APIKey:     "bad-key",
		MaxRetries: 3,
	})

	_, err := client.Reverse(context.Background(), 30.0, 31.0)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 call for non-retryable status, got %d", got)
	}
}

// TestClient_Reverse_ContextTimeout はコンテキストタイムアウト時にエラーを
// 返すことを検証する。
func TestClient_Reverse_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"address":{"city":"Cairo","country":"Egypt"}}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), Config{
		Endpoint:   server.URL,
		APIKey:     "k",
		MaxRetries: 3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Reverse(ctx, 30.0, 31.0)
	if err == nil {
		t.Fatal("expected error on context timeout")
	}
	// コンテキスト打ち切り後に再試行を続けないこと
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("retries continued past context deadline: %v", elapsed)
	}
}

// TestClient_Reverse_EmptyAddress は住所フィールドが全て空の場合に候補ゼロと
// して扱うことを検証する。
func TestClient_Reverse_EmptyAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address":{}}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), Config{Endpoint: server.URL, APIKey: "k"})

	locations, err := client.Reverse(context.Background(), 30.0, 31.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locations) != 0 {
		t.Errorf("expected empty slice for empty address, got %+v", locations)
	}
}
