// Package geocode はリバースジオコーディング連携機能を提供する。
// LocationIQ APIの呼び出しと結果の座標→都市/国への変換を含む。
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/funapp/internal/model"
)

// maxResponseBytes はレスポンスボディの最大読み取りサイズ。
// ジオコーダの正常応答は数KBであり、異常に大きい応答は打ち切る。
const maxResponseBytes = 1 << 20

// Client はLocationIQリバースジオコーディングAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
	apiKey     string
	maxRetries int
}

// Config はClientの生成パラメータ。
type Config struct {
	Endpoint string
	APIKey   string
	// MaxRetries は一時的な失敗（通信エラー・5xx）に対する再試行回数。
	// 0の場合は再試行しない。再試行が尽きた後も呼び出し元には
	// 単一のエラーとしてのみ報告される。
	MaxRetries int
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientにはsecurity.SSRFGuardServiceが生成したクライアントを渡すこと。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg Config) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
	}
}

// locationIQResponse はLocationIQリバースAPIのレスポンスボディ。
type locationIQResponse struct {
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Country string `json:"country"`
	} `json:"address"`
	Error string `json:"error"`
}

// Reverse は座標から候補地のリストを取得する。
// 候補が存在しない座標（ジオコーダが「該当なし」を返した場合）は空スライスを返す。
// 通信エラー・タイムアウト・プロバイダエラーはエラーとして返す。
// 判定（候補なし→LOCATION_NOT_FOUND等）は呼び出し元のサービス層が行う。
func (c *Client) Reverse(ctx context.Context, latitude, longitude float64) ([]model.Location, error) {
	var lastErr error

	// maxRetries=0なら1回だけ実行する
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying reverse geocode",
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()),
			)
		}

		locations, retryable, err := c.reverseOnce(ctx, latitude, longitude)
		if err == nil {
			return locations, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		// コンテキストが打ち切られた場合はこれ以上試行しない
		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// reverseOnce は1回分のリバースジオコーディング呼び出しを実行する。
// 戻り値のretryableは一時的な失敗（通信エラー・5xx）かどうかを示す。
func (c *Client) reverseOnce(ctx context.Context, latitude, longitude float64) ([]model.Location, bool, error) {
	// リクエストURL構築
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse geocoder endpoint: %w", err)
	}

	q := reqURL.Query()
	q.Set("key", c.apiKey)
	q.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(longitude, 'f', -1, 64))
	q.Set("format", "json")
	reqURL.RawQuery = q.Encode()

	// HTTPリクエスト作成
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build geocoder request: %w", err)
	}
	req.Header.Set("User-Agent", "FunApp/1.0 Signup Service")
	req.Header.Set("Accept", "application/json")

	// HTTPリクエスト実行
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("reverse geocode request failed",
			slog.String("error", err.Error()),
		)
		return nil, true, fmt.Errorf("geocoder request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read geocoder response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fallthrough to decode
	case resp.StatusCode == http.StatusNotFound:
		// LocationIQは該当なしの座標に404と{"error":"Unable to geocode"}を返す。
		// この組み合わせのみ障害ではなく「候補ゼロ」であり、空スライスとして報告する。
		// errorフィールドのない404（エンドポイント設定ミス等）は障害として扱う。
		var notFound locationIQResponse
		if err := json.Unmarshal(body, &notFound); err == nil && notFound.Error != "" {
			return []model.Location{}, false, nil
		}
		c.logger.Error("geocoder returned unexpected 404",
			slog.String("body", string(body)),
		)
		return nil, false, fmt.Errorf("geocoder returned status %d without a geocode error body", resp.StatusCode)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Error("geocoder returned server error",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, true, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	default:
		c.logger.Error("geocoder returned error status",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, false, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	// JSONデコード
	var result locationIQResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("failed to parse geocoder response",
			slog.String("error", err.Error()),
		)
		return nil, false, fmt.Errorf("failed to parse geocoder response: %w", err)
	}

	if result.Error != "" {
		// 200でerrorフィールドを返すプロバイダ実装にも合わせる
		return []model.Location{}, false, nil
	}

	// cityが空の場合はtown/villageで補完する（LocationIQは市レベルの
	// 粒度によってフィールドを使い分ける）
	city := result.Address.City
	if city == "" {
		city = result.Address.Town
	}
	if city == "" {
		city = result.Address.Village
	}

	if city == "" && result.Address.Country == "" {
		return []model.Location{}, false, nil
	}

	return []model.Location{
		{City: city, Country: result.Address.Country},
	}, false, nil
}
