package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"wisefido-vitalsync/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// 后端接口；{patientId} 由 resty 做百分号编码
const (
	EndpointPatients      = "/patients"
	EndpointLatestVitals  = "/latest/vitals/{patientId}"
	EndpointHistoryVitals = "/history/vitals/{patientId}"
	EndpointLatestECG     = "/latest/ecg/{patientId}"
)

// ErrNotFound 匹配状态码为 404 的 APIError
var ErrNotFound = errors.New("not found")

// APIError 后端返回的非 2xx 响应
// Endpoint 为路由模板，Path 为实际请求的（已编码）路径
type APIError struct {
	Endpoint   string
	Path       string
	PatientID  string
	StatusCode int
}

func (e *APIError) Error() string {
	path := e.Path
	if path == "" {
		path = e.Endpoint
	}
	if e.PatientID != "" {
		return fmt.Sprintf("%s [%s] -> %d", path, e.PatientID, e.StatusCode)
	}
	return fmt.Sprintf("%s -> %d", path, e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Option TelemetryClient 的可选项
type Option func(*TelemetryClient)

// WithTimeout 单次请求超时
func WithTimeout(d time.Duration) Option {
	return func(c *TelemetryClient) {
		c.httpClient.SetTimeout(d)
	}
}

// WithRetries 传输错误重试 count 次（HTTP 状态码不重试）
func WithRetries(count int, wait time.Duration) Option {
	return func(c *TelemetryClient) {
		c.httpClient.
			SetRetryCount(count).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(4 * wait)
	}
}

// TelemetryClient 生命体征后端的只读客户端
type TelemetryClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewTelemetryClient 创建客户端
func NewTelemetryClient(baseURL string, logger *zap.Logger, opts ...Option) *TelemetryClient {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(1).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json")

	c := &TelemetryClient{
		httpClient: httpClient,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListPatients 获取患者 ID 列表（保持后端顺序）
func (c *TelemetryClient) ListPatients(ctx context.Context) ([]string, error) {
	var out models.PatientsResponse
	if err := c.get(ctx, EndpointPatients, "", nil, &out); err != nil {
		return nil, err
	}
	if out.Patients == nil {
		return []string{}, nil
	}
	return out.Patients, nil
}

// LatestVitals 获取最新一条体征；缺少 "latest" 时返回全 nil 的快照
func (c *TelemetryClient) LatestVitals(ctx context.Context, patientID string) (*models.VitalsSnapshot, error) {
	var out models.LatestVitalsResponse
	if err := c.get(ctx, EndpointLatestVitals, patientID, nil, &out); err != nil {
		return nil, err
	}
	if out.Latest == nil {
		return &models.VitalsSnapshot{}, nil
	}
	return out.Latest, nil
}

// History 获取最多 limit 条历史记录（最新在前）
func (c *TelemetryClient) History(ctx context.Context, patientID string, limit int) ([]models.VitalsSnapshot, error) {
	var out models.HistoryResponse
	query := map[string]string{"limit": strconv.Itoa(limit)}
	if err := c.get(ctx, EndpointHistoryVitals, patientID, query, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// LatestECG 获取最新 ECG 波形；null 采样点保留为 nil
func (c *TelemetryClient) LatestECG(ctx context.Context, patientID string) ([]*float64, error) {
	var out models.ECGResponse
	if err := c.get(ctx, EndpointLatestECG, patientID, nil, &out); err != nil {
		return nil, err
	}
	return out.Samples(), nil
}

func (c *TelemetryClient) get(ctx context.Context, endpoint, patientID string, query map[string]string, out any) error {
	req := c.httpClient.R().SetContext(ctx)
	if patientID != "" {
		req.SetPathParam("patientId", patientID)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", endpoint, err)
	}

	if !resp.IsSuccess() {
		path := endpoint
		if raw := resp.Request.RawRequest; raw != nil && raw.URL != nil {
			path = raw.URL.EscapedPath()
		}
		c.logger.Debug("Backend returned error status",
			zap.String("path", path),
			zap.String("patient_id", patientID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return &APIError{Endpoint: endpoint, Path: path, PatientID: patientID, StatusCode: resp.StatusCode()}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}
