package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPGateway 调用远端 validate-wlid 接口
type HTTPGateway struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPGateway 创建远端校验客户端
func NewHTTPGateway(endpoint string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ValidateRequest 远端校验请求体
type ValidateRequest struct {
	WLID string `json:"woWlid"`
}

// ValidateResponse 远端校验响应体
type ValidateResponse struct {
	Exists bool   `json:"exists"`
	WLID   string `json:"woWlid,omitempty"`
	Error  string `json:"error,omitempty"`
}

// MaterialExists 200返回结果；503或网络错误视为不可用；其余视为查询失败
func (g *HTTPGateway) MaterialExists(ctx context.Context, wlid string) (bool, error) {
	bodyBytes, err := json.Marshal(ValidateRequest{WLID: wlid})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode == http.StatusOK {
		// 200 但响应体不是 {exists} 时不能当作"不存在"
		var ok struct {
			Exists *bool `json:"exists"`
		}
		if err := json.Unmarshal(respBody, &ok); err != nil {
			return false, fmt.Errorf("%w: decode response: %v", ErrQuery, err)
		}
		if ok.Exists == nil {
			return false, fmt.Errorf("%w: decode response: missing exists field", ErrQuery)
		}
		return *ok.Exists, nil
	}

	var result ValidateResponse
	_ = json.Unmarshal(respBody, &result)

	switch resp.StatusCode {
	case http.StatusServiceUnavailable:
		return false, fmt.Errorf("%w: %s", ErrUnavailable, result.Error)
	default:
		return false, fmt.Errorf("%w: status %d: %s", ErrQuery, resp.StatusCode, result.Error)
	}
}
