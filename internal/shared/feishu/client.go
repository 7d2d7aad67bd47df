package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL 飞书开放平台API基础地址
const DefaultBaseURL = "https://open.feishu.cn"

// FeishuClient 飞书API基础客户端，负责token缓存和通用请求
type FeishuClient struct {
	baseURL     string
	appID       string
	appSecret   string
	tokenCache  string
	tokenExpire time.Time
	mu          sync.RWMutex
	httpClient  *http.Client
}

// NewClient 创建飞书客户端实例，baseURL为空时使用开放平台地址
func NewClient(baseURL, appID, appSecret string) *FeishuClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &FeishuClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		appID:     appID,
		appSecret: appSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetAppAccessToken 获取应用访问令牌（自建应用），提前60秒刷新
func (c *FeishuClient) GetAppAccessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.tokenCache != "" && time.Now().Before(c.tokenExpire) {
		token := c.tokenCache
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// 双重检查：其他goroutine可能已经刷新了token
	if c.tokenCache != "" && time.Now().Before(c.tokenExpire) {
		return c.tokenCache, nil
	}

	bodyBytes, _ := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/open-apis/auth/v3/app_access_token/internal",
		bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("创建token请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求飞书token失败: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code           int    `json:"code"`
		Msg            string `json:"msg"`
		AppAccessToken string `json:"app_access_token"`
		Expire         int    `json:"expire"` // 秒
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("解析token响应失败: %w", err)
	}
	if result.Code != 0 {
		return "", fmt.Errorf("飞书token错误[%d]: %s", result.Code, result.Msg)
	}

	c.tokenCache = result.AppAccessToken
	c.tokenExpire = time.Now().Add(time.Duration(result.Expire-60) * time.Second)

	return result.AppAccessToken, nil
}

// doRequest 执行飞书API请求，自动带上token并检查飞书统一错误码
func (c *FeishuClient) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	token, err := c.GetAppAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("获取访问令牌失败: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应体失败: %w", err)
	}

	var baseResp BaseResponse
	if err := json.Unmarshal(respBody, &baseResp); err != nil {
		return fmt.Errorf("解析响应基础结构失败: %w", err)
	}
	if baseResp.Code != 0 {
		return fmt.Errorf("飞书API错误[%d]: %s (path=%s)", baseResp.Code, baseResp.Msg, path)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("解析响应体失败: %w", err)
		}
	}
	return nil
}
