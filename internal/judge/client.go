package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// 引擎状态 ID。1=In Queue, 2=Processing, 3=Accepted；3 到 14 都是终态。
const (
	StatusInQueue    = 1
	StatusProcessing = 2
	StatusAccepted   = 3
)

// IsTerminalStatus 判断引擎状态 ID 是否是终态。
func IsTerminalStatus(id int) bool {
	return id >= 3 && id <= 14
}

// SubmissionStatus 是引擎返回的状态对象。
type SubmissionStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// SubmissionResult 是引擎对一次提交的完整查询结果。
// Time 由引擎以字符串秒数返回。
type SubmissionResult struct {
	Token         string           `json:"token"`
	Status        SubmissionStatus `json:"status"`
	Stdout        string           `json:"stdout"`
	Stderr        string           `json:"stderr"`
	CompileOutput string           `json:"compile_output"`
	Message       string           `json:"message"`
	Time          string           `json:"time"`
	Memory        *int             `json:"memory"`
	ExitCode      *int             `json:"exit_code"`
}

// Client 是执行引擎的 HTTP 客户端。
type Client struct {
	baseURL    string
	apiKey     string
	apiHost    string
	httpClient *http.Client
}

// NewClient 创建执行引擎客户端。
// apiKey 和 apiHost 对自建引擎可以为空，对 RapidAPI 托管实例必填。
func NewClient(baseURL, apiKey, apiHost string) *Client {
	if baseURL == "" {
		panic("judge engine base URL cannot be empty")
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		apiHost: apiHost,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type submissionRequest struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin,omitempty"`
}

type submissionResponse struct {
	Token string `json:"token"`
}

// Submit 向引擎提交一份代码，返回用于后续查询的 token。
func (c *Client) Submit(ctx context.Context, languageID int, sourceCode, stdin string) (string, error) {
	body, err := json.Marshal(submissionRequest{
		SourceCode: sourceCode,
		LanguageID: languageID,
		Stdin:      stdin,
	})
	if err != nil {
		return "", fmt.Errorf("judge: marshal submission: %w", err)
	}

	endpoint := c.baseURL + "/submissions?base64_encoded=false&wait=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("judge: build submit request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("judge: submit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logrus.WithFields(logrus.Fields{"status": resp.StatusCode, "body": string(data)}).
			Warn("Judge engine rejected submission")
		return "", fmt.Errorf("judge: unexpected submit status %d", resp.StatusCode)
	}

	var parsed submissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("judge: decode submit response: %w", err)
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("judge: submit response missing token")
	}
	return parsed.Token, nil
}

// Get 查询一次提交的当前结果。
func (c *Client) Get(ctx context.Context, token string) (*SubmissionResult, error) {
	endpoint := fmt.Sprintf("%s/submissions/%s?base64_encoded=false", c.baseURL, url.PathEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("judge: build get request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("judge: get request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logrus.WithFields(logrus.Fields{"status": resp.StatusCode, "body": string(data)}).
			Warn("Judge engine returned error for submission query")
		return nil, fmt.Errorf("judge: unexpected get status %d", resp.StatusCode)
	}

	var result SubmissionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("judge: decode get response: %w", err)
	}
	return &result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
	}
	if c.apiHost != "" {
		req.Header.Set("X-RapidAPI-Host", c.apiHost)
	}
}
