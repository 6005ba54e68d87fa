package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/contenox/modelrouter/libtracker"
)

type openAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracker    libtracker.ActivityTracker
}

func (c *openAIClient) sendRequest(ctx context.Context, endpoint string, request any, response any) error {
	url := c.baseURL + endpoint

	reportErr, reportChange, end := c.tracker.Start(
		ctx,
		"http_request",
		"openai",
		"endpoint", endpoint,
		"base_url", c.baseURL,
	)
	defer end()

	var reqBody io.Reader
	if request != nil {
		marshaled, err := json.Marshal(request)
		if err != nil {
			err = fmt.Errorf("failed to marshal request: %w", err)
			reportErr(err)
			return err
		}
		reqBody = bytes.NewBuffer(marshaled)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		err = fmt.Errorf("failed to create request: %w", err)
		reportErr(err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("HTTP request failed: %w", err)
		reportErr(err)
		return err
	}
	defer resp.Body.Close()

	reportChange("http_response", map[string]any{"status_code": resp.StatusCode})

	if resp.StatusCode != http.StatusOK {
		err := decodeAPIError(resp)
		reportErr(err)
		return err
	}

	if response != nil {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			err = fmt.Errorf("failed to decode response: %w", err)
			reportErr(err)
			return err
		}
	}
	return nil
}

// sendMultipart posts a file-upload form, used by the transcription endpoint.
func (c *openAIClient) sendMultipart(ctx context.Context, endpoint string, fields map[string]string, fileField, fileName string, file []byte, response any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("failed to write form field %q: %w", key, err)
		}
	}
	part, err := writer.CreateFormFile(fileField, fileName)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(file); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if response != nil {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var errorResponse struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	bodyBytes, readErr := io.ReadAll(resp.Body)
	if readErr == nil {
		if jsonErr := json.Unmarshal(bodyBytes, &errorResponse); jsonErr == nil && errorResponse.Error.Message != "" {
			return fmt.Errorf("OpenAI API returned non-200 status: %d, Type: %s, Code: %v, Message: %s",
				resp.StatusCode, errorResponse.Error.Type, errorResponse.Error.Code, errorResponse.Error.Message)
		}
		return fmt.Errorf("OpenAI API returned non-200 status: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}
	return fmt.Errorf("OpenAI API returned non-200 status: %d", resp.StatusCode)
}
