// Package ollama is a minimal client for a local Ollama server.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.1:8b"
	DefaultTimeout = 30 * time.Second

	probeTimeout = 5 * time.Second
)

// Endpoint selects the generation API.
type Endpoint string

const (
	EndpointGenerate Endpoint = "generate"
	EndpointChat     Endpoint = "chat"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model    string    `json:"model"`
	Prompt   string    `json:"prompt,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	Stream   bool      `json:"stream"`
}

type chunk struct {
	Response string  `json:"response"`
	Message  Message `json:"message"`
	Done     bool    `json:"done"`
	Error    string  `json:"error"`
}

// Client talks to the Ollama HTTP API.
type Client struct {
	baseURL  string
	model    string
	endpoint Endpoint
	stream   bool
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

func WithModel(m string) Option { return func(c *Client) { c.model = m } }

func WithEndpoint(e Endpoint) Option { return func(c *Client) { c.endpoint = e } }

func WithStream(s bool) Option { return func(c *Client) { c.stream = s } }

func WithTimeout(d time.Duration) Option { return func(c *Client) { c.http.Timeout = d } }

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// New returns a Client for baseURL (DefaultBaseURL when empty).
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    DefaultModel,
		endpoint: EndpointGenerate,
		http:     &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Available reports whether the server answers /api/tags.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	resp, err := c.get(ctx, "/api/tags")
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Models lists the names of locally installed models.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	resp, err := c.get(ctx, "/api/tags")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: tags: HTTP %d", resp.StatusCode)
	}
	var body struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("ollama: decode tags: %w", err)
	}
	names := make([]string, 0, len(body.Models))
	for _, m := range body.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

// Generate sends prompt through the configured endpoint and returns the
// full reply text. The chat endpoint wraps prompt as a single user turn.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.endpoint == EndpointChat {
		return c.Chat(ctx, []Message{{Role: "user", Content: prompt}})
	}
	return c.do(ctx, "/api/generate", request{Model: c.model, Prompt: prompt, Stream: c.stream})
}

// Chat sends messages to /api/chat and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	return c.do(ctx, "/api/chat", request{Model: c.model, Messages: messages, Stream: c.stream})
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("ollama: new request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: %s: %w", path, err)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, path string, body request) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("ollama: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ollama: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama: %s: HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if body.Stream {
		return readStream(resp.Body)
	}
	var ch chunk
	if err := json.NewDecoder(resp.Body).Decode(&ch); err != nil {
		return "", fmt.Errorf("ollama: decode: %w", err)
	}
	if ch.Error != "" {
		return "", errors.New("ollama: " + ch.Error)
	}
	return ch.text(), nil
}

// readStream concatenates an NDJSON stream. Undecodable lines are skipped.
func readStream(r io.Reader) (string, error) {
	var sb strings.Builder
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ch chunk
		if err := json.Unmarshal(line, &ch); err != nil {
			continue
		}
		if ch.Error != "" {
			return "", errors.New("ollama: " + ch.Error)
		}
		sb.WriteString(ch.text())
		if ch.Done {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("ollama: read stream: %w", err)
	}
	return sb.String(), nil
}

func (ch chunk) text() string {
	if ch.Response != "" {
		return ch.Response
	}
	return ch.Message.Content
}
