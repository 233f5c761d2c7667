package zhipu

import (
	"context"
	"errors"
	"net"
	"net/url"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

const (
	// DefaultBaseURL is the Zhipu/GLM OpenAI-compatible API root
	DefaultBaseURL = "https://open.bigmodel.cn/api/paas/v4"
	// DefaultEmbeddingModel is the GLM model used for generating embeddings
	DefaultEmbeddingModel = "embedding-3"
	// DefaultEmbeddingDimensions is the configured embedding dimension.
	// Retrieval treats any vector of a different length as "not vectorized".
	DefaultEmbeddingDimensions = 768
	// DefaultChatModel is the GLM model used for chat completions
	DefaultChatModel = "glm-4-flash"
	// DefaultVisionModel is the GLM model used for image analysis
	DefaultVisionModel = "glm-4v-flash"
)

var (
	// ErrWrongDimensions is returned when an embedding has the wrong dimensions
	ErrWrongDimensions = domain.NewDomainError(domain.ErrCodeDimensionMismatch, "embedding has wrong dimensions")
	// ErrNoEmbeddingData is returned when the provider returns an empty data array
	ErrNoEmbeddingData = domain.NewDomainError(domain.ErrCodeProvider, "no embedding data returned")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VisionAPI defines the interface for image analysis
type VisionAPI interface {
	AnalyzeImage(ctx context.Context, imageURL, prompt string) (string, error)
}

// Config holds provider client configuration. An empty APIKey is a valid
// state: calls fail with CredentialMissing and the caller degrades.
type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
	VisionModel         string
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.EmbeddingDimensions <= 0 {
		c.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if c.ChatModel == "" {
		c.ChatModel = DefaultChatModel
	}
	if c.VisionModel == "" {
		c.VisionModel = DefaultVisionModel
	}
	return c
}

// Client wraps the Zhipu/GLM API behind capability interfaces
type Client struct {
	api        EmbeddingAPI
	vision     VisionAPI
	cfg        Config
	dimensions int
}

// OpenAICompatAdapter calls the GLM API through the OpenAI-compatible surface
type OpenAICompatAdapter struct {
	client         *openai.Client
	embeddingModel string
	dimensions     int
	visionModel    string
}

func NewOpenAICompatAdapter(cfg Config) *OpenAICompatAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	return &OpenAICompatAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: cfg.EmbeddingModel,
		dimensions:     cfg.EmbeddingDimensions,
		visionModel:    cfg.VisionModel,
	}
}

// CreateEmbeddings calls the embeddings endpoint. Vectors come back in the
// same order as the input texts.
func (a *OpenAICompatAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(a.embeddingModel),
		Dimensions: a.dimensions,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, ErrNoEmbeddingData
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		embeddings[i] = item.Embedding
	}
	return embeddings, nil
}

// AnalyzeImage sends an image plus prompt to the vision model and returns the
// text answer. Non-streaming.
func (a *OpenAICompatAdapter) AnalyzeImage(ctx context.Context, imageURL, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageURL}},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", domain.NewDomainError(domain.ErrCodeProvider, "no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// NewClient creates a new GLM client with the given configuration
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		api:        NewOpenAICompatAdapter(cfg),
		vision:     NewOpenAICompatAdapter(cfg),
		cfg:        cfg,
		dimensions: cfg.EmbeddingDimensions,
	}
}

// NewClientFromEnv creates a client using the ZHIPU_API_KEY environment variable.
// A missing key is not an error here; calls will fail with CredentialMissing.
func NewClientFromEnv() *Client {
	return NewClient(Config{APIKey: os.Getenv("ZHIPU_API_KEY")})
}

// HasCredential reports whether an API key is configured
func (c *Client) HasCredential() bool {
	return c.cfg.APIKey != ""
}

// Dimensions returns the configured embedding dimension
func (c *Client) Dimensions() int {
	return c.dimensions
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.ErrEmptyText
	}

	embeddings, err := c.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// GenerateEmbeddings generates one embedding per input text, in input order.
// Long inputs are passed through untruncated; the provider enforces limits.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, domain.ErrEmptyText
	}
	for _, text := range texts {
		if text == "" {
			return nil, domain.ErrEmptyText
		}
	}
	if !c.HasCredential() {
		return nil, domain.ErrCredentialMissing
	}

	embeddings, err := c.api.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, classifyError(err)
	}

	for _, embedding := range embeddings {
		if len(embedding) != c.dimensions {
			return nil, ErrWrongDimensions
		}
	}

	return embeddings, nil
}

// AnalyzeImage answers a prompt about an image (data URI or URL)
func (c *Client) AnalyzeImage(ctx context.Context, imageURL, prompt string) (string, error) {
	if imageURL == "" {
		return "", domain.ErrEmptyText
	}
	if !c.HasCredential() {
		return "", domain.ErrCredentialMissing
	}

	answer, err := c.vision.AnalyzeImage(ctx, imageURL, prompt)
	if err != nil {
		return "", classifyError(err)
	}
	return answer, nil
}

// classifyError maps transport and provider failures onto the domain error
// taxonomy so the orchestrator can pick the right degradation path.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewProviderError(apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode > 0 {
			return domain.NewProviderError(reqErr.HTTPStatusCode, reqErr.Error())
		}
		return domain.NewNetworkError(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewNetworkError(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.NewNetworkError(err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return domain.NewNetworkError(err)
	}

	return domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "provider call failed", err)
}
