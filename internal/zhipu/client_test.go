package zhipu

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

// MockEmbeddingAPI is a mock for the provider embedding API
type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func newTestClient(api EmbeddingAPI) *Client {
	return &Client{
		api:        api,
		cfg:        Config{APIKey: "test-key"}.withDefaults(),
		dimensions: DefaultEmbeddingDimensions,
	}
}

func makeEmbedding(dimensions int) []float32 {
	embedding := make([]float32, dimensions)
	for i := range embedding {
		embedding[i] = float32(i) * 0.001
	}
	return embedding
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := newTestClient(mockAPI)

	ctx := context.Background()
	text := "How to install the smart lock"
	expected := makeEmbedding(DefaultEmbeddingDimensions)

	mockAPI.On("CreateEmbeddings", ctx, []string{text}).Return([][]float32{expected}, nil)

	embedding, err := client.GenerateEmbedding(ctx, text)

	assert.NoError(t, err)
	assert.Len(t, embedding, DefaultEmbeddingDimensions)
	assert.Equal(t, expected, embedding)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient(Config{APIKey: "test-key"})

	embedding, err := client.GenerateEmbedding(context.Background(), "")

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Equal(t, domain.ErrEmptyText, err)
}

func TestClient_GenerateEmbedding_NoCredential(t *testing.T) {
	client := NewClient(Config{})

	embedding, err := client.GenerateEmbedding(context.Background(), "anything")

	assert.Nil(t, embedding)
	assert.Equal(t, domain.ErrCredentialMissing, err)
	assert.False(t, client.HasCredential())
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := newTestClient(mockAPI)

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, []string{"text"}).Return([][]float32{make([]float32, 512)}, nil)

	embedding, err := client.GenerateEmbedding(ctx, "text")

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Equal(t, ErrWrongDimensions, err)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbeddings_BatchOrder(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := newTestClient(mockAPI)

	ctx := context.Background()
	texts := []string{"first", "second"}
	first := makeEmbedding(DefaultEmbeddingDimensions)
	second := make([]float32, DefaultEmbeddingDimensions)

	mockAPI.On("CreateEmbeddings", ctx, texts).Return([][]float32{first, second}, nil)

	embeddings, err := client.GenerateEmbeddings(ctx, texts)

	assert.NoError(t, err)
	assert.Len(t, embeddings, 2)
	assert.Equal(t, first, embeddings[0])
	assert.Equal(t, second, embeddings[1])
	mockAPI.AssertExpectations(t)
}

func TestClassifyError(t *testing.T) {
	t.Run("api error carries upstream status", func(t *testing.T) {
		err := classifyError(&openai.APIError{HTTPStatusCode: 500, Message: "internal"})
		assert.Equal(t, domain.ErrCodeProvider, domain.ErrorCode(err))

		var domainErr *domain.DomainError
		assert.True(t, errors.As(err, &domainErr))
		assert.Equal(t, 500, domainErr.Status)
	})

	t.Run("429 becomes rate limited", func(t *testing.T) {
		err := classifyError(&openai.APIError{HTTPStatusCode: 429, Message: "busy"})
		assert.Equal(t, domain.ErrCodeRateLimited, domain.ErrorCode(err))
	})

	t.Run("deadline becomes network error", func(t *testing.T) {
		err := classifyError(context.DeadlineExceeded)
		assert.Equal(t, domain.ErrCodeNetwork, domain.ErrorCode(err))
	})

	t.Run("domain errors pass through", func(t *testing.T) {
		assert.Equal(t, domain.ErrCredentialMissing, classifyError(domain.ErrCredentialMissing))
	})

	t.Run("unknown errors become provider errors", func(t *testing.T) {
		err := classifyError(errors.New("weird"))
		assert.Equal(t, domain.ErrCodeProvider, domain.ErrorCode(err))
	})
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{APIKey: "test-key"})

	assert.NotNil(t, client.api)
	assert.Equal(t, DefaultEmbeddingDimensions, client.Dimensions())
	assert.Equal(t, DefaultBaseURL, client.cfg.BaseURL)
	assert.Equal(t, DefaultChatModel, client.cfg.ChatModel)
}
