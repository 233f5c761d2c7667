package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

// DefaultRespondTimeout bounds one full respond call, retrieval and
// streaming included. On expiry the turn degrades to a canned reply.
const DefaultRespondTimeout = 60 * time.Second

// syntheticReplayTimeout bounds the canned-reply replay that runs after the
// turn deadline has already fired. The replay gets its own short allowance so
// a timed-out turn still closes with a complete reply instead of a bare done
// frame.
const syntheticReplayTimeout = 10 * time.Second

// respondState tracks where in the pipeline a turn currently is; used to
// attribute failures when degrading.
type respondState string

const (
	stateRetrieving respondState = "retrieving"
	stateStreaming  respondState = "streaming"
	stateVision     respondState = "vision"
)

// ChunkHandler receives ordered chunks for one assistant turn. The final
// invocation always carries Done.
type ChunkHandler func(chunk domain.StreamChunk)

// CompletionRequest carries an assembled prompt into the streaming client
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	History      []domain.ChatMessage
}

// ChunkStream is a finite ordered chunk producer for one turn. Err is valid
// once Chunks closes.
type ChunkStream interface {
	Chunks() <-chan domain.StreamChunk
	Err() error
}

// CompletionStreamer defines the interface for streaming chat completions
type CompletionStreamer interface {
	HasCredential() bool
	StreamCompletion(ctx context.Context, req CompletionRequest) (ChunkStream, error)
}

// VisionAnalyzer defines the interface for image analysis
type VisionAnalyzer interface {
	AnalyzeImage(ctx context.Context, imageURL, prompt string) (string, error)
}

// ItemRetriever defines the interface for knowledge retrieval
type ItemRetriever interface {
	Retrieve(ctx context.Context, query string, items []*domain.KnowledgeItem) ([]*domain.KnowledgeItem, error)
}

// OrchestratorConfig holds chat pipeline tuning knobs
type OrchestratorConfig struct {
	CoalesceInterval time.Duration
	RespondTimeout   time.Duration
}

// DefaultOrchestratorConfig returns the standard chat pipeline configuration
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		CoalesceInterval: DefaultCoalesceInterval,
		RespondTimeout:   DefaultRespondTimeout,
	}
}

// Orchestrator drives one assistant turn end to end: retrieval, prompt
// assembly, streaming, and chunk delivery. Every failure path degrades to a
// canned reply through the same chunk contract, so callers always see a
// complete turn and never a raw provider error.
type Orchestrator struct {
	retriever ItemRetriever
	streamer  CompletionStreamer
	vision    VisionAnalyzer
	cfg       OrchestratorConfig
}

// NewOrchestrator creates an orchestrator. A nil streamer or vision analyzer
// means that capability is unavailable and turns degrade to canned replies.
func NewOrchestrator(retriever ItemRetriever, streamer CompletionStreamer, vision VisionAnalyzer) *Orchestrator {
	return NewOrchestratorWithConfig(retriever, streamer, vision, DefaultOrchestratorConfig())
}

// NewOrchestratorWithConfig creates an orchestrator with explicit configuration
func NewOrchestratorWithConfig(retriever ItemRetriever, streamer CompletionStreamer, vision VisionAnalyzer, cfg OrchestratorConfig) *Orchestrator {
	if cfg.RespondTimeout <= 0 {
		cfg.RespondTimeout = DefaultRespondTimeout
	}
	return &Orchestrator{retriever: retriever, streamer: streamer, vision: vision, cfg: cfg}
}

// RespondInput is everything one assistant turn needs
type RespondInput struct {
	Message       string
	ImageURL      string
	History       []domain.ChatMessage
	KnowledgeBase []*domain.KnowledgeItem
	Project       domain.ProjectConfig
}

// Respond runs one assistant turn and delivers ordered chunks to onChunk,
// ending with a Done chunk. It never returns an error to the caller; failures
// degrade to a user-safe canned reply. Cancel the context to abort early.
func (o *Orchestrator) Respond(ctx context.Context, input RespondInput, onChunk ChunkHandler) {
	if onChunk == nil {
		return
	}

	// The turn deadline bounds retrieval and streaming, but a fired deadline
	// must not abort the degradation path; that distinction needs the
	// caller's own context kept alongside.
	parent := ctx
	turn, cancel := context.WithTimeout(ctx, o.cfg.RespondTimeout)
	defer cancel()

	if input.ImageURL != "" {
		if !input.Project.MultimodalEnabled {
			o.deliverSynthetic(parent, turn, multimodalDisabledReply, onChunk)
			return
		}
		o.respondVision(parent, turn, input, onChunk)
		return
	}

	if o.streamer == nil || !o.streamer.HasCredential() {
		o.deliverSynthetic(parent, turn, CannedReply(input.Message), onChunk)
		return
	}

	state := stateRetrieving
	items, err := o.retrieveItems(turn, input)
	if err != nil {
		o.degrade(parent, turn, state, input.Message, err, onChunk)
		return
	}

	prompt := AssemblePrompt(input.Message, items, input.Project.SystemInstruction)

	state = stateStreaming
	stream, err := o.streamer.StreamCompletion(turn, CompletionRequest{
		SystemPrompt: prompt.System,
		UserPrompt:   prompt.User,
		History:      input.History,
	})
	if err != nil {
		o.degrade(parent, turn, state, input.Message, err, onChunk)
		return
	}

	o.forwardStream(parent, turn, stream, input.Message, onChunk)
}

func (o *Orchestrator) retrieveItems(ctx context.Context, input RespondInput) ([]*domain.KnowledgeItem, error) {
	if o.retriever == nil {
		return nil, nil
	}
	return o.retriever.Retrieve(ctx, input.Message, input.KnowledgeBase)
}

// forwardStream pumps coalesced chunks to the handler. A failure before any
// text was delivered degrades to a canned reply; after partial delivery the
// turn is closed with a Done chunk instead, since the partial answer is
// already on screen. A cancelled caller stops delivery entirely.
func (o *Orchestrator) forwardStream(parent, turn context.Context, stream ChunkStream, message string, onChunk ChunkHandler) {
	delivered := false
	doneSent := false

	for chunk := range CoalesceChunks(stream.Chunks(), o.cfg.CoalesceInterval) {
		if parent.Err() != nil {
			// Caller is gone; drain the coalescer without delivering.
			continue
		}
		if chunk.Text != "" {
			delivered = true
		}
		if chunk.Done {
			doneSent = true
		}
		onChunk(chunk)
	}

	if doneSent || parent.Err() != nil {
		return
	}

	err := stream.Err()
	if err == nil {
		err = turn.Err()
	}
	if err != nil && !delivered {
		o.degrade(parent, turn, stateStreaming, message, err, onChunk)
		return
	}
	if err != nil {
		log.Printf("chat: stream ended early after partial delivery: %v", err)
	}
	onChunk(domain.StreamChunk{Done: true, FinishReason: "stop"})
}

// respondVision answers an image question through the non-streaming vision
// capability and replays the answer through the chunk contract.
func (o *Orchestrator) respondVision(parent, turn context.Context, input RespondInput, onChunk ChunkHandler) {
	if o.vision == nil {
		o.degrade(parent, turn, stateVision, input.Message, domain.ErrCredentialMissing, onChunk)
		return
	}

	prompt := input.Message
	if prompt == "" {
		prompt = "请描述这张图片并回答用户可能关心的问题。"
	}

	answer, err := o.vision.AnalyzeImage(turn, input.ImageURL, prompt)
	if err != nil {
		o.degrade(parent, turn, stateVision, input.Message, err, onChunk)
		return
	}

	o.deliverSynthetic(parent, turn, answer, onChunk)
}

// degrade converts any pipeline failure into a user-safe canned reply. The
// raw error is logged, never shown. A fired turn deadline is treated like a
// provider connectivity failure.
func (o *Orchestrator) degrade(parent, turn context.Context, state respondState, message string, err error, onChunk ChunkHandler) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = domain.NewNetworkError(err)
	}

	log.Printf("chat: degrading to canned reply (state=%s code=%s): %v", state, domain.ErrorCode(err), err)

	var reply string
	switch domain.ErrorCode(err) {
	case domain.ErrCodeRateLimited:
		reply = cannedBusyReply
	case domain.ErrCodeNetwork:
		reply = cannedNetworkReply
	default:
		reply = CannedReply(message)
	}

	o.deliverSynthetic(parent, turn, reply, onChunk)
}

// replayContext picks the context a synthetic replay runs under. When the
// turn deadline has already fired but the caller is still connected, the
// replay gets its own short allowance so the canned reply lands in full; a
// cancelled caller aborts the replay as usual.
func replayContext(parent, turn context.Context) (context.Context, context.CancelFunc) {
	if turn.Err() == nil || parent.Err() != nil {
		return turn, func() {}
	}
	return context.WithTimeout(parent, syntheticReplayTimeout)
}

// deliverSynthetic replays a fixed reply character by character through the
// same coalescing stage as live streams, so consumers have one uniform
// consumption path whether or not a real model produced the text.
func (o *Orchestrator) deliverSynthetic(parent, turn context.Context, text string, onChunk ChunkHandler) {
	ctx, cancel := replayContext(parent, turn)
	defer cancel()

	in := make(chan domain.StreamChunk)
	go func() {
		defer close(in)
		for _, r := range text {
			select {
			case in <- domain.StreamChunk{Text: string(r)}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case in <- domain.StreamChunk{Done: true, FinishReason: "stop"}:
		case <-ctx.Done():
		}
	}()

	doneSent := false
	for chunk := range CoalesceChunks(in, o.cfg.CoalesceInterval) {
		if parent.Err() != nil {
			// Caller is gone; drain the coalescer without delivering.
			continue
		}
		if chunk.Done {
			doneSent = true
		}
		onChunk(chunk)
	}
	if !doneSent && parent.Err() == nil {
		// Replay allowance expired mid-reply; still close the turn.
		onChunk(domain.StreamChunk{Done: true, FinishReason: "stop"})
	}
}
