package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/jobmatch/internal/apperr"
	"github.com/hyperjump/jobmatch/pkg/utils"
)

// DefaultBatchSize is the number of texts sent per backend call when the caller does not choose one.
const DefaultBatchSize = 32

// Client batches requests to an Embedder. Document embedding degrades a
// failed batch to zero vectors; query embedding never degrades.
type Client struct {
	embedder  Embedder
	batchSize int
	timeout   time.Duration
	cache     *EmbeddingCache
	logger    *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger for batch failure warnings.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout bounds every backend call. Zero disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithBatchSize sets the default batch size.
func WithBatchSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithQueryCache caches up to size query embeddings.
func WithQueryCache(size int) ClientOption {
	return func(c *Client) {
		c.cache = NewEmbeddingCache(size)
	}
}

// NewClient wraps embedder.
func NewClient(embedder Embedder, opts ...ClientOption) *Client {
	c := &Client{embedder: embedder, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embeddings is the result of EmbedDocuments. Vectors has one entry per
// input text; entries covered by a Failures batch are zero vectors.
type Embeddings struct {
	Vectors  [][]float32
	Failures []*apperr.BatchFailure
}

// Degraded reports whether input i belongs to a failed batch.
func (e *Embeddings) Degraded(i int) bool {
	for _, f := range e.Failures {
		if i >= f.Start && i < f.End {
			return true
		}
	}
	return false
}

// DegradedIndexes lists the inputs that received a zero-vector placeholder, in order.
func (e *Embeddings) DegradedIndexes() []int {
	var out []int
	for _, f := range e.Failures {
		for i := f.Start; i < f.End; i++ {
			out = append(out, i)
		}
	}
	return out
}

// EmbedDocuments embeds texts in order, batchSize at a time (0 selects the
// client default). A batch that fails, times out, or returns the wrong
// number of vectors is replaced by zero vectors and reported in Failures;
// the remaining batches still run. Cancelling ctx aborts the call.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string, batchSize int) (*Embeddings, error) {
	if batchSize < 0 {
		return nil, apperr.InvalidParameter("batch_size must be positive, got %d", batchSize)
	}
	if batchSize == 0 {
		batchSize = c.batchSize
	}
	dims := c.embedder.Dimensions()
	out := &Embeddings{Vectors: make([][]float32, len(texts))}

	for batch, start := 0, 0; start < len(texts); batch, start = batch+1, start+batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := c.embedBatch(ctx, texts[start:end], TaskRetrievalDocument)
		if err == nil && len(vecs) != end-start {
			err = fmt.Errorf("backend returned %d vectors for %d texts", len(vecs), end-start)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("embedding cancelled at batch %d: %w", batch, ctxErr)
			}
			failure := &apperr.BatchFailure{Batch: batch, Start: start, End: end, Err: err}
			out.Failures = append(out.Failures, failure)
			if c.logger != nil {
				c.logger.Warn("embedding batch failed, using zero vectors",
					zap.String("backend", c.embedder.Name()),
					zap.Int("batch", batch),
					zap.Int("start", start),
					zap.Int("end", end),
					zap.Error(err))
			}
			for i := start; i < end; i++ {
				out.Vectors[i] = make([]float32, dims)
			}
			continue
		}
		copy(out.Vectors[start:end], vecs)
	}
	return out, nil
}

// EmbedQuery embeds a single query text. Any backend failure, or an
// all-zero result, is reported as apperr.ErrEmbeddingUnavailable.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.InvalidParameter("query text cannot be empty")
	}
	if c.cache != nil {
		if v, ok := c.cache.Get(text); ok {
			return v, nil
		}
	}
	vecs, err := c.embedBatch(ctx, []string{text}, TaskRetrievalQuery)
	if err != nil {
		return nil, apperr.Unavailable(err)
	}
	if len(vecs) != 1 {
		return nil, apperr.Unavailable(fmt.Errorf("backend returned %d vectors for 1 text", len(vecs)))
	}
	if utils.IsZero(vecs[0]) {
		return nil, apperr.Unavailable(errors.New("backend returned a zero vector"))
	}
	if c.cache != nil {
		c.cache.Set(text, vecs[0])
	}
	return vecs[0], nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.embedder.EmbedBatch(ctx, texts, task)
}

// Dimensions returns the backend's vector dimension.
func (c *Client) Dimensions() int { return c.embedder.Dimensions() }

// Name returns the backend name.
func (c *Client) Name() string { return c.embedder.Name() }

// Close releases the backend.
func (c *Client) Close() error { return c.embedder.Close() }
