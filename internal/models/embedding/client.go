package embedding

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/singleflight"

	"github.com/policyqa/core/internal/types/interfaces"
)

// Client adapts an Embedder into the abstract interfaces.EmbeddingClient
// port: it L2-normalizes every vector (cache Stage C cosine similarity and
// dense retrieval both assume unit-norm vectors) and de-duplicates
// concurrent identical single-text requests with singleflight, so
// simultaneous embeds of the same text trigger exactly one upstream call.
type Client struct {
	embedder Embedder
	group    singleflight.Group
}

// NewClient wraps an Embedder as an interfaces.EmbeddingClient.
func NewClient(embedder Embedder) *Client {
	return &Client{embedder: embedder}
}

// Embed returns one L2-normalized vector per input text, in order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) == 1 {
		vec, err, _ := c.group.Do(texts[0], func() (interface{}, error) {
			vecs, err := c.embedder.BatchEmbed(ctx, texts)
			if err != nil {
				return nil, err
			}
			if len(vecs) == 0 {
				return nil, fmt.Errorf("embedder returned no vectors")
			}
			return normalize(vecs[0]), nil
		})
		if err != nil {
			return nil, err
		}
		return [][]float32{vec.([]float32)}, nil
	}

	vecs, err := c.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("batch embed: %w", err)
	}
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		out[i] = normalize(v)
	}
	return out, nil
}

// Dimensions returns the embedder's configured vector width.
func (c *Client) Dimensions() int {
	return c.embedder.GetDimensions()
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

var _ interfaces.EmbeddingClient = (*Client)(nil)
