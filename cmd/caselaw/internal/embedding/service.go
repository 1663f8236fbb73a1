package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jason-riddle/caselaw-go/cmd/caselaw/internal/metrics"
)

// Service provides embedding generation with caching and dimension checks.
type Service struct {
	client    *Client
	cache     Cache
	dimension int
	logger    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache serves repeated texts from c.
func WithCache(c Cache) ServiceOption {
	return func(s *Service) {
		s.cache = c
	}
}

// WithDimension rejects vectors whose length is not n. Zero accepts any length.
func WithDimension(n int) ServiceOption {
	return func(s *Service) {
		s.dimension = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a new embedding service
func NewService(client *Client, opts ...ServiceOption) *Service {
	s := &Service{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dimension returns the enforced vector length, or 0 if any length is accepted.
func (s *Service) Dimension() int {
	return s.dimension
}

// GenerateEmbedding generates an embedding for the given text
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		metrics.EmbeddingsFailedTotal.Add(1)
		return nil, fmt.Errorf("text cannot be empty")
	}

	var key string
	if s.cache != nil {
		key = CacheKey(s.client.Model(), text)
		if vector, ok := s.cache.Get(key); ok && s.fits(vector) {
			metrics.EmbeddingsCachedTotal.Add(1)
			s.logger.Debug("Embedding cache hit", "text_length", len(text))
			return vector, nil
		}
	}

	s.logger.Debug("Generating embedding", "text_length", len(text))

	vector, err := s.client.GenerateEmbedding(ctx, text)
	if err != nil {
		metrics.EmbeddingsFailedTotal.Add(1)
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if !s.fits(vector) {
		metrics.EmbeddingsFailedTotal.Add(1)
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(vector), s.dimension)
	}

	if s.cache != nil {
		s.cache.Put(key, vector)
	}

	metrics.EmbeddingsGeneratedTotal.Add(1)
	s.logger.Debug("Generated embedding", "dimensions", len(vector))
	return vector, nil
}

func (s *Service) fits(vector []float32) bool {
	return s.dimension == 0 || len(vector) == s.dimension
}
