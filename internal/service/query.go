package service

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/valyu-go"
	"github.com/kitbuilder587/valyu-go/internal/cache/memory"
	"github.com/kitbuilder587/valyu-go/internal/domain"
	"github.com/kitbuilder587/valyu-go/internal/metrics"
)

// QueryClient is the part of *valyu.Client used for one-shot queries.
type QueryClient interface {
	DeepSearch(ctx context.Context, req valyu.SearchRequest) (*valyu.SearchResponse, error)
	Answer(ctx context.Context, req valyu.AnswerRequest) (*valyu.AnswerResponse, error)
}

type QueryConfig struct {
	MaxResults int
	CacheTTL   time.Duration
	Timeout    time.Duration
}

type QueryServiceDeps struct {
	Client  QueryClient
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Config  QueryConfig

	// кеши опциональны, без них каждый запрос идёт в API
	SearchCache *memory.Cache[*valyu.SearchResponse]
	AnswerCache *memory.Cache[*valyu.AnswerResponse]
}

// QueryService answers search and ask requests, caching replies per
// normalized query.
type QueryService struct {
	client   QueryClient
	logger   *zap.Logger
	metrics  *metrics.Metrics
	config   QueryConfig
	searches *memory.Cache[*valyu.SearchResponse]
	answers  *memory.Cache[*valyu.AnswerResponse]
}

func NewQueryService(deps QueryServiceDeps) *QueryService {
	if deps.Config.MaxResults == 0 {
		deps.Config.MaxResults = 5
	}
	if deps.Config.CacheTTL == 0 {
		deps.Config.CacheTTL = time.Hour
	}
	if deps.Config.Timeout == 0 {
		deps.Config.Timeout = 90 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	if deps.SearchCache != nil {
		deps.SearchCache.LoadTimeout = deps.Config.Timeout
	}
	if deps.AnswerCache != nil {
		deps.AnswerCache.LoadTimeout = deps.Config.Timeout
	}

	if deps.Metrics != nil {
		if deps.SearchCache != nil {
			deps.SearchCache.OnHit = deps.Metrics.RecordCacheHit
			deps.SearchCache.OnMiss = deps.Metrics.RecordCacheMiss
		}
		if deps.AnswerCache != nil {
			deps.AnswerCache.OnHit = deps.Metrics.RecordCacheHit
			deps.AnswerCache.OnMiss = deps.Metrics.RecordCacheMiss
		}
	}

	return &QueryService{
		client:   deps.Client,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		config:   deps.Config,
		searches: deps.SearchCache,
		answers:  deps.AnswerCache,
	}
}

func (s *QueryService) Search(ctx context.Context, query string) (*valyu.SearchResponse, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	load := func(ctx context.Context) (*valyu.SearchResponse, error) {
		req := valyu.NewSearchRequest(query).WithMaxResults(s.config.MaxResults)
		return s.client.DeepSearch(ctx, req)
	}

	if s.searches == nil {
		return load(ctx)
	}
	resp, err := s.searches.GetOrLoad(ctx, cacheKey("search", query), s.config.CacheTTL, load)
	if err != nil {
		s.logger.Warn("search failed", zap.Error(err), zap.Int("query_length", len(query)))
		return nil, err
	}
	return resp, nil
}

func (s *QueryService) Ask(ctx context.Context, query string) (*valyu.AnswerResponse, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	load := func(ctx context.Context) (*valyu.AnswerResponse, error) {
		return s.client.Answer(ctx, valyu.NewAnswerRequest(query))
	}

	if s.answers == nil {
		return load(ctx)
	}
	resp, err := s.answers.GetOrLoad(ctx, cacheKey("answer", query), s.config.CacheTTL, load)
	if err != nil {
		s.logger.Warn("answer failed", zap.Error(err), zap.Int("query_length", len(query)))
		return nil, err
	}
	return resp, nil
}

func cacheKey(kind, query string) string {
	hash := sha256.Sum256([]byte(normalizeQuery(query)))
	return fmt.Sprintf("%s:%x", kind, hash[:8])
}

func normalizeQuery(q string) string {
	q = strings.ToLower(q)
	return strings.Join(strings.Fields(q), " ")
}
