package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/query"
)

type seedRepository interface {
	BulkUpsert(ctx context.Context, items []models.Scholarship) error
}

type fixtureDocument struct {
	Scholarships []map[string]any `yaml:"scholarships"`
}

// LoadFixtures decodes YAML fixtures into normalized records. The document is
// either a sequence of listings or a mapping with a "scholarships" key.
func LoadFixtures(r io.Reader) ([]models.Scholarship, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: parse fixtures: %v", query.ErrInvalidInput, err)
	}
	if len(node.Content) == 0 {
		return []models.Scholarship{}, nil
	}

	var raw []map[string]any
	switch root := node.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: decode fixtures: %v", query.ErrInvalidInput, err)
		}
	case yaml.MappingNode:
		var doc fixtureDocument
		if err := root.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decode fixtures: %v", query.ErrInvalidInput, err)
		}
		raw = doc.Scholarships
	default:
		return nil, fmt.Errorf("%w: fixtures must be a list of scholarships", query.ErrInvalidInput)
	}

	records := make([]models.Scholarship, 0, len(raw))
	for i, item := range raw {
		if item == nil {
			return nil, fmt.Errorf("%w: fixture %d is not a mapping", query.ErrInvalidInput, i)
		}
		records = append(records, query.NormalizeRecord(item))
	}
	return records, nil
}

// SeedService upserts fixture listings.
type SeedService struct {
	repo   seedRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewSeedService constructs a SeedService.
func NewSeedService(repo seedRepository, cache *CacheService, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedService{repo: repo, cache: cache, logger: logger}
}

// Seed upserts the records. Fixture ids that are not uuids are mapped to
// name-based uuids so re-running a seed updates rather than duplicates.
func (s *SeedService) Seed(ctx context.Context, records []models.Scholarship) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	items := make([]models.Scholarship, len(records))
	copy(items, records)
	for i := range items {
		if strings.TrimSpace(items[i].Name) == "" {
			return 0, errors.New("seed: every fixture needs a name")
		}
		items[i].ID = fixtureID(items[i])
	}
	if err := s.repo.BulkUpsert(ctx, items); err != nil {
		return 0, fmt.Errorf("seed scholarships: %w", err)
	}
	for _, pattern := range []string{catalogCachePattern, dashboardCachePattern} {
		_ = s.cache.Invalidate(ctx, pattern)
	}
	s.logger.Info("seeded scholarships", zap.Int("count", len(items)))
	return len(items), nil
}

func fixtureID(item models.Scholarship) string {
	if _, err := uuid.Parse(item.ID); err == nil {
		return item.ID
	}
	key := item.ID
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(item.Name))
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("scholarhub:fixture:"+key)).String()
}
