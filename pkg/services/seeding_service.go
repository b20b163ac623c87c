package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/repositories"
)

// seedFile is the on-disk shape of seed.yaml. Each entry carries exactly one
// typed value field.
type seedFile struct {
	Entries []seedEntry `yaml:"entries"`
}

type seedEntry struct {
	Category string `yaml:"category"`
	Field    string `yaml:"field"`

	String *string        `yaml:"string,omitempty"`
	Number *float64       `yaml:"number,omitempty"`
	Date   *string        `yaml:"date,omitempty"`
	Bool   *bool          `yaml:"bool,omitempty"`
	Object map[string]any `yaml:"object,omitempty"`
}

// SeedingService loads baseline knowledge into an empty store on startup.
type SeedingService interface {
	// SeedIfEmpty loads the seed file and inserts its entries when the store
	// holds nothing. A store with any entries is left untouched.
	SeedIfEmpty(ctx context.Context, path string) error
}

type seedingService struct {
	knowledgeRepo repositories.KnowledgeRepository
	auditService  AuditService
	logger        *zap.Logger
}

// NewSeedingService creates a new SeedingService.
func NewSeedingService(knowledgeRepo repositories.KnowledgeRepository, auditService AuditService, logger *zap.Logger) SeedingService {
	return &seedingService{
		knowledgeRepo: knowledgeRepo,
		auditService:  auditService,
		logger:        logger.Named("seeding"),
	}
}

var _ SeedingService = (*seedingService)(nil)

func (s *seedingService) SeedIfEmpty(ctx context.Context, path string) error {
	count, err := s.knowledgeRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}
	if count > 0 {
		s.logger.Debug("Store already populated, skipping seed", zap.Int("entries", count))
		return nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.logger.Info("No seed file found, starting with an empty brain", zap.String("path", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	for _, row := range file.Entries {
		entry, err := row.toEntry()
		if err != nil {
			return fmt.Errorf("invalid seed entry %s/%s: %w", row.Category, row.Field, err)
		}
		if err := s.knowledgeRepo.Insert(ctx, entry); err != nil {
			return fmt.Errorf("failed to insert seed entry %s/%s: %w", row.Category, row.Field, err)
		}
		s.auditService.RecordEntryChange(ctx, models.AuditActionCreate, entry.Category, entry.Field, nil, &entry.Value, nil, models.UpdatedBySystem)
	}

	s.logger.Info("Seeded knowledge store", zap.Int("entries", len(file.Entries)), zap.String("path", path))
	return nil
}

func (e seedEntry) toEntry() (*models.KnowledgeEntry, error) {
	category, err := models.ParseCategory(e.Category)
	if err != nil {
		return nil, err
	}
	if e.Field == "" {
		return nil, fmt.Errorf("field is required")
	}

	var value models.Value
	switch {
	case e.String != nil:
		value = models.StringValue(*e.String)
	case e.Number != nil:
		value = models.NumberValue(*e.Number)
	case e.Date != nil:
		parsed, err := time.Parse("2006-01-02", *e.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", *e.Date, err)
		}
		value = models.DateValue(parsed)
	case e.Bool != nil:
		value = models.BoolValue(*e.Bool)
	case e.Object != nil:
		value = models.ObjectValue(e.Object)
	default:
		return nil, fmt.Errorf("no value given")
	}

	return &models.KnowledgeEntry{
		Category:  category,
		Field:     e.Field,
		Value:     value,
		UpdatedBy: models.UpdatedBySystem,
	}, nil
}
