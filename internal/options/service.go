package options

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"fipetracker/server/internal/models"
)

// Source returns the (model, model year) rows of a brand. *database.Database
// implements it.
type Source interface {
	OptionRows(ctx context.Context, brandID uint, latestOnly bool) ([]models.OptionRow, *models.ReferenceMonth, error)
}

type Service struct {
	source     Source
	latestOnly bool
	logger     *logrus.Logger
}

// NewService creates a Service. With latestOnly set the index only offers
// vehicles priced in the most recent reference month.
func NewService(source Source, latestOnly bool, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Service{source: source, latestOnly: latestOnly, logger: logger}
}

// BuildIndex fetches a brand's rows in one query and builds its Index.
func (s *Service) BuildIndex(ctx context.Context, brandID uint) (*Index, error) {
	rows, latest, err := s.source.OptionRows(ctx, brandID, s.latestOnly)
	if err != nil {
		return nil, err
	}

	idx := Build(brandID, rows)
	if latest != nil {
		idx.ReferenceMonth = models.FirstOfMonth(latest.MonthDate.UTC()).Format("2006-01-02")
	}

	s.logger.WithFields(logrus.Fields{
		"brand_id":    brandID,
		"models":      len(idx.Models),
		"pairs":       len(rows),
		"latest_only": s.latestOnly,
	}).Debug("Built vehicle option index")

	return idx, nil
}
