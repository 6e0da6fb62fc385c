package labvalidation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/ports"
)

// CalculateTrustScore derives the score of a validation from its persisted results
// and the lab named on its report. It writes nothing. An unknown validation is
// ports.ErrValidationNotFound, never a zero score.
func (s *Service) CalculateTrustScore(ctx context.Context, validationID string) (validation.TrustScore, error) {
	if err := s.ready(ctx); err != nil {
		return validation.TrustScore{}, err
	}

	id := strings.TrimSpace(validationID)
	if _, err := s.validations.GetValidationRequest(ctx, id); err != nil {
		return validation.TrustScore{}, errs.Wrap(err, "get validation request")
	}
	return s.calculateTrustScore(ctx, id)
}

func (s *Service) calculateTrustScore(ctx context.Context, validationID string) (validation.TrustScore, error) {
	results, err := s.validations.ListValidationResults(ctx, validationID)
	if err != nil {
		return validation.TrustScore{}, errs.Wrap(err, "list validation results")
	}

	statuses := make([]validation.PointStatus, 0, len(results))
	for _, r := range results {
		statuses = append(statuses, r.Status)
	}

	lab, err := s.reportLab(ctx, validationID)
	if err != nil {
		return validation.TrustScore{}, err
	}
	return validation.ComputeTrustScore(statuses, lab), nil
}

// reportLab resolves the performing lab through the report; nil when either is missing.
func (s *Service) reportLab(ctx context.Context, validationID string) (*validation.LabQuality, error) {
	report, err := s.validations.GetReport(ctx, validationID)
	if errors.Is(err, ports.ErrReportNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, "get lab report")
	}

	lab, err := s.labs.GetLab(ctx, report.LabID)
	if errors.Is(err, ports.ErrLabNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, "get report laboratory")
	}
	q := validation.QualityOf(lab)
	return &q, nil
}

// RecalculateTrustScore appends a fresh history entry for the validation's product.
func (s *Service) RecalculateTrustScore(ctx context.Context, validationID string) (validation.TrustScoreRecord, error) {
	if err := s.ready(ctx); err != nil {
		return validation.TrustScoreRecord{}, err
	}

	id := strings.TrimSpace(validationID)
	logCtx := s.logCtx(ctx, slog.String("validation_id", id))
	var record validation.TrustScoreRecord

	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		req, err := s.validations.GetValidationRequest(txCtx, id)
		if err != nil {
			return err
		}
		score, err := s.calculateTrustScore(txCtx, id)
		if err != nil {
			return err
		}
		record, err = s.validations.AppendTrustScore(txCtx, validation.TrustScoreRecord{
			ProductID:    req.ProductID,
			ValidationID: id,
			Score:        score.Score,
			Components:   score.Components(),
			CalculatedAt: s.now().UTC(),
		})
		return err
	})
	if err != nil {
		logging.Warn(logCtx, "recalculate trust score failed", slog.Any("err", errs.Loggable(err)))
		return validation.TrustScoreRecord{}, errs.Wrap(err, "recalculate trust score")
	}

	logging.Info(logCtx, "trust score recalculated", slog.String("product_id", record.ProductID), slog.Float64("score", record.Score))
	s.deleteCacheBestEffort(ctx, cacheLatestTrustScoreKey(record.ProductID))
	return record, nil
}

// TrustScoreHistory lists a product's scores, newest first. limit <= 0 means all.
func (s *Service) TrustScoreHistory(ctx context.Context, productID string, limit int) ([]validation.TrustScoreRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	items, err := s.validations.ListTrustScores(ctx, strings.TrimSpace(productID), limit)
	if err != nil {
		return nil, errs.Wrap(err, "list trust scores")
	}
	return items, nil
}

type cachedTrustScore struct {
	ID           uint64                     `json:"id"`
	ValidationID string                     `json:"validation_id"`
	Score        float64                    `json:"score"`
	Components   validation.ScoreComponents `json:"components"`
	CalculatedAt string                     `json:"calculated_at"`
}

// LatestTrustScore reads through the cache. Cache failures fall back to the repository.
func (s *Service) LatestTrustScore(ctx context.Context, productID string) (validation.TrustScoreRecord, error) {
	if err := s.ready(ctx); err != nil {
		return validation.TrustScoreRecord{}, err
	}

	productID = strings.TrimSpace(productID)
	key := cacheLatestTrustScoreKey(productID)
	if rec, ok := s.cachedLatest(ctx, key, productID); ok {
		return rec, nil
	}

	items, err := s.validations.ListTrustScores(ctx, productID, 1)
	if err != nil {
		return validation.TrustScoreRecord{}, errs.Wrap(err, "list trust scores")
	}
	if len(items) == 0 {
		return validation.TrustScoreRecord{}, ErrNoTrustScore
	}

	latest := items[0]
	if raw, err := json.Marshal(cachedTrustScore{
		ID:           latest.ID,
		ValidationID: latest.ValidationID,
		Score:        latest.Score,
		Components:   latest.Components,
		CalculatedAt: latest.CalculatedAt.UTC().Format(timeLayout),
	}); err == nil {
		s.setCacheBestEffort(ctx, key, string(raw))
	}
	return latest, nil
}

func (s *Service) cachedLatest(ctx context.Context, key, productID string) (validation.TrustScoreRecord, bool) {
	if s.cache == nil {
		return validation.TrustScoreRecord{}, false
	}
	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		logging.Warn(s.logCtx(ctx), "cache get failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
		return validation.TrustScoreRecord{}, false
	}
	if !found {
		return validation.TrustScoreRecord{}, false
	}

	var c cachedTrustScore
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		s.deleteCacheBestEffort(ctx, key)
		return validation.TrustScoreRecord{}, false
	}
	return validation.TrustScoreRecord{
		ID:           c.ID,
		ProductID:    productID,
		ValidationID: c.ValidationID,
		Score:        c.Score,
		Components:   c.Components,
		CalculatedAt: parseTimeOrZero(c.CalculatedAt),
	}, true
}
