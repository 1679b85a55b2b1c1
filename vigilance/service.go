package vigilance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/symphonia/tms_backend/config"
	"github.com/symphonia/tms_backend/models"
	"gorm.io/gorm"
)

func inputFromCarrier(c models.Carrier) Input {
	return Input{
		TaxId:         c.TaxId,
		VatNumber:     c.VatNumber,
		LicenseNumber: c.LicenseNumber,
		OnTimeRate:    c.OnTimeRate,
		LastOrderAt:   c.LastOrderAt,
		TotalOrders:   c.TotalOrders,
	}
}

// ScoreOne reads the carrier and computes its score without persisting.
// Returns (nil, nil) when the carrier does not exist.
func ScoreOne(ctx context.Context, carrierID uint) (*Result, error) {
	db := config.GetDB()
	var carrier models.Carrier
	if err := db.WithContext(ctx).Where("id = ?", carrierID).Take(&carrier).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	result := Score(inputFromCarrier(carrier))
	return &result, nil
}

// UpdateOne recomputes and persists one carrier's vigilance record. The
// record is replaced wholesale, never patched.
func UpdateOne(ctx context.Context, carrierID uint) error {
	db := config.GetDB()
	var carrier models.Carrier
	if err := db.WithContext(ctx).Where("id = ?", carrierID).Take(&carrier).Error; err != nil {
		return err
	}
	return persist(ctx, db, carrier)
}

// UpdateAll recomputes every carrier's score, continuing past per-carrier
// errors.
func UpdateAll(ctx context.Context) (updated int, failed int, errs []error) {
	db := config.GetDB()

	const batchSize = 200
	var carriers []models.Carrier
	err := db.WithContext(ctx).FindInBatches(&carriers, batchSize, func(tx *gorm.DB, _ int) error {
		for _, carrier := range carriers {
			if err := persist(ctx, db, carrier); err != nil {
				failed++
				errs = append(errs, fmt.Errorf("carrier %d: %w", carrier.ID, err))
				continue
			}
			updated++
		}
		return nil
	}).Error
	if err != nil {
		errs = append(errs, err)
	}
	return updated, failed, errs
}

func persist(ctx context.Context, db *gorm.DB, carrier models.Carrier) error {
	result := Score(inputFromCarrier(carrier))
	checksJSON, err := json.Marshal(result.Checks)
	if err != nil {
		return err
	}
	now := time.Now()
	return db.WithContext(ctx).Model(&models.Carrier{}).
		Where("id = ?", carrier.ID).
		Updates(map[string]interface{}{
			"vigilance_score":       result.Score,
			"vigilance_tier":        result.Tier,
			"vigilance_checks_json": checksJSON,
			"vigilance_computed_at": now,
		}).Error
}
