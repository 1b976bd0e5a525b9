package db

import (
	"time"

	"gorm.io/gorm/clause"
)

// InsertDetectedTransaction records a sighting if the txid is new. A unique
// violation is absorbed by the conflict clause and reported as inserted ==
// false, which keeps dedup crash-safe across restarts.
func InsertDetectedTransaction(tx *DetectedTransaction) (inserted bool, err error) {
	if tx.FirstSeenAt == 0 {
		tx.FirstSeenAt = time.Now().Unix()
	}
	res := DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_id"}},
		DoNothing: true,
	}).Create(tx)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func HasDetectedTransaction(txid string) (bool, error) {
	var count int64
	err := DB.Model(&DetectedTransaction{}).Where("tx_id = ?", txid).Count(&count).Error
	return count > 0, err
}
