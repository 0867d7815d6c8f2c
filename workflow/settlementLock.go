package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireAffiliateLock serializes commission credits and payouts per
// affiliate across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that runs the ledger transaction.
func AcquireAffiliateLock(tx *gorm.DB, affiliateId int) error {
	lockName := fmt.Sprintf("affiliate:%d", affiliateId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire affiliate lock for affiliate_id=%d", affiliateId)
	}
	return nil
}

func ReleaseAffiliateLock(tx *gorm.DB, affiliateId int) {
	lockName := fmt.Sprintf("affiliate:%d", affiliateId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

// AcquireOrderLock serializes settlement per gateway order id. The CAS status
// update is the correctness guard; the lock keeps a racing duplicate
// confirmation from burning a transaction just to find zero rows affected.
func AcquireOrderLock(tx *gorm.DB, phonepeOrderId string) error {
	lockName := fmt.Sprintf("settle:%s", phonepeOrderId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire settlement lock for order_id=%s", phonepeOrderId)
	}
	return nil
}

func ReleaseOrderLock(tx *gorm.DB, phonepeOrderId string) {
	lockName := fmt.Sprintf("settle:%s", phonepeOrderId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
