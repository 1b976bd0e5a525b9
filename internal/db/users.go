package db

import (
	"time"

	"gorm.io/gorm/clause"
)

// TouchUser creates the user on first contact and refreshes identity fields
// and last_activity on every subsequent update.
func TouchUser(telegramID int64, username *string, firstName, lastName, languageCode string) (*User, error) {
	now := time.Now().Unix()
	var user User
	err := DB.Where("telegram_id = ?", telegramID).First(&user).Error
	if err != nil {
		user = User{
			TelegramID:   telegramID,
			Username:     username,
			FirstName:    firstName,
			LastName:     lastName,
			LanguageCode: languageCode,
			CreatedAt:    now,
			LastActivity: now,
		}
		if err := DB.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	updates := map[string]interface{}{
		"username":      username,
		"first_name":    firstName,
		"last_name":     lastName,
		"language_code": languageCode,
		"last_activity": now,
	}
	if err := DB.Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	user.Username = username
	user.LastActivity = now
	return &user, nil
}

func GetUserByTelegramID(telegramID int64) (*User, error) {
	var user User
	if err := DB.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUserByUsername(username string) (*User, error) {
	var user User
	if err := DB.Where("lower(username) = lower(?)", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// AllUsersOrdered returns every user ordered by id, for reconciliation.
func AllUsersOrdered() ([]User, error) {
	var users []User
	err := DB.Order("id").Find(&users).Error
	return users, err
}

func UpdateUsername(telegramID int64, username *string) error {
	return DB.Model(&User{}).Where("telegram_id = ?", telegramID).Update("username", username).Error
}

func DeleteUserByTelegramID(telegramID int64) error {
	return DB.Where("telegram_id = ?", telegramID).Delete(&User{}).Error
}

func CountUsers() (int64, error) {
	var count int64
	err := DB.Model(&User{}).Count(&count).Error
	return count, err
}

// ArchiveRemovedUser writes the pre-delete snapshot into the ledger. The
// upsert key (telegram_id, removed_on) makes the write idempotent within a
// calendar day, so a crash between archive and delete cannot duplicate the
// entry on the next run.
func ArchiveRemovedUser(u *User, category, reason, apiErr string) error {
	now := time.Now()
	entry := RemovedUser{
		TelegramID:        u.TelegramID,
		RemovedOn:         now.UTC().Format("2006-01-02"),
		Username:          u.Username,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		LanguageCode:      u.LanguageCode,
		OriginalCreatedAt: u.CreatedAt,
		LastActivity:      u.LastActivity,
		RemovalReason:     reason,
		RemovalCategory:   category,
		APIErrorMessage:   apiErr,
		RemovedAt:         now.Unix(),
	}
	return DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}, {Name: "removed_on"}},
		DoNothing: true,
	}).Create(&entry).Error
}

// LedgerTotals returns eviction counts per removal category.
func LedgerTotals() (map[string]int64, error) {
	type row struct {
		RemovalCategory string
		N               int64
	}
	var rows []row
	err := DB.Model(&RemovedUser{}).
		Select("removal_category, count(*) as n").
		Group("removal_category").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int64, len(rows))
	for _, r := range rows {
		totals[r.RemovalCategory] = r.N
	}
	return totals, nil
}

func RecentRemovals(limit int) ([]RemovedUser, error) {
	var entries []RemovedUser
	err := DB.Order("removed_at desc").Limit(limit).Find(&entries).Error
	return entries, err
}
