package scope

import "gorm.io/gorm"

// ByUser restricts a query to rows owned by userID.
func ByUser(userID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	}
}
