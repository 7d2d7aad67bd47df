package entity

import "gorm.io/gorm"

// AutoMigrate 自动迁移关系库表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&SubmittedTask{},
		&Material{},
		&Sequence{},
		&User{},
	)
}
