package database

import "auto-highlight/app/model"

func AutoMigrate() error {
	// 自动迁移表结构
	return DB.AutoMigrate(
		&model.Video{},
	)
}
