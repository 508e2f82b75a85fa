package setup

import (
	"fmt"

	"gorm.io/gorm"

	"collaborative-ideation/internal/domain"
)

// MigrateDB 迁移全部数据表。
// 字符串列都带了长度标签，AutoMigrate 可以直接建出需要的唯一索引：
// users (username/email)、participants (room_id, user_id)、messages (room_id, seq)。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}
	err := db.AutoMigrate(
		&domain.User{},
		&domain.Room{},
		&domain.Participant{},
		&domain.Message{},
		&domain.Suggestion{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	return nil
}
