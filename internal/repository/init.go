package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/parceltrace/parceltrace/config"
	"github.com/parceltrace/parceltrace/interfaces"
	"github.com/parceltrace/parceltrace/internal/models"
)

type Repositories struct {
	UserRepository               interfaces.UserRepository
	EmailAccountRepository       interfaces.EmailAccountRepository
	WatchedFolderRepository      interfaces.WatchedFolderRepository
	GlobalMailRepository         interfaces.GlobalMailRepository
	SenderBindingRepository      interfaces.SenderBindingRepository
	SeenMessageRepository        interfaces.SeenMessageRepository
	QueueRepository              interfaces.QueueRepository
	OrderRepository              interfaces.OrderRepository
	OrderStateRepository         interfaces.OrderStateRepository
	ModuleConfigRepository       interfaces.ModuleConfigRepository
	NotificationConfigRepository interfaces.NotificationConfigRepository
	SettingsRepository           interfaces.SettingsRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		UserRepository:               NewUserRepository(db),
		EmailAccountRepository:       NewEmailAccountRepository(db),
		WatchedFolderRepository:      NewWatchedFolderRepository(db),
		GlobalMailRepository:         NewGlobalMailRepository(db),
		SenderBindingRepository:      NewSenderBindingRepository(db),
		SeenMessageRepository:        NewSeenMessageRepository(db),
		QueueRepository:              NewQueueRepository(db),
		OrderRepository:              NewOrderRepository(db),
		OrderStateRepository:         NewOrderStateRepository(db),
		ModuleConfigRepository:       NewModuleConfigRepository(db),
		NotificationConfigRepository: NewNotificationConfigRepository(db),
		SettingsRepository:           NewSettingsRepository(db),
	}
}

func MigrateDB(dbConfig *config.DatabaseConfig, gormDB *gorm.DB) error {
	db, err := gormDB.DB()
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(5)

	err = gormDB.AutoMigrate(
		&models.User{},
		&models.EmailAccount{},
		&models.WatchedFolder{},
		&models.GlobalMailConfig{},
		&models.SenderBinding{},
		&models.SeenMessage{},
		&models.QueueItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderState{},
		&models.ModuleConfig{},
		&models.NotificationConfig{},
		&models.LLMConfig{},
		&models.SMTPConfig{},
		&models.ImapSettings{},
		&models.QueueSettings{},
	)
	if err != nil {
		return err
	}

	if dbConfig.MaxIdleConn > 0 {
		db.SetMaxIdleConns(dbConfig.MaxIdleConn)
	}
	if dbConfig.MaxConn > 0 {
		db.SetMaxOpenConns(dbConfig.MaxConn)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)
	}

	return nil
}
