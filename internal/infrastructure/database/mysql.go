package database

import (
	"fmt"
	"time"

	"accountsystem/internal/config"
	"accountsystem/internal/model"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN 拼接 MySQL 连接串
func DSN(cfg *config.MySQLConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)
}

// InitMySQL 初始化 MySQL 连接并迁移表结构
//
// TranslateError 打开后唯一索引冲突会翻译成 gorm.ErrDuplicatedKey，
// 仓储层据此识别账号重复
func InitMySQL(cfg *config.MySQLConfig, log *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(DSN(cfg)), &gorm.Config{
		TranslateError: true,
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, errors.Wrap(err, "连接 MySQL 失败")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "获取底层 DB 失败")
	}

	// 连接池配置
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	err = db.AutoMigrate(
		&model.AccountUser{},
		&model.Account{},
		&model.Transaction{},
		&model.OutboxMessage{},
	)
	if err != nil {
		return nil, errors.Wrap(err, "自动迁移表结构失败")
	}

	log.WithField("database", cfg.Database).Info("MySQL 连接成功")
	return db, nil
}
