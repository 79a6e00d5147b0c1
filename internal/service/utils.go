package service

import (
	"context"
	"fmt"
	"time"

	"accountsystem/internal/infrastructure/lock"

	"github.com/sirupsen/logrus"
)

// obtainLock 获取互斥锁，返回的函数负责释放
//
// 释放时不使用请求上下文：请求被取消后锁仍然要尽快归还
func obtainLock(ctx context.Context, locker lock.Locker, log logrus.FieldLogger, key string) (func(), error) {
	l, err := locker.Obtain(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.Unlock(releaseCtx); err != nil {
			log.WithError(err).WithField("lock_key", key).Warn("释放锁失败")
		}
	}, nil
}

func isValidAccountNumber(accountNumber string) bool {
	if len(accountNumber) != 10 {
		return false
	}
	for _, c := range accountNumber {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
