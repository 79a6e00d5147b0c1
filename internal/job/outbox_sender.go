package job

import (
	"context"
	"time"

	"accountsystem/internal/model"
	"accountsystem/internal/repository"

	"github.com/sirupsen/logrus"
)

// Publisher 消息发送方，由 mq.Producer 实现
type Publisher interface {
	SendMessage(topic, key, value string) error
}

// OutboxSender 把本地消息表里的交易事件投递到 Kafka
//
// 消息和交易流水同事务写入，这里只负责至少一次投递
type OutboxSender struct {
	outboxRepo    repository.OutboxRepository
	publisher     Publisher
	log           *logrus.Logger
	stopCh        chan struct{}
	interval      time.Duration
	batchSize     int
	maxRetryCount int
}

func NewOutboxSender(
	outboxRepo repository.OutboxRepository,
	publisher Publisher,
	log *logrus.Logger,
	interval time.Duration,
	batchSize int,
	maxRetryCount int,
) *OutboxSender {
	return &OutboxSender{
		outboxRepo:    outboxRepo,
		publisher:     publisher,
		log:           log,
		stopCh:        make(chan struct{}),
		interval:      interval,
		batchSize:     batchSize,
		maxRetryCount: maxRetryCount,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.log.Info("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.ProcessPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPendingMessages 投递一批待发送消息，返回成功条数
func (s *OutboxSender) ProcessPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.WithError(err).Error("[OutboxSender] 查询消息失败")
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	entry := s.log.WithFields(logrus.Fields{
		"id":    msg.ID,
		"topic": msg.Topic,
		"key":   msg.MessageKey,
	})

	err := s.publisher.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			entry.WithError(updateErr).Error("[OutboxSender] 更新消息状态失败")
			return false
		}
		entry.Debug("[OutboxSender] 消息发送成功")
		return true
	}

	entry.WithError(err).Warn("[OutboxSender] 消息发送失败")

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		entry.WithError(err).Error("[OutboxSender] 增加重试次数失败")
	}

	if msg.RetryCount+1 >= s.maxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			entry.WithError(err).Error("[OutboxSender] 标记消息失败状态失败")
		} else {
			entry.Error("[OutboxSender] 消息超过最大重试次数，标记为失败")
		}
	}
	return false
}
