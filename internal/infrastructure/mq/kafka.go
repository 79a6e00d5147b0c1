package mq

import (
	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

// Producer 同步 Kafka 生产者，交易事件按 transaction_id 作为 key 分区
type Producer struct {
	producer sarama.SyncProducer
}

// NewKafkaConfig 生产者配置：等待所有副本确认，失败重试 3 次
func NewKafkaConfig() *sarama.Config {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true
	return kafkaConfig
}

// NewProducer 连接 Kafka 集群
func NewProducer(brokers []string) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewKafkaConfig())
	if err != nil {
		return nil, errors.Wrap(err, "创建 Kafka 生产者失败")
	}
	return NewProducerWith(producer), nil
}

// NewProducerWith 包装已有的 SyncProducer
func NewProducerWith(producer sarama.SyncProducer) *Producer {
	return &Producer{producer: producer}
}

// SendMessage 发送消息到 Kafka
func (p *Producer) SendMessage(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
