package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New 初始化日志
//
// 生产环境（GIN_MODE=release）输出 JSON、Info 级别，其它环境输出文本、Debug 级别
func New(output io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(output)
	l.SetFormatter(new(logrus.JSONFormatter))
	l.SetLevel(logrus.InfoLevel)

	if os.Getenv("GIN_MODE") != "release" {
		l.SetLevel(logrus.DebugLevel)
		l.SetFormatter(new(logrus.TextFormatter))
	}

	return l
}

// Discard 测试用，丢弃所有输出
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
