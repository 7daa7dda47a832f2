// Package journal 实现影子决策日志的持久化写入。
package journal

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// RotationService 日志轮转服务
// 把当前日志文件改名为带日期后缀的归档文件，并让写入器在原路径重开新文件。
// 写入器随时可以被要求写到刚轮转出来的新文件。
type RotationService struct {
	// w 目标写入器
	w *Writer
	// logger 日志记录器
	logger *zap.Logger
}

// NewRotationService 创建日志轮转服务
// 参数 w: 目标写入器
// 参数 logger: 日志记录器
func NewRotationService(w *Writer, logger *zap.Logger) *RotationService {
	return &RotationService{
		w:      w,
		logger: logger.Named("rotate"),
	}
}

// Rotate 执行一次轮转
// 归档名默认 <path>.<YYYY-MM-DD>；同名归档已存在时改用含时分秒的后缀。
// 当前文件不存在时跳过改名，仅要求写入器重开。
func (s *RotationService) Rotate(now time.Time) error {
	path := s.w.Path()

	if _, err := os.Stat(path); err == nil {
		target := fmt.Sprintf("%s.%s", path, now.UTC().Format("2006-01-02"))
		if _, err := os.Stat(target); err == nil {
			target = fmt.Sprintf("%s.%s", path, now.UTC().Format("2006-01-02T150405"))
		}
		if err := os.Rename(path, target); err != nil {
			return fmt.Errorf("归档日志文件失败: %w", err)
		}
		s.logger.Info("日志文件已归档", zap.String("target", target))
	}

	if err := s.w.Reopen(); err != nil {
		return fmt.Errorf("轮转后重开日志失败: %w", err)
	}
	return nil
}
