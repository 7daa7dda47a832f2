// Package journal 实现影子决策日志的持久化写入。
// 多生产者通过非阻塞 Enqueue 投递，唯一的后台消费者负责补齐会话标识、
// 格式版本、写盘时间，修复时间戳单调性，并逐条追加落盘。
// 生产者位于延迟敏感的决策路径上，任何情况下都不得被写入端阻塞。
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shadow-decision-recorder/internal/core/model"
	"shadow-decision-recorder/internal/metrics"
	"shadow-decision-recorder/internal/util/timeutil"
)

// SchemaVersion 当前日志条目格式版本
// 入队条目未携带版本时由消费者填充该值。
const SchemaVersion = 3

// State 写入器生命周期状态
// 状态机: Stopped → Starting → Active → Draining → Stopped。
// 仅在影子模式下进入 Active；其余模式永久停留在 Stopped，入队一律被拒。
type State int32

const (
	// StateStopped 已停止（或从未启动）
	StateStopped State = iota
	// StateStarting 启动中（已可入队，消费者即将就绪）
	StateStarting
	// StateActive 运行中
	StateActive
	// StateDraining 排空中（不再接收新条目，已入队的仍会落盘）
	StateDraining
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	default:
		return "stopped"
	}
}

// ctrlOp 控制操作（当前仅文件重开，供轮转使用）
type ctrlOp struct {
	done chan error
}

// Writer 影子决策日志写入器
// Enqueue 只负责投递；补齐字段、单调性修复与文件 I/O 全部在后台 goroutine 完成。
// 待写队列无上界：决策量受评估节奏约束而非行情 tick 速率。
type Writer struct {
	// path 日志文件路径
	path string
	// logger 日志记录器
	logger *zap.Logger
	// sessionID 本次运行的会话标识（UUID）
	sessionID string

	// state 生命周期状态（原子读，转换在 mu 下进行）
	state int32

	// mu 保护 pending 与状态转换的互斥锁
	mu sync.Mutex
	// pending 待写条目（无上界）
	pending []*model.ShadowTradeJournalEntry

	// notify 新条目通知（容量 1，满则说明消费者已被唤醒）
	notify chan struct{}
	// ctrl 控制操作通道
	ctrl chan ctrlOp
	// stop 关停信号
	stop chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup

	// nowFn 时钟来源，测试可替换
	nowFn func() time.Time

	// lastErrLogNs 上次写入错误日志时间（纳秒），用于限流
	lastErrLogNs int64
}

// NewWriter 创建影子决策日志写入器
// 参数 path: 日志文件路径（上级目录不存在时创建，创建失败属启动期配置错误）
// 参数 shadowMode: 是否启用影子模式；false 时返回永久停止的写入器，入队一律被拒
// 参数 logger: 日志记录器
func NewWriter(path string, shadowMode bool, logger *zap.Logger) (*Writer, error) {
	w := &Writer{
		path:      path,
		logger:    logger.Named("journal"),
		sessionID: uuid.NewString(),
		notify:    make(chan struct{}, 1),
		ctrl:      make(chan ctrlOp),
		stop:      make(chan struct{}),
		nowFn:     timeutil.NowUTC,
	}

	if !shadowMode {
		atomic.StoreInt32(&w.state, int32(StateStopped))
		w.logger.Info("未启用影子模式，决策日志保持停止状态")
		return w, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}

	atomic.StoreInt32(&w.state, int32(StateStarting))
	w.wg.Add(1)
	go w.loop(f)

	w.logger.Info("影子决策日志已启动",
		zap.String("path", path),
		zap.String("session_id", w.sessionID))
	return w, nil
}

// State 获取当前生命周期状态
func (w *Writer) State() State {
	return State(atomic.LoadInt32(&w.state))
}

// SessionID 获取本次运行的会话标识
func (w *Writer) SessionID() string {
	return w.sessionID
}

// Path 获取日志文件路径
func (w *Writer) Path() string {
	return w.path
}

// Enqueue 非阻塞投递一条日志条目
// 写入器处于 Starting/Active 之外的状态时立即返回 false；
// 条目未携带会话标识时以本次运行的会话标识补齐。
// 本方法绝不阻塞调用方。
func (w *Writer) Enqueue(e *model.ShadowTradeJournalEntry) bool {
	if w == nil || e == nil {
		return false
	}

	s := w.State()
	if s != StateStarting && s != StateActive {
		metrics.JournalRejected.Inc()
		return false
	}

	if e.SessionID == "" {
		e.SessionID = w.sessionID
	}

	w.mu.Lock()
	// 状态转换在 mu 下进行，二次确认避免与 Close 竞争导致条目丢失
	s = w.State()
	if s != StateStarting && s != StateActive {
		w.mu.Unlock()
		metrics.JournalRejected.Inc()
		return false
	}
	w.pending = append(w.pending, e)
	depth := len(w.pending)
	w.mu.Unlock()

	metrics.JournalEnqueued.Inc()
	metrics.JournalQueueDepth.Set(float64(depth))

	select {
	case w.notify <- struct{}{}:
	default:
	}
	return true
}

// Reopen 请求消费者重开日志文件
// 供轮转服务在把当前文件改名后调用；随时可调，消费者先排空再切换句柄。
func (w *Writer) Reopen() error {
	s := w.State()
	if s != StateStarting && s != StateActive {
		return nil
	}

	op := ctrlOp{done: make(chan error, 1)}
	select {
	case w.ctrl <- op:
		return <-op.done
	case <-w.stop:
		return fmt.Errorf("写入器已停止")
	}
}

// Close 关闭写入器
// 先进入 Draining：不再接收新条目，排空所有已入队条目并逐条落盘，
// 随后 flush 并释放文件句柄。关停信号之前入队的条目绝不静默丢弃。
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		w.mu.Lock()
		prev := w.State()
		atomic.StoreInt32(&w.state, int32(StateDraining))
		w.mu.Unlock()

		if prev == StateStarting || prev == StateActive {
			close(w.stop)
			w.wg.Wait()
		} else {
			atomic.StoreInt32(&w.state, int32(StateStopped))
		}
	})
	return nil
}

func (w *Writer) loop(f *os.File) {
	defer w.wg.Done()

	atomic.StoreInt32(&w.state, int32(StateActive))

	for {
		select {
		case <-w.notify:
			w.drain(f)
		case op := <-w.ctrl:
			w.drain(f)
			f = w.reopenFile(f, op)
		case <-w.stop:
			w.drain(f)
			_ = f.Close()
			atomic.StoreInt32(&w.state, int32(StateStopped))
			w.logger.Info("影子决策日志已关闭")
			return
		}
	}
}

// drain 排空当前待写队列
// 单条失败只跳过该条，后续条目不受影响。
func (w *Writer) drain(f *os.File) {
	for {
		w.mu.Lock()
		if len(w.pending) == 0 {
			w.mu.Unlock()
			metrics.JournalQueueDepth.Set(0)
			return
		}
		batch := w.pending
		w.pending = nil
		w.mu.Unlock()

		for _, e := range batch {
			w.writeEntry(f, e)
		}
	}
}

// writeEntry 落盘单条条目：补齐版本、写盘时间，修复单调性，序列化为单行 JSON，
// 追加后立即 Sync。任何一步失败都不会中断消费循环。
func (w *Writer) writeEntry(f *os.File, e *model.ShadowTradeJournalEntry) {
	if e.SchemaVersion == 0 {
		e.SchemaVersion = SchemaVersion
	}
	now := w.nowFn()
	e.JournalWriteTimestampUtc = &now
	repairTimestamps(e)

	b, err := json.Marshal(e)
	if err != nil {
		w.maybeLogWriteError(fmt.Errorf("序列化日志条目失败: %w", err))
		return
	}
	b = append(b, '\n')

	if _, err := f.Write(b); err != nil {
		w.maybeLogWriteError(fmt.Errorf("追加日志条目失败: %w", err))
		return
	}
	if err := f.Sync(); err != nil {
		w.maybeLogWriteError(fmt.Errorf("落盘日志条目失败: %w", err))
		return
	}
	metrics.JournalWritten.Inc()
}

// repairTimestamps 修复条目时间戳的单调性
// 规则：decision < market 时把 decision 向前夹紧到 market；
// write < (decision ?? market) 时把 write 向前夹紧到该下限。
// 只向前夹紧后者，绝不回拨前者，保证盘面 market <= decision <= write。
func repairTimestamps(e *model.ShadowTradeJournalEntry) {
	if e.MarketTimestampUtc != nil && e.DecisionTimestampUtc != nil &&
		e.DecisionTimestampUtc.Before(*e.MarketTimestampUtc) {
		ts := *e.MarketTimestampUtc
		e.DecisionTimestampUtc = &ts
	}

	floor := e.DecisionTimestampUtc
	if floor == nil {
		floor = e.MarketTimestampUtc
	}
	if floor != nil && e.JournalWriteTimestampUtc != nil &&
		e.JournalWriteTimestampUtc.Before(*floor) {
		ts := *floor
		e.JournalWriteTimestampUtc = &ts
	}
}

// reopenFile 切换到按原路径重新打开的文件句柄
// 打开失败时保留旧句柄继续写入（此时写入的是改名后的旧文件），并上报错误。
func (w *Writer) reopenFile(old *os.File, op ctrlOp) *os.File {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		w.logger.Warn("重开日志文件失败，继续使用旧句柄", zap.Error(err))
		op.done <- fmt.Errorf("重开日志文件失败: %w", err)
		return old
	}
	_ = old.Close()
	w.logger.Info("日志文件已重开", zap.String("path", w.path))
	op.done <- nil
	return f
}

// maybeLogWriteError 限流记录写入错误
// 滚动一分钟窗口内至多一条，避免持续性 I/O 故障刷爆日志。
func (w *Writer) maybeLogWriteError(err error) {
	metrics.JournalWriteErrors.Inc()

	nowNs := timeutil.NowNano()
	last := atomic.LoadInt64(&w.lastErrLogNs)
	if last > 0 && nowNs-last < int64(time.Minute) {
		return
	}
	if !atomic.CompareAndSwapInt64(&w.lastErrLogNs, last, nowNs) {
		return
	}
	w.logger.Warn("写入影子决策日志失败（限流：每分钟至多一条）", zap.Error(err))
}
