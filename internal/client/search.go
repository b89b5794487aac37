package client

import (
	"sync"
	"time"
)

const searchDebounceDelay = 500 * time.Millisecond

// Debouncer 把连续的搜索输入合并成一次查询：每次新输入取消
// 未触发的旧查询，只有最后一次输入在静默期满后被派发。
type Debouncer struct {
	delay    time.Duration
	dispatch func(query string)

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer 创建搜索防抖器，dispatch 在独立的 goroutine 中被调用。
func NewDebouncer(dispatch func(query string)) *Debouncer {
	return &Debouncer{delay: searchDebounceDelay, dispatch: dispatch}
}

// Update 记录一次输入，重置静默计时。
func (d *Debouncer) Update(query string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.dispatch(query)
	})
}

// Flush 立即派发最近一次输入（回车确认搜索时使用）。
func (d *Debouncer) Flush(query string) {
	d.Stop()
	d.dispatch(query)
}

// Stop 取消未触发的查询。
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
