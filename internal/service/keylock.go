package service

import "sync"

// keyLock 为每个聚合键维护一把互斥锁，序列化同键更新
// 不同键互不阻塞；锁对象按键懒创建后常驻，键基数由用户×目标数量约束
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*sync.Mutex)}
}

// acquire 锁定指定键并返回解锁函数
func (l *keyLock) acquire(key string) func() {
	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
