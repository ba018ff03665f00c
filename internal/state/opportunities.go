package state

import (
	"sync"

	"arbd/internal/models"
)

// DefaultOpportunityCap - ёмкость кольца по умолчанию
const DefaultOpportunityCap = 200

// OpportunityLog - ограниченное кольцо последних возможностей в порядке обнаружения
type OpportunityLog struct {
	mu    sync.RWMutex
	buf   []models.ArbitrageOpportunity
	next  int // индекс следующей записи
	count int
}

// NewOpportunityLog создаёт кольцо; capacity <= 0 → DefaultOpportunityCap
func NewOpportunityLog(capacity int) *OpportunityLog {
	if capacity <= 0 {
		capacity = DefaultOpportunityCap
	}
	return &OpportunityLog{buf: make([]models.ArbitrageOpportunity, capacity)}
}

// Record добавляет возможность, вытесняя самую старую при переполнении
func (l *OpportunityLog) Record(opp models.ArbitrageOpportunity) {
	l.mu.Lock()
	l.buf[l.next] = opp
	l.next = (l.next + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	}
	l.mu.Unlock()
}

// Recent возвращает до n последних возможностей, новые первыми
// n <= 0 - все сохранённые
func (l *OpportunityLog) Recent(n int) []models.ArbitrageOpportunity {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.count {
		n = l.count
	}
	out := make([]models.ArbitrageOpportunity, 0, n)
	idx := l.next
	for i := 0; i < n; i++ {
		idx = (idx - 1 + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

// Len - количество сохранённых записей
func (l *OpportunityLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Cap - ёмкость кольца
func (l *OpportunityLog) Cap() int {
	return len(l.buf)
}
