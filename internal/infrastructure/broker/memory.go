package broker

import (
	"context"
	"sync"

	"repairjournal/internal/domain/document"
)

// Memory - шина изменений в пределах одного процесса, когда Redis не настроен
type Memory struct {
	mu     sync.RWMutex
	nextID int
	subs   map[document.Collection]map[int]chan document.Change
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[document.Collection]map[int]chan document.Change)}
}

// Publish не блокируется: медленный подписчик теряет событие
func (b *Memory) Publish(_ context.Context, col document.Collection, change document.Change) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[col] {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

func (b *Memory) Subscribe(_ context.Context, col document.Collection) (<-chan document.Change, func() error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan document.Change, 16)
	if b.subs[col] == nil {
		b.subs[col] = make(map[int]chan document.Change)
	}
	b.subs[col][id] = ch

	var once sync.Once
	cancel := func() error {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[col], id)
			b.mu.Unlock()
			close(ch)
		})
		return nil
	}
	return ch, cancel, nil
}
