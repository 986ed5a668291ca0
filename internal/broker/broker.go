package broker

import "sync"

// Broker простой topic-брокер между пайплайном скоринга и фидами.
// Publish не блокирует: при переполненном топике сообщение теряется,
// фид вердиктов - это best effort поток, а не журнал.
type Broker[T any] struct {
	topics      map[string]chan T
	maxSizeChan uint
	mu          sync.Mutex
}

func New[T any](maxCountMsgInTopic uint) *Broker[T] {
	return &Broker[T]{
		topics:      make(map[string]chan T),
		maxSizeChan: maxCountMsgInTopic,
	}
}

func (b *Broker[T]) Publish(topic string, msg T) {
	select {
	case b.topic(topic) <- msg:
	default:
	}
}

func (b *Broker[T]) Subscribe(topic string) chan T {
	return b.topic(topic)
}

func (b *Broker[T]) CloseTopic(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if v, ok := b.topics[topic]; ok {
		close(v)
	}
	delete(b.topics, topic)
}

func (b *Broker[T]) topic(name string) chan T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.topics[name]; !ok {
		b.topics[name] = make(chan T, b.maxSizeChan)
	}
	return b.topics[name]
}
