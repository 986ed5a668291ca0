package storage

import (
	"sync"

	"github.com/BetterCallFirewall/Phishtrap/internal/scoring"
)

// MemoryStorage хранит историю вердиктов текущего процесса
type MemoryStorage struct {
	verdicts map[string]*scoring.Verdict
	order    []string
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		verdicts: make(map[string]*scoring.Verdict),
	}
}

func (s *MemoryStorage) StoreVerdict(v *scoring.Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.verdicts[v.ID]; !ok {
		s.order = append(s.order, v.ID)
	}
	s.verdicts[v.ID] = v
}

func (s *MemoryStorage) GetVerdict(id string) (*scoring.Verdict, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.verdicts[id]
	return v, ok
}

// GetAllVerdicts возвращает вердикты от новых к старым
func (s *MemoryStorage) GetAllVerdicts() []*scoring.Verdict {
	s.mu.RLock()
	defer s.mu.RUnlock()

	verdicts := make([]*scoring.Verdict, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		verdicts = append(verdicts, s.verdicts[s.order[i]])
	}
	return verdicts
}
