package domain

import (
	"sync"
	"testing"
)

// Генератор разделяется всеми параллельными сборками выпусков, поэтому
// конкурентные вызовы должны быть безопасны (проверяется детектором гонок).
func TestLockedRandConcurrentUse(t *testing.T) {
	rng := NewLockedRand(1)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if v := rng.Intn(10); v < 0 || v >= 10 {
					t.Errorf("Intn вне диапазона: %d", v)
					return
				}
				if f := rng.Float64(); f < 0 || f >= 1 {
					t.Errorf("Float64 вне диапазона: %v", f)
					return
				}
			}
		}()
	}
	wg.Wait()
}
