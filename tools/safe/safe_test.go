package safe

import (
	"sync"
	"testing"
)

func TestGoRecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	Go("test", func() {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()
}

func TestMustNotNil(t *testing.T) {
	var p *int
	assertPanics(t, func() { MustNotNil(p, "p") })
	assertPanics(t, func() { MustNotNil(nil, "nil") })

	v := 1
	MustNotNil(&v, "v")
	MustNotNil("value types are never nil", "s")
}

func assertPanics(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	f()
}
