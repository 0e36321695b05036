package di

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/injectkit/errors"
)

// batchScope keeps one instance per key until reset.
type batchScope struct {
	mu        sync.Mutex
	instances map[Key]any
}

func newBatchScope() *batchScope { return &batchScope{instances: make(map[Key]any)} }

func (s *batchScope) Scope(key Key, unscoped Producer) Producer {
	return func(rc *ResolutionContext) (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if v, ok := s.instances[key]; ok {
			return v, nil
		}
		v, err := unscoped(rc)
		if err != nil {
			return nil, err
		}
		s.instances[key] = v
		return v, nil
	}
}

func (s *batchScope) String() string { return "batch" }

func (s *batchScope) reset() {
	s.mu.Lock()
	s.instances = make(map[Key]any)
	s.mu.Unlock()
}

func TestSingletonConcurrentFirstAccess(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	type expensive struct{}
	inj := mustNew(t, []Declaration{
		Bind(KeyOf[*expensive](), ToConstructor(func() *expensive {
			mu.Lock()
			calls++
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			return &expensive{}
		}), In(Singleton)),
	})

	const workers = 32
	results := make([]*expensive, workers)
	var wg sync.WaitGroup
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n] = MustResolve[*expensive](context.Background(), inj)
		}(n)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls)
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestSingletonFailureIsNotCached(t *testing.T) {
	attempts := 0
	type flaky struct{}
	inj := mustNew(t, []Declaration{
		Bind(KeyOf[*flaky](), ToConstructor(func() (*flaky, error) {
			attempts++
			if attempts == 1 {
				return nil, errTimeout
			}
			return &flaky{}, nil
		}), In(Singleton)),
	})

	_, err := Resolve[*flaky](context.Background(), inj)
	require.Error(t, err)
	first, err := Resolve[*flaky](context.Background(), inj)
	require.NoError(t, err)
	assert.Same(t, first, MustResolve[*flaky](context.Background(), inj))
	assert.Equal(t, 2, attempts)
}

func TestCustomScopeFromTypeAnnotation(t *testing.T) {
	c := &counter{}
	batch := newBatchScope()
	inj := mustNew(t, []Declaration{
		BindScope("batch", batch),
		Constructor(c.newCounted).ScopedAs("batch"),
	})

	a := MustResolve[*Counted](context.Background(), inj)
	assert.Same(t, a, MustResolve[*Counted](context.Background(), inj))

	batch.reset()
	assert.NotSame(t, a, MustResolve[*Counted](context.Background(), inj))

	b, ok := inj.Binding(KeyOf[*Counted]())
	require.True(t, ok)
	assert.Equal(t, "batch", b.Scope().String())
}

func TestExplicitScopeOverridesAnnotation(t *testing.T) {
	c := &counter{}
	inj := mustNew(t, []Declaration{
		BindScope("batch", newBatchScope()),
		Constructor(c.newCounted).ScopedAs("batch"),
		Bind(KeyOf[*Counted](), ToSelf(), In(Unscoped)),
	})

	a := MustResolve[*Counted](context.Background(), inj)
	b := MustResolve[*Counted](context.Background(), inj)
	assert.NotSame(t, a, b)
}

func TestScopeErrors(t *testing.T) {
	tests := []struct {
		name  string
		decls []Declaration
		code  errors.ErrorCode
	}{
		{
			name:  "unknown annotation",
			decls: []Declaration{Bind(KeyOf[*Service](), ToConstructor(NewService), InScope("request"))},
			code:  errors.ErrCodeScopeNotFound,
		},
		{
			name:  "scope set twice",
			decls: []Declaration{Bind(KeyOf[string](), ToProviderFunc(func() string { return "" }), In(Singleton), InScope("singleton"))},
			code:  errors.ErrCodeScopeConflict,
		},
		{
			name:  "scoped instance",
			decls: []Declaration{Bind(KeyOf[string](), ToInstance("x"), In(Singleton))},
			code:  errors.ErrCodeScopeConflict,
		},
		{
			name: "eager with another scope",
			decls: []Declaration{
				BindScope("batch", newBatchScope()),
				Bind(KeyOf[string](), ToProviderFunc(func() string { return "" }), InScope("batch"), AsEagerSingleton()),
			},
			code: errors.ErrCodeScopeConflict,
		},
		{
			name:  "annotation bound twice",
			decls: []Declaration{BindScope("singleton", newBatchScope())},
			code:  errors.ErrCodeDuplicateBinding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newQuiet(tt.decls)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), err.Error())
		})
	}
}

func TestStagePreloading(t *testing.T) {
	decls := func(c *counter) []Declaration {
		return []Declaration{
			Constructor(c.newCounted),
			Bind(KeyOf[*Counted](), ToSelf(), In(Singleton)),
		}
	}

	dev := &counter{}
	mustNew(t, decls(dev))
	assert.Equal(t, int32(0), dev.n.Load())

	prod := &counter{}
	inj := mustNew(t, decls(prod), WithStage(Production))
	assert.Equal(t, int32(1), prod.n.Load())
	assert.Equal(t, Production, inj.Stage())

	MustResolve[*Counted](context.Background(), inj)
	assert.Equal(t, int32(1), prod.n.Load())

	b, _ := inj.Binding(KeyOf[*Counted]())
	v, ok := b.Singleton()
	require.True(t, ok)
	assert.Equal(t, int32(1), v.(*Counted).id)
}

func TestEagerSingletonInDevelopment(t *testing.T) {
	c := &counter{}
	mustNew(t, []Declaration{
		Bind(KeyOf[*Counted](), ToConstructor(c.newCounted), AsEagerSingleton()),
	})
	assert.Equal(t, int32(1), c.n.Load())
}

func TestPreloadFailureIsCreationError(t *testing.T) {
	type broken struct{}
	_, err := newQuiet([]Declaration{
		Bind(KeyOf[*broken](), ToConstructor(func() (*broken, error) { return nil, errTimeout }), AsEagerSingleton()),
	})
	require.Error(t, err)

	var ce *errors.CreationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Messages[0].Text, "error preloading singleton")
	assert.ErrorIs(t, err, errTimeout)
}

func TestParseStage(t *testing.T) {
	s, err := ParseStage("production")
	require.NoError(t, err)
	assert.Equal(t, Production, s)

	s, err = ParseStage("")
	require.NoError(t, err)
	assert.Equal(t, Development, s)

	_, err = ParseStage("staging")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
}
