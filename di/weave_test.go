package di

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/injectkit/aop"
	"github.com/kbukum/injectkit/errors"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) record(name string) aop.Interceptor {
	return aop.InterceptorFunc(func(inv *aop.Invocation) (any, error) {
		l.mu.Lock()
		l.calls = append(l.calls, name+":"+inv.Method().Name)
		l.mu.Unlock()
		return inv.Proceed()
	})
}

func (l *callLog) entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

var anyType = aop.Any[reflect.Type]()

func TestInterceptorsRunInRegistrationOrder(t *testing.T) {
	log := &callLog{}
	inj := mustNew(t, []Declaration{
		Bind(KeyOf[Calculator](), ToConstructor(newBasicCalc)),
		BindInterceptor(anyType, aop.Named("Add"), log.record("first")),
		BindInterceptor(anyType, aop.Named("Add"), log.record("second")),
	})

	calc := MustResolve[Calculator](context.Background(), inj)
	assert.Equal(t, 5, calc.Add(2, 3))
	q, err := calc.Divide(9, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, q)

	assert.Equal(t, []string{"first:Add", "second:Add"}, log.entries())

	b, _ := inj.Binding(KeyOf[Calculator]())
	assert.True(t, b.Intercepted())
}

func TestInterceptorSeesWovenInstance(t *testing.T) {
	var this any
	inj := mustNew(t, []Declaration{
		Bind(KeyOf[Calculator](), ToConstructor(newBasicCalc), In(Singleton)),
		BindInterceptor(anyType, aop.Named("Divide"), aop.InterceptorFunc(func(inv *aop.Invocation) (any, error) {
			this = inv.This()
			if inv.Arguments()[1] == 0 {
				return -1, nil
			}
			return inv.Proceed()
		})),
	})

	calc := MustResolve[Calculator](context.Background(), inj)
	q, err := calc.Divide(1, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, q)
	assert.Same(t, calc, this)
}

func TestLinkedBindingIsWoven(t *testing.T) {
	log := &callLog{}
	inj := mustNew(t, []Declaration{
		Constructor(newBasicCalc),
		Bind(KeyOf[Calculator](), ToKey(KeyOf[*basicCalc]())),
		BindInterceptor(aop.Only(reflect.TypeOf(&basicCalc{})), aop.Any[reflect.Method](), log.record("audit")),
	})

	calc := MustResolve[Calculator](context.Background(), inj)
	_, woven := calc.(*calcWrapper)
	assert.True(t, woven)
	calc.Add(1, 1)
	assert.Equal(t, []string{"audit:Add"}, log.entries())

	// The concrete key is not woven.
	raw := MustResolve[*basicCalc](context.Background(), inj)
	assert.Equal(t, 2, raw.Add(1, 1))
	assert.Len(t, log.entries(), 1)
}

func TestUnmatchedBindingIsNotWoven(t *testing.T) {
	inj := mustNew(t, []Declaration{
		Bind(KeyOf[Calculator](), ToConstructor(newBasicCalc)),
		BindInterceptor(aop.InPackage("example.com/elsewhere"), aop.Any[reflect.Method](), (&callLog{}).record("x")),
	})

	calc := MustResolve[Calculator](context.Background(), inj)
	_, isRaw := calc.(*basicCalc)
	assert.True(t, isRaw)
}

func TestInterceptionWithoutWrapperFails(t *testing.T) {
	_, err := newQuiet([]Declaration{
		Bind(Named[string]("prefix"), ToInstance("x")),
		Bind(KeyOf[Repository](), ToConstructor(newMemRepo, Param(0, "prefix"))),
		BindInterceptor(anyType, aop.Any[reflect.Method](), (&callLog{}).record("x")),
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInterception))
}

func TestChildInjector(t *testing.T) {
	parent := mustNew(t, append(repoDecls(),
		Bind(KeyOf[*worker](), ToConstructor(newWorker), In(Singleton)),
	))
	child, err := parent.CreateChild([]Declaration{
		Bind(Named[string]("child"), ToInstance("only in child")),
	})
	require.NoError(t, err)
	assert.Same(t, parent, child.Parent())

	assert.Same(t,
		MustResolve[*worker](context.Background(), parent),
		MustResolve[*worker](context.Background(), child))

	_, err = ResolveNamed[string](context.Background(), parent, "child")
	assert.True(t, errors.HasCode(err, errors.ErrCodeMissingBinding))

	svc := MustResolve[*Service](context.Background(), child)
	assert.Equal(t, "item-1", svc.repo.Find(1))
	assert.Len(t, child.Bindings(), 1)
}

func TestChildCannotRebindParentKey(t *testing.T) {
	parent := mustNew(t, repoDecls())
	_, err := parent.CreateChild([]Declaration{
		Bind(Named[string]("prefix"), ToInstance("other-"), WithSource("child.go:3")),
	}, WithLogger(parent.log))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDuplicateBinding))
	assert.Contains(t, err.Error(), "child.go:3")
}

func TestChildInjectorsShareWovenClasses(t *testing.T) {
	log := &callLog{}
	parent := mustNew(t, []Declaration{
		Bind(KeyOf[Calculator](), ToConstructor(newBasicCalc)),
		BindInterceptor(anyType, aop.Named("Add"), log.record("parent")),
	})
	child1, err := parent.CreateChild([]Declaration{Bind(Named[Calculator]("one"), ToConstructor(newBasicCalc))})
	require.NoError(t, err)
	child2, err := parent.CreateChild([]Declaration{Bind(Named[Calculator]("two"), ToConstructor(newBasicCalc))})
	require.NoError(t, err)

	p := MustResolve[Calculator](context.Background(), parent)
	c1, err := child1.GetInstance(context.Background(), Named[Calculator]("one"))
	require.NoError(t, err)
	c2, err := child2.GetInstance(context.Background(), Named[Calculator]("two"))
	require.NoError(t, err)

	pc, ok := aop.ClassOf(p)
	require.True(t, ok)
	c1c, ok := aop.ClassOf(c1)
	require.True(t, ok)
	c2c, ok := aop.ClassOf(c2)
	require.True(t, ok)
	assert.Same(t, pc, c1c)
	assert.Same(t, pc, c2c)

	c1.(Calculator).Add(1, 2)
	assert.Equal(t, []string{"parent:Add"}, log.entries())
}

func TestChildAddsInterceptors(t *testing.T) {
	log := &callLog{}
	parent := mustNew(t, []Declaration{
		BindInterceptor(anyType, aop.Named("Add"), log.record("parent")),
	})
	child, err := parent.CreateChild([]Declaration{
		Bind(KeyOf[Calculator](), ToConstructor(newBasicCalc)),
		BindInterceptor(anyType, aop.Named("Add"), log.record("child")),
	})
	require.NoError(t, err)

	MustResolve[Calculator](context.Background(), child).Add(1, 1)
	assert.Equal(t, []string{"parent:Add", "child:Add"}, log.entries())
}
