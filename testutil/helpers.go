package testutil

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/errors"
	"github.com/kbukum/injectkit/logger"
)

// THelper creates injectors for a test and tears them down with it.
type THelper struct {
	t   testing.TB
	ctx context.Context
}

// T wraps a test to provide helper methods.
//
// Example:
//
//	func TestOrders(t *testing.T) {
//	    inj := testutil.T(t).Start(orders.Declarations()...)
//	    svc := testutil.Resolve[*orders.Service](t, inj)
//	}
func T(t testing.TB) *THelper {
	return &THelper{t: t, ctx: context.Background()}
}

// WithContext sets the context used to start and stop components.
func (h *THelper) WithContext(ctx context.Context) *THelper {
	h.ctx = ctx
	return h
}

// Context returns the helper's context.
func (h *THelper) Context() context.Context { return h.ctx }

// Injector creates an injector from decls with a silent logger, failing the
// test on any creation error.
func (h *THelper) Injector(decls []di.Declaration, opts ...di.Option) *di.Injector {
	h.t.Helper()
	opts = append([]di.Option{di.WithLogger(logger.Nop())}, opts...)
	inj, err := di.New(decls, opts...)
	if err != nil {
		h.t.Fatalf("failed to create injector: %v", err)
	}
	return inj
}

// Start creates an injector from decls and starts its components. They are
// stopped when the test ends.
func (h *THelper) Start(decls ...di.Declaration) *di.Injector {
	h.t.Helper()
	inj := h.Injector(decls)
	if err := inj.Start(h.ctx); err != nil {
		h.t.Fatalf("failed to start components: %v", err)
	}
	h.t.Cleanup(func() {
		if err := inj.Stop(h.ctx); err != nil {
			h.t.Errorf("failed to stop components: %v", err)
		}
	})
	return inj
}

// Child creates a child of parent from decls.
func (h *THelper) Child(parent *di.Injector, decls ...di.Declaration) *di.Injector {
	h.t.Helper()
	child, err := parent.CreateChild(decls)
	if err != nil {
		h.t.Fatalf("failed to create child injector: %v", err)
	}
	return child
}

// CreationError creates an injector from decls, fails the test unless
// creation reports code, and returns the aggregate error.
func (h *THelper) CreationError(code errors.ErrorCode, decls ...di.Declaration) *errors.CreationError {
	h.t.Helper()
	_, err := di.New(decls, di.WithLogger(logger.Nop()))
	if err == nil {
		h.t.Fatalf("expected %s, injector was created", code)
	}
	var ce *errors.CreationError
	if !stderrors.As(err, &ce) {
		h.t.Fatalf("expected *errors.CreationError, got %T: %v", err, err)
	}
	if !errors.HasCode(ce, code) {
		h.t.Fatalf("expected %s, got: %v", code, ce)
	}
	return ce
}

// Resolve returns the instance bound to T, failing the test on error.
func Resolve[T any](t testing.TB, inj *di.Injector) T {
	t.Helper()
	v, err := di.Resolve[T](context.Background(), inj)
	if err != nil {
		t.Fatalf("failed to resolve %s: %v", di.KeyOf[T](), err)
	}
	return v
}

// ProvisionError resolves T, fails the test unless provisioning fails with
// code, and returns the collapsed error.
func ProvisionError[T any](t testing.TB, inj *di.Injector, code errors.ErrorCode) *errors.ProvisionError {
	t.Helper()
	_, err := di.Resolve[T](context.Background(), inj)
	if err == nil {
		t.Fatalf("expected %s while resolving %s", code, di.KeyOf[T]())
	}
	var pe *errors.ProvisionError
	if !stderrors.As(err, &pe) {
		t.Fatalf("expected *errors.ProvisionError, got %T: %v", err, err)
	}
	if !errors.HasCode(pe, code) {
		t.Fatalf("expected %s, got: %v", code, pe)
	}
	return pe
}
