// Package testutil helps tests build injectors.
//
// Injectors are created with a silent logger, creation failures fail the
// test, and components started through the helper are stopped when the
// test ends:
//
//	func TestCheckout(t *testing.T) {
//	    inj := testutil.T(t).Start(
//	        di.Bind(di.KeyOf[Store](), di.ToConstructor(newMemStore), di.In(di.Singleton)),
//	        di.Bind(di.KeyOf[*Checkout](), di.ToConstructor(NewCheckout)),
//	    )
//	    c := testutil.Resolve[*Checkout](t, inj)
//	}
//
// CreationError and ProvisionError assert that configuration or
// provisioning fails with a given code.
package testutil
