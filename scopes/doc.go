// Package scopes provides di scopes whose instances are carried by a
// context.Context, such as request and session scopes.
//
// A scope instance is entered with Enter, usually by middleware, and values
// of keys bound in the scope are cached in it until it ends:
//
//	request := scopes.Request()
//	injector, err := di.New([]di.Declaration{
//	    request.Declaration(),
//	    di.Bind(di.KeyOf[*orders.Cart](), di.ToConstructor(orders.NewCart), di.InScope(scopes.RequestAnnotation)),
//	})
//	router.Use(scopes.Middleware(request))
//
// Resolving a key of the scope outside an entered instance fails with
// OUT_OF_SCOPE.
//
// Middleware starts instances with Begin and only resumes ids it issued with
// Resume, so request headers and cookies never create instances on their own.
// Session scopes end instances left idle for DefaultSessionIdleTimeout.
package scopes
