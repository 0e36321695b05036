// Package version reports the build version of the binary. The bootstrap
// package uses it when no version is given to the application.
//
// Version, commit and build time are set at compile time via -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/injectkit/version.Version=1.0.0"
package version
