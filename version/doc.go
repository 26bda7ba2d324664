// Package version reports the flowkit build: release tag, commit and build
// time. The values are stamped at link time:
//
//	go build -ldflags "-X github.com/kbukum/flowkit/version.Version=v0.4.0 \
//	    -X github.com/kbukum/flowkit/version.Commit=$(git rev-parse --short HEAD)"
//
// Missing values fall back to the VCS stamps the Go toolchain embeds.
package version
