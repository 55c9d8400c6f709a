// Package buildinfo holds version data stamped at link time:
//
//	go build -ldflags "-X orderbridge/internal/buildinfo.Version=v1.2.0 -X orderbridge/internal/buildinfo.Commit=$(git rev-parse HEAD)"
package buildinfo

import "runtime"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"commit":    Commit,
		"builtAt":   BuiltAt,
		"goVersion": runtime.Version(),
	}
}
