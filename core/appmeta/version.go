// Package appmeta carries build metadata.
package appmeta

import "runtime"

const AppName = "logement"

// AppVersion is set at build time:
//
//	go build -ldflags "-X github.com/satanpticoeur/social-logement-app/core/appmeta.AppVersion=1.2.0"
var AppVersion = "dev"

func UserAgent() string {
	return AppName + "/" + AppVersion + " (" + runtime.GOOS + "; " + runtime.GOARCH + ")"
}
