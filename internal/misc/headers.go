// Package misc holds small helpers shared by the auth and executor packages.
package misc

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

// LogSavingCredentials records that a credential file is about to be written.
// The path is logged at debug level so normal runs stay quiet.
func LogSavingCredentials(authFilePath string) {
	log.Debugf("saving credentials to %s", authFilePath)
}

// EnsureHeader sets a default header value unless the key is already present.
func EnsureHeader(h http.Header, key, value string) {
	if h.Get(key) == "" {
		h.Set(key, value)
	}
}
