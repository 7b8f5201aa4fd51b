package api

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

const authRealm = `Basic realm="camcore API"`

var (
	errNoCredentials  = errors.New("Authentication required")
	errBadAuthType    = errors.New("Invalid authentication type")
	errBadCredentials = errors.New("Invalid credentials format")
	errWrongUser      = errors.New("Invalid credentials")
)

// basicAuth guards every operation that declares a security requirement.
// EventSource cannot set headers, so the SSE routes also accept the
// base64 "user:pass" pair in an auth query parameter.
func basicAuth(api huma.API, username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		user, pass, err := credentials(ctx)
		if err == nil && !(equal(user, username) && equal(pass, password)) {
			err = errWrongUser
		}
		if err != nil {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(api, ctx, http.StatusUnauthorized, err.Error())
			return
		}
		next(ctx)
	}
}

func credentials(ctx huma.Context) (string, string, error) {
	encoded := ctx.Query("auth")
	if header := ctx.Header("Authorization"); header != "" {
		scheme, rest, _ := strings.Cut(header, " ")
		if !strings.EqualFold(scheme, "Basic") {
			return "", "", errBadAuthType
		}
		encoded = rest
	}
	if encoded == "" {
		return "", "", errNoCredentials
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", errBadCredentials
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", errBadCredentials
	}
	return user, pass, nil
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// withAuth marks an operation as requiring basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{{"basicAuth": {}}}
}
