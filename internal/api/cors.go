package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// corsPolicy is the set of CORS headers written on every API response and
// on preflight requests.
type corsPolicy struct {
	origin  string
	methods string
	headers string
	maxAge  string
}

// newCORSPolicy allows origin, or any origin when empty. Last-Event-ID is
// allowed so browsers can resume event streams.
func newCORSPolicy(origin string) corsPolicy {
	if origin == "" {
		origin = "*"
	}
	return corsPolicy{
		origin:  origin,
		methods: strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}, ", "),
		headers: strings.Join([]string{"Content-Type", "Authorization", "Accept", "Last-Event-ID"}, ", "),
		maxAge:  strconv.Itoa(86400),
	}
}

func (p corsPolicy) write(set func(key, value string)) {
	set("Access-Control-Allow-Origin", p.origin)
	set("Access-Control-Allow-Methods", p.methods)
	set("Access-Control-Allow-Headers", p.headers)
	set("Access-Control-Max-Age", p.maxAge)
}

// middleware adds the headers to huma operations.
func (p corsPolicy) middleware(ctx huma.Context, next func(huma.Context)) {
	p.write(ctx.SetHeader)
	if ctx.Method() == http.MethodOptions {
		ctx.SetStatus(http.StatusNoContent)
		return
	}
	next(ctx)
}

// preflight answers OPTIONS on the mux, since huma only sees requests that
// match a registered operation.
func (p corsPolicy) preflight(w http.ResponseWriter, _ *http.Request) {
	p.write(w.Header().Set)
	w.WriteHeader(http.StatusNoContent)
}
