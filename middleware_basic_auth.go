package main

import (
	"crypto/subtle"
	"net/http"
)

type basicAuthMiddleware struct {
	handler  http.Handler
	realm    string
	user     []byte
	password []byte
}

func (b *basicAuthMiddleware) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	user, pass, ok := req.BasicAuth()

	if ok && b.check([]byte(user), []byte(pass)) {
		b.handler.ServeHTTP(w, req)

		return
	}

	w.Header().Set("WWW-Authenticate", `Basic realm="`+b.realm+`"`)
	http.Error(w, "Authentication is required", http.StatusUnauthorized)
}

func (b *basicAuthMiddleware) check(user, password []byte) bool {
	userOk := subtle.ConstantTimeCompare(b.user, user)
	passwordOk := subtle.ConstantTimeCompare(b.password, password)

	return userOk+passwordOk == 2
}

func newBasicAuthMiddleware(handler http.Handler, auth configBasicAuth) http.Handler {
	if !auth.Enabled() {
		return handler
	}

	return &basicAuthMiddleware{
		handler:  handler,
		realm:    "visitormap",
		user:     []byte(auth.User),
		password: []byte(auth.Password),
	}
}
