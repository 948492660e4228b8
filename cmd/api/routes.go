package main

import (
	"net/http"

	"github.com/pairchat/pairchat/internal/auth"
	"github.com/pairchat/pairchat/internal/middleware"
	"github.com/pairchat/pairchat/internal/ws"
)

// newRouter wires the HTTP surface. Every message route requires a valid
// token; only send is rate limited. The websocket endpoint accepts
// anonymous connections so clients can observe presence before login.
func newRouter(srv *Server, gw *ws.Gateway, jwtMgr *auth.JWTManager, limiter *middleware.LimiterStore) http.Handler {
	mux := http.NewServeMux()

	authed := middleware.Auth(jwtMgr)
	limited := middleware.RateLimit(limiter)

	mux.Handle("POST /api/messages/send/{peerId}", authed(limited(http.HandlerFunc(srv.sendMessage))))
	mux.Handle("GET /api/messages/{peerId}", authed(http.HandlerFunc(srv.listMessages)))
	mux.Handle("PUT /api/messages/{messageId}", authed(http.HandlerFunc(srv.editMessage)))
	mux.Handle("DELETE /api/messages/{messageId}", authed(http.HandlerFunc(srv.deleteMessage)))
	mux.Handle("POST /api/messages/{messageId}/reaction", authed(http.HandlerFunc(srv.addReaction)))
	mux.Handle("DELETE /api/messages/{messageId}/reaction", authed(http.HandlerFunc(srv.removeReaction)))

	mux.HandleFunc("GET /ws", gw.HandleWS)

	return mux
}
