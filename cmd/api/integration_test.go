package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pairchat/pairchat/internal/auth"
	"github.com/pairchat/pairchat/internal/chat"
	"github.com/pairchat/pairchat/internal/data"
	"github.com/pairchat/pairchat/internal/db"
	"github.com/pairchat/pairchat/internal/middleware"
	"github.com/pairchat/pairchat/internal/ws"
)

// newTestStack builds the full HTTP stack against a live MongoDB. Skips
// when MONGODB_URI is not set.
func newTestStack(t *testing.T) (*httptest.Server, *auth.JWTManager) {
	return newTestStackWithLimit(t, 1000, 1000)
}

func newTestStackWithLimit(t *testing.T, rpm, burst int) (*httptest.Server, *auth.JWTManager) {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	dbClient, err := db.New(ctx, uri)
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	t.Cleanup(func() {
		_ = dbClient.ConversationsCollection().Drop(context.Background())
		_ = dbClient.MessagesCollection().Drop(context.Background())
		_ = dbClient.Close(context.Background())
	})
	if err := dbClient.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	convsStore := data.NewConversationsStore(dbClient.ConversationsCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	limiter := middleware.NewLimiterStore(rpm, burst, time.Minute)
	t.Cleanup(limiter.Stop)

	gateway := ws.NewGateway(ws.NewMemoryRegistry())
	svc := chat.NewService(convsStore, msgsStore, gateway)
	srv := NewServer(svc)

	ts := httptest.NewServer(newRouter(srv, gateway, jwtMgr, limiter))
	t.Cleanup(ts.Close)
	t.Cleanup(gateway.Shutdown)

	return ts, jwtMgr
}

func authedRequest(t *testing.T, jwtMgr *auth.JWTManager, method, url, userID, body string) *http.Request {
	t.Helper()
	token, _, err := jwtMgr.GenerateToken(userID)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func doRequest(t *testing.T, req *http.Request, wantStatus int) *data.Message {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status = %d, want %d", req.Method, req.URL.Path, resp.StatusCode, wantStatus)
	}
	if wantStatus >= 400 {
		return nil
	}
	var msg data.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &msg
}

func TestMessageLifecycleOverHTTP(t *testing.T) {
	ts, jwtMgr := newTestStack(t)

	// alice sends bob a message
	msg := doRequest(t,
		authedRequest(t, jwtMgr, http.MethodPost, ts.URL+"/api/messages/send/bob", "alice", `{"message":"hello bob"}`),
		http.StatusCreated)
	if msg.SenderID != "alice" || msg.ReceiverID != "bob" || msg.Body != "hello bob" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	msgID := msg.ID.Hex()

	// bob cannot edit alice's message
	doRequest(t,
		authedRequest(t, jwtMgr, http.MethodPut, ts.URL+"/api/messages/"+msgID, "bob", `{"message":"hijacked"}`),
		http.StatusForbidden)

	// alice edits her own message
	edited := doRequest(t,
		authedRequest(t, jwtMgr, http.MethodPut, ts.URL+"/api/messages/"+msgID, "alice", `{"message":"hello again"}`),
		http.StatusOK)
	if !edited.Edited || edited.Body != "hello again" {
		t.Fatalf("edit not applied: %+v", edited)
	}

	// bob reacts, alice reacts, then bob changes his reaction
	doRequest(t,
		authedRequest(t, jwtMgr, http.MethodPost, ts.URL+"/api/messages/"+msgID+"/reaction", "bob", `{"emoji":"👍"}`),
		http.StatusOK)
	reacted := doRequest(t,
		authedRequest(t, jwtMgr, http.MethodPost, ts.URL+"/api/messages/"+msgID+"/reaction", "bob", `{"emoji":"🔥"}`),
		http.StatusOK)
	if reacted.Reactions["bob"] != "🔥" {
		t.Fatalf("reactions = %v, want bob=🔥", reacted.Reactions)
	}

	// bob removes his reaction
	cleared := doRequest(t,
		authedRequest(t, jwtMgr, http.MethodDelete, ts.URL+"/api/messages/"+msgID+"/reaction", "bob", ""),
		http.StatusOK)
	if _, ok := cleared.Reactions["bob"]; ok {
		t.Fatalf("reaction not removed: %v", cleared.Reactions)
	}

	// alice deletes the message; second delete is a no-op with the same result
	deleted := doRequest(t,
		authedRequest(t, jwtMgr, http.MethodDelete, ts.URL+"/api/messages/"+msgID, "alice", ""),
		http.StatusOK)
	if !deleted.Deleted || deleted.Body != data.DeletedBody {
		t.Fatalf("not tombstoned: %+v", deleted)
	}
	again := doRequest(t,
		authedRequest(t, jwtMgr, http.MethodDelete, ts.URL+"/api/messages/"+msgID, "alice", ""),
		http.StatusOK)
	if !again.Deleted || again.Body != data.DeletedBody {
		t.Fatalf("repeat delete changed state: %+v", again)
	}

	// editing a deleted message fails
	doRequest(t,
		authedRequest(t, jwtMgr, http.MethodPut, ts.URL+"/api/messages/"+msgID, "alice", `{"message":"resurrect"}`),
		http.StatusBadRequest)

	// the tombstone still shows up in both participants' history
	for _, tc := range []struct{ viewer, peer string }{{"alice", "bob"}, {"bob", "alice"}} {
		req := authedRequest(t, jwtMgr, http.MethodGet, ts.URL+"/api/messages/"+tc.peer, tc.viewer, "")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		var msgs []*data.Message
		if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
			t.Fatalf("decode list: %v", err)
		}
		resp.Body.Close()
		if len(msgs) != 1 {
			t.Fatalf("viewer %s: got %d messages, want 1", tc.viewer, len(msgs))
		}
		if !msgs[0].Deleted || msgs[0].Body != data.DeletedBody {
			t.Fatalf("viewer %s: tombstone missing: %+v", tc.viewer, msgs[0])
		}
	}
}

func TestConversationHistoryOrder(t *testing.T) {
	ts, jwtMgr := newTestStack(t)

	for i := 0; i < 3; i++ {
		sender, receiver := "carol", "dave"
		if i%2 == 1 {
			sender, receiver = "dave", "carol"
		}
		doRequest(t,
			authedRequest(t, jwtMgr, http.MethodPost, ts.URL+"/api/messages/send/"+receiver, sender,
				fmt.Sprintf(`{"message":"msg %d"}`, i)),
			http.StatusCreated)
	}

	req := authedRequest(t, jwtMgr, http.MethodGet, ts.URL+"/api/messages/carol", "dave", "")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	defer resp.Body.Close()

	var msgs []*data.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, m := range msgs {
		want := fmt.Sprintf("msg %d", i)
		if m.Body != want {
			t.Fatalf("msgs[%d].Body = %q, want %q", i, m.Body, want)
		}
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	ts, _ := newTestStack(t)

	resp, err := http.Post(ts.URL+"/api/messages/send/bob", "application/json", strings.NewReader(`{"message":"hi"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestSendRateLimited(t *testing.T) {
	ts, jwtMgr := newTestStackWithLimit(t, 1, 2)

	for i := 0; i < 2; i++ {
		doRequest(t,
			authedRequest(t, jwtMgr, http.MethodPost, ts.URL+"/api/messages/send/bob", "eve",
				fmt.Sprintf(`{"message":"burst %d"}`, i)),
			http.StatusCreated)
	}

	doRequest(t,
		authedRequest(t, jwtMgr, http.MethodPost, ts.URL+"/api/messages/send/bob", "eve", `{"message":"over"}`),
		http.StatusTooManyRequests)

	// another user is unaffected
	doRequest(t,
		authedRequest(t, jwtMgr, http.MethodPost, ts.URL+"/api/messages/send/bob", "mallory", `{"message":"fresh"}`),
		http.StatusCreated)
}

func TestUnknownMessageIs404(t *testing.T) {
	ts, jwtMgr := newTestStack(t)

	// well-formed but unknown ObjectID
	doRequest(t,
		authedRequest(t, jwtMgr, http.MethodPut, ts.URL+"/api/messages/65f000000000000000000000", "alice", `{"message":"x"}`),
		http.StatusNotFound)

	// malformed id behaves the same as a missing one
	doRequest(t,
		authedRequest(t, jwtMgr, http.MethodPut, ts.URL+"/api/messages/not-an-id", "alice", `{"message":"x"}`),
		http.StatusNotFound)
}
