package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient() *Client {
	return &Client{send: make(chan []byte, sendBufferSize)}
}

func TestSendQueuesMessage(t *testing.T) {
	c := mockClient()
	if !c.Send(NewMessage(TypeMessages, 3, 2, "<li>hi</li>")) {
		t.Fatal("expected message to be queued")
	}
	var got Message
	if err := json.Unmarshal(<-c.send, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != TypeMessages || got.ClaimID != 3 || got.Count != 2 {
		t.Errorf("message = %+v", got)
	}
}

func TestSendFullBuffer(t *testing.T) {
	c := mockClient()
	for i := 0; i < sendBufferSize; i++ {
		if !c.Send(NewMessage(TypeMessages, 1, i, "")) {
			t.Fatalf("message %d dropped early", i)
		}
	}
	// This should drop the message, not block
	if c.Send(NewMessage(TypeMessages, 1, 999, "")) {
		t.Error("expected message to be dropped when buffer is full")
	}
}

func TestRunDeliversMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := Accept(w, r)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		c.Send(NewMessage(TypeReload, 7, 0, ""))
		c.Run(r.Context())
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != TypeReload || got.ClaimID != 7 {
		t.Errorf("message = %+v", got)
	}
}
