package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/permgate-org/permgate/pkg/types"
)

func testCtx() types.PermissionContext {
	return types.PermissionContext{URI: "/a.go", Operation: types.OpRead, Scope: types.ScopeFile}
}

func TestManagerRequestAndRespond(t *testing.T) {
	m := NewManager(nil)

	id := m.Request(testCtx())
	if !strings.HasPrefix(id, "dec_") {
		t.Fatalf("unexpected prompt id %q", id)
	}

	done := make(chan Response, 1)
	go func() {
		resp, err := m.Wait(context.Background(), id, time.Second)
		if err != nil {
			t.Errorf("wait: %v", err)
		}
		done <- resp
	}()

	// Give the waiter a moment; Respond works either way thanks to the
	// buffered channel.
	if err := m.Respond(id, Response{Approved: true, Always: true}); err != nil {
		t.Fatalf("respond: %v", err)
	}

	resp := <-done
	if !resp.Approved || !resp.Always {
		t.Fatalf("unexpected response %+v", resp)
	}

	if _, ok := m.Context(id); ok {
		t.Fatalf("expected pending entry removed after wait")
	}
}

func TestManagerWaitTimeout(t *testing.T) {
	m := NewManager(nil)
	id := m.Request(testCtx())

	_, err := m.Wait(context.Background(), id, 10*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestManagerWaitContextCancel(t *testing.T) {
	m := NewManager(nil)
	id := m.Request(testCtx())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Wait(ctx, id, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestManagerUnknownRequest(t *testing.T) {
	m := NewManager(nil)

	if err := m.Respond("dec_missing", Response{}); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound from Respond, got %v", err)
	}
	if _, err := m.Wait(context.Background(), "dec_missing", time.Second); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound from Wait, got %v", err)
	}
}

func TestManagerDoubleRespond(t *testing.T) {
	m := NewManager(nil)
	id := m.Request(testCtx())

	if err := m.Respond(id, Response{Approved: true}); err != nil {
		t.Fatalf("first respond: %v", err)
	}
	if err := m.Respond(id, Response{Approved: false}); err == nil {
		t.Fatalf("expected error on second respond")
	}
}

func TestManagerListAndRemove(t *testing.T) {
	m := NewManager(nil)
	id1 := m.Request(testCtx())
	id2 := m.Request(testCtx())

	if got := len(m.List()); got != 2 {
		t.Fatalf("expected 2 pending prompts, got %d", got)
	}

	m.Remove(id1)
	list := m.List()
	if len(list) != 1 || list[0].ID != id2 {
		t.Fatalf("unexpected pending list %+v", list)
	}

	pctx, ok := m.Context(id2)
	if !ok || pctx.URI != "/a.go" {
		t.Fatalf("unexpected context %+v %v", pctx, ok)
	}
}
