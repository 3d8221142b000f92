package chathub

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	tu "github.com/BaSui01/edgechat/testutil"
	"github.com/BaSui01/edgechat/testutil/fixtures"
	"github.com/BaSui01/edgechat/types"
	"github.com/BaSui01/edgechat/upload"
)

func helloHub(t *testing.T) *tu.Hub {
	return tu.NewHub(t, func(ctx context.Context, c *tu.HubConn) {
		if !c.Handshake(ctx) {
			return
		}
		if _, ok := c.AwaitRequest(ctx); !ok {
			return
		}
		c.Send(ctx, helloPartial, fixtures.Final("Hello"))
	})
}

func TestClient_AskOverWebSocket(t *testing.T) {
	hub := helloHub(t)
	c := NewClient(testState(), WithURL(hub.URL()), WithUploader(&stubUploader{}))
	t.Cleanup(func() { _ = c.Close() })

	stream, err := c.Ask(tu.TestContext(t), "Hi", WithStyle(StylePrecise), WithLocale("de-DE"))
	require.NoError(t, err)
	updates := collect(t, stream)
	require.Len(t, updates, 2)
	assert.Equal(t, "Hello", updates[0].Text)
	assert.True(t, updates[1].Final)

	received := hub.Received()
	require.GreaterOrEqual(t, len(received), 3)
	assert.Equal(t, "{\"protocol\":\"json\",\"version\":1}\x1e", received[0])
	assert.Equal(t, "{\"type\":6}\x1e", received[1])

	reqs := hub.ReceivedOfType(TypeInvocation)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Precise", gjson.Get(reqs[0], "arguments.0.tone").String())
	assert.Equal(t, "de-DE", gjson.Get(reqs[0], "arguments.0.message.locale").String())
	assert.Equal(t, "conv-1", gjson.Get(reqs[0], "arguments.0.conversationId").String())

	// The client closes the socket after the final frame.
	tu.AssertEventuallyTrue(t, func() bool { return hub.ClosedConnections() == 1 }, 5*time.Second)
}

func TestClient_UpgradeRequest(t *testing.T) {
	hub := helloHub(t)
	state := testState()
	state.EncryptedConversationSignature = "enc/sig+=="
	cookies := []*http.Cookie{{Name: "_U", Value: "token"}, {Name: "SRCHHPGUSR", Value: "x"}}

	c := NewClient(state,
		WithURL(hub.URL()),
		WithCookies(cookies),
		WithMode(ModeCopilot),
		WithUploader(&stubUploader{}))
	t.Cleanup(func() { _ = c.Close() })

	_, err := mustAsk(t, c, "Hi").Final(tu.TestContext(t))
	require.NoError(t, err)

	headers := hub.Headers()
	require.Len(t, headers, 1)
	assert.Contains(t, headers[0].Get("Cookie"), "_U=token")
	assert.Contains(t, headers[0].Get("Cookie"), "SRCHHPGUSR=x")
	assert.Equal(t, "https://copilot.microsoft.com", headers[0].Get("Origin"))
	assert.NotEmpty(t, headers[0].Get("X-Ms-Client-Request-Id"))

	queries := hub.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, "enc/sig+==", queries[0].Get("sec_access_token"))
}

func TestClient_ServerDropsConnection(t *testing.T) {
	hub := tu.NewHub(t, func(ctx context.Context, c *tu.HubConn) {
		c.Handshake(ctx)
		c.AwaitRequest(ctx)
		c.Send(ctx, fixtures.Partial("Hel"))
		c.Drop()
	})
	c := NewClient(testState(), WithURL(hub.URL()), WithUploader(&stubUploader{}))
	t.Cleanup(func() { _ = c.Close() })

	updates := collect(t, mustAsk(t, c, "Hi"))
	require.Len(t, updates, 2)
	assert.Equal(t, "Hel", updates[0].Text)
	assert.True(t, types.IsErrorCode(updates[1].Err, types.ErrConnection))
}

func TestClient_DialFailure(t *testing.T) {
	c := NewClient(testState(), WithURL("ws://127.0.0.1:1/sydney/ChatHub"), WithUploader(&stubUploader{}))
	t.Cleanup(func() { _ = c.Close() })

	_, err := mustAsk(t, c, "Hi").Final(tu.TestContext(t))
	assert.True(t, types.IsErrorCode(err, types.ErrConnection))
}

func TestClient_Endpoint(t *testing.T) {
	c := NewClient(ConversationState{})
	u, err := c.Endpoint(ConversationState{})
	require.NoError(t, err)
	assert.Equal(t, DefaultHubURL, u)

	u, err = c.Endpoint(ConversationState{EncryptedConversationSignature: "a b/c"})
	require.NoError(t, err)
	parsed, err := url.Parse(u)
	require.NoError(t, err)
	assert.Equal(t, "sydney.bing.com", parsed.Host)
	assert.Equal(t, "a b/c", parsed.Query().Get("sec_access_token"))

	c = NewClient(ConversationState{}, WithURL("wss://example.com/hub?x=1"))
	u, err = c.Endpoint(ConversationState{EncryptedConversationSignature: "s"})
	require.NoError(t, err)
	parsed, _ = url.Parse(u)
	assert.Equal(t, "1", parsed.Query().Get("x"))
	assert.Equal(t, "s", parsed.Query().Get("sec_access_token"))
}

func TestClient_ConversationState(t *testing.T) {
	c := NewClient(testState())
	got := c.GetConversationState()
	assert.Equal(t, testState(), got)

	// Mutating the returned copy does not leak into the client.
	got.ConversationID = "changed"
	assert.Equal(t, "conv-1", c.GetConversationState().ConversationID)

	next := ConversationState{
		ConversationID:                 "conv-2",
		ClientID:                       "client-2",
		ConversationSignature:          "sig-2",
		EncryptedConversationSignature: "enc-2",
	}
	c.SetConversationState(next)
	assert.Equal(t, next, c.GetConversationState())
}

func TestClient_SetStateDoesNotAffectRunningStream(t *testing.T) {
	var mu sync.Mutex
	var requests []string
	release := make(chan struct{})
	hub := tu.NewHub(t, func(ctx context.Context, c *tu.HubConn) {
		c.Handshake(ctx)
		req, _ := c.AwaitRequest(ctx)
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()
		select {
		case <-release:
		case <-ctx.Done():
			return
		}
		c.Send(ctx, fixtures.Final("ok"))
	})
	c := NewClient(testState(), WithURL(hub.URL()), WithUploader(&stubUploader{}))
	t.Cleanup(func() { _ = c.Close() })

	stream := mustAsk(t, c, "Hi")
	tu.AssertEventuallyTrue(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(requests) == 1
	}, 5*time.Second)

	c.SetConversationState(ConversationState{ConversationID: "conv-2"})
	close(release)
	_, err := stream.Final(tu.TestContext(t))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "conv-1", gjson.Get(requests[0], "arguments.0.conversationId").String())
}

func TestClient_CloseStopsLiveStreams(t *testing.T) {
	hub := tu.NewHub(t, func(ctx context.Context, c *tu.HubConn) {
		c.Handshake(ctx)
		c.AwaitRequest(ctx)
	})
	c := NewClient(testState(), WithURL(hub.URL()), WithUploader(&stubUploader{}))

	s1 := mustAsk(t, c, "one")
	s2 := mustAsk(t, c, "two")
	tu.AssertEventuallyTrue(t, func() bool {
		return len(hub.ReceivedOfType(TypeInvocation)) == 2
	}, 5*time.Second)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	for _, s := range []*Stream{s1, s2} {
		select {
		case <-s.Done():
		default:
			t.Fatal("stream still running after client close")
		}
		assert.True(t, types.IsErrorCode(s.Err(), types.ErrCancelled))
	}

	_, err := c.Ask(tu.TestContext(t), "three")
	assert.True(t, types.IsErrorCode(err, types.ErrSessionClosed))
}

func TestClient_AskValidation(t *testing.T) {
	c := NewClient(testState(), WithTransport(connTransport(nil)))
	t.Cleanup(func() { _ = c.Close() })

	_, err := c.Ask(tu.TestContext(t), "   ")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	_, err = c.Ask(tu.TestContext(t), "hi", WithAttachment(upload.Attachment{}))
	assert.True(t, types.IsErrorCode(err, types.ErrAttachment))

	_, err = c.Ask(tu.TestContext(t), "hi", WithAttachment(upload.Attachment{
		ImagePath: "/tmp/a.png",
		ImageURL:  "https://example.com/a.png",
	}))
	assert.True(t, types.IsErrorCode(err, types.ErrAttachment))
}

func TestClient_BlankPromptOpensNoSocket(t *testing.T) {
	var opened atomic.Int32
	c := NewClient(testState(), WithTransport(TransportFunc(func(ctx context.Context, target Target) (Conn, error) {
		opened.Add(1)
		return nil, errors.New("unreachable")
	})))
	t.Cleanup(func() { _ = c.Close() })

	for _, prompt := range []string{"", " ", "\n\t"} {
		stream, err := c.Ask(tu.TestContext(t), prompt)
		assert.Nil(t, stream)
		assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest), "prompt %q", prompt)
	}
	assert.Zero(t, opened.Load())
}

func TestClient_ConcurrentAsks(t *testing.T) {
	hub := helloHub(t)
	c := NewClient(testState(), WithURL(hub.URL()), WithUploader(&stubUploader{}))
	t.Cleanup(func() { _ = c.Close() })

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream, err := c.Ask(context.Background(), "Hi")
			if err != nil {
				errs <- err
				return
			}
			defer stream.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_, err = stream.Final(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, n, hub.Connections())
}
