package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lox/holdem-arena/internal/agent"
)

func TestRunServesUntilContextCancelled(t *testing.T) {
	t.Parallel()

	srv, _, _ := testServer(t, agent.Config{}, quietArena())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond, "server never came up")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server never shut down")
	}
}

func TestRunReportsListenFailure(t *testing.T) {
	t.Parallel()

	srv, _, _ := testServer(t, agent.Config{}, quietArena())

	err := srv.Run(context.Background(), "not-an-address")
	require.Error(t, err)
	require.Contains(t, err.Error(), "listen")
}
