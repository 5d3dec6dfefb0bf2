package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"hamhub/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestServerStartupAndHealthCheck(t *testing.T) {
	addr := freePort(t)
	cfg := &config.Config{
		AppPort:      addr,
		AppEnv:       config.EnvDevelopment,
		DBDriver:     config.DriverMemory,
		JWTSecret:    "test_jwt_secret",
		JWTExpiresIn: time.Hour,
		BcryptCost:   bcrypt.MinCost,
		LoginPath:    "/login",
		HomePath:     "/",
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, log) }()

	base := fmt.Sprintf("http://%s", addr)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 50*time.Millisecond)

	t.Run("HealthCheck", func(t *testing.T) {
		resp, err := http.Get(base + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"status":"healthy"`)
	})

	t.Run("UnauthenticatedAccess", func(t *testing.T) {
		resp, err := http.Get(base + "/api/auth/profile")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("GatedPageRedirects", func(t *testing.T) {
		client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}}
		resp, err := client.Get(base + "/admin")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	})

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	err := run(context.Background(), &config.Config{DBDriver: config.DriverMemory}, logrus.New())
	assert.ErrorIs(t, err, config.ErrMissingSecret)
}
