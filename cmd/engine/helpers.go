package main

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	lockFileName      = "jobwatch.lock"
	shutdownTokenFile = "shutdown.token"
	shutdownTokenEnv  = "JOBWATCH_SHUTDOWN_TOKEN"
)

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// writeShutdownToken picks the token for /shutdown (JOBWATCH_SHUTDOWN_TOKEN,
// or a random one) and writes it to <dir>/shutdown.token for a supervisor
// to read.
func writeShutdownToken(dir string) (token, path string, err error) {
	token = strings.TrimSpace(os.Getenv(shutdownTokenEnv))
	if token == "" {
		if token, err = randomToken(32); err != nil {
			return "", "", fmt.Errorf("shutdown token: %w", err)
		}
	}
	path = filepath.Join(dir, shutdownTokenFile)
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return "", "", fmt.Errorf("write %s: %w", path, err)
	}
	return token, path, nil
}

// lockDataDir takes an exclusive lock so two engines never reconcile the
// same store.
func lockDataDir(dir string) (func(), error) {
	fl := flock.New(filepath.Join(dir, lockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("another engine is already using %s", dir)
	}
	return func() { _ = fl.Unlock() }, nil
}

// shutdownHandler lets a local supervisor stop the engine. Requests must
// come from loopback and carry the token in X-Shutdown-Token.
func shutdownHandler(token string, stop func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		got := r.Header.Get("X-Shutdown-Token")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		w.WriteHeader(http.StatusNoContent)
		go stop()
	}
}
