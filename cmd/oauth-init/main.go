// Command oauth-init runs the installed-app OAuth flow once and saves a
// refreshable user token for the Google Sheets remote.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"

	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/log"
	"spendwise/internal/remote/google"
)

func main() {
	envFile := flag.String("env-file", "", "dotenv file to load (default: .env)")
	port := flag.String("port", "8085", "local port for the OAuth redirect")
	timeout := flag.Duration("timeout", 5*time.Minute, "how long to wait for authorization")
	flag.Parse()

	var paths []string
	if *envFile != "" {
		paths = append(paths, *envFile)
	}
	if err := cli.LoadEnvFile(paths...); err != nil {
		log.FromContext(context.Background()).Error("Failed to load env file", log.FieldError, err)
		os.Exit(1)
	}
	cfg := config.Load()
	logger := cli.SetupLogger(cfg)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	out := cfg.GoogleOAuthTokenFile
	if out == "" {
		out = "token.json"
	}
	if err := run(ctx, cfg, *port, out); err != nil {
		logger.Error("Authorization failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Saved token", "token_file", out)
}

func run(ctx context.Context, cfg *config.Config, port, out string) error {
	secret, err := google.ReadClientSecret(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
	if err != nil {
		return err
	}
	// The OAuth client must list this redirect URI.
	oc, err := google.OAuthConfig(secret, "http://localhost:"+port+"/callback")
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", "localhost:"+port)
	if err != nil {
		return fmt.Errorf("listen for redirect: %w", err)
	}
	state := "spendwise-" + time.Now().Format("150405")
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "OAuth error: "+q.Get("error"), http.StatusBadRequest)
			errCh <- fmt.Errorf("oauth error: %s", q.Get("error"))
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
		default:
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
			codeCh <- q.Get("code")
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		sctx, cancel := cli.ShutdownContext(2 * time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	fmt.Printf("Open this URL to authorize:\n%s\n", oc.AuthCodeURL(state, oauth2.AccessTypeOffline))

	select {
	case code := <-codeCh:
		tok, err := oc.Exchange(ctx, code)
		if err != nil {
			return fmt.Errorf("token exchange: %w", err)
		}
		return google.SaveToken(out, tok)
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("authorization timed out")
		}
		return errors.New("interrupted")
	}
}
