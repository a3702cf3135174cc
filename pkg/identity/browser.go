package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"time"

	"github.com/go-michi/michi"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"github.com/subsealabs/osduauth"
)

// InteractiveBrowserCredential acquires tokens through the authorization-code
// flow with PKCE: a browser window is opened against the authority's consent
// screen and the redirect lands on a short-lived localhost callback server.
type InteractiveBrowserCredential struct {
	baseCredential
}

var _ osduauth.Credential = (*InteractiveBrowserCredential)(nil)

// NewInteractiveBrowser builds an interactive browser credential from cfg.
func NewInteractiveBrowser(cfg Config) (*InteractiveBrowserCredential, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cred := &InteractiveBrowserCredential{}
	cred.cfg = cfg
	cred.flow = &browserFlow{cfg: &cred.cfg}
	return cred, nil
}

type browserFlow struct {
	cfg *Config
}

func (f *browserFlow) authenticate(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.timeout())
	defer cancel()

	lis, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", f.cfg.CallbackPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	flowConf := *conf
	flowConf.RedirectURL = fmt.Sprintf("http://%s/callback", lis.Addr().String())

	state, err := randomState()
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	tokenCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)

	router := michi.NewRouter()
	router.HandleFunc("/callback", f.handleCallback(ctx, &flowConf, state, verifier, tokenCh, errCh))
	router.HandleFunc("/", f.handleRoot)

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("callback server failed: %w", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			f.cfg.logger().Warn("failed to shut down callback server", "error", err)
		}
	}()

	authURL := flowConf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)

	out := f.cfg.output()
	if f.cfg.SkipBrowser {
		fmt.Fprintf(out, "Open this URL in your browser to sign in:\n%s\n", authURL)
	} else {
		fmt.Fprintln(out, "A browser window will open for you to sign in. CTRL+C to cancel.")
		if err := browser.OpenURL(authURL); err != nil {
			f.cfg.logger().Warn("failed to open browser", "error", err)
			fmt.Fprintf(out, "Open this URL in your browser to sign in:\n%s\n", authURL)
		}
	}

	select {
	case tok := <-tokenCh:
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("interactive sign-in did not complete within %s: %w", f.cfg.timeout(), ctx.Err())
	}
}

func (f *browserFlow) handleCallback(ctx context.Context, conf *oauth2.Config, state, verifier string,
	tokenCh chan<- *oauth2.Token, errCh chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		if errCode := query.Get("error"); errCode != "" {
			err := &osduauth.AuthError{
				Code:          errCode,
				Description:   query.Get("error_description"),
				CorrelationID: query.Get("correlation_id"),
			}
			writePage(w, http.StatusBadRequest, "Sign-in failed", err.Error())
			errCh <- err
			return
		}
		if query.Get("state") != state {
			err := errors.New("state parameter mismatch in callback")
			writePage(w, http.StatusBadRequest, "Sign-in failed", err.Error())
			errCh <- err
			return
		}
		code := query.Get("code")
		if code == "" {
			err := errors.New("callback carried no authorization code")
			writePage(w, http.StatusBadRequest, "Sign-in failed", err.Error())
			errCh <- err
			return
		}

		tok, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
		if err != nil {
			err = authErrorFrom(err)
			writePage(w, http.StatusBadRequest, "Sign-in failed", err.Error())
			errCh <- err
			return
		}

		writePage(w, http.StatusOK, "Sign-in complete", "You can close this window and return to the terminal.")
		tokenCh <- tok
	}
}

func (f *browserFlow) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writePage(w, http.StatusOK, "Waiting for sign-in", "Complete the sign-in flow in your browser window.")
}

func writePage(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>",
		html.EscapeString(title), html.EscapeString(title), html.EscapeString(detail))
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
