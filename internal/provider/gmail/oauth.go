package gmail

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
)

// Credentials are never embedded. They come from the [gmail] section of
// config.toml or from GMAIL_CLIENT_ID / GMAIL_CLIENT_SECRET.
var oauthConfig = &oauth2.Config{
	Scopes: []string{
		gmailapi.GmailModifyScope,
		gmailapi.GmailSendScope,
	},
	Endpoint: google.Endpoint,
}

// SetCredentials sets the OAuth client ID and secret.
func SetCredentials(clientID, clientSecret string) {
	oauthConfig.ClientID = clientID
	oauthConfig.ClientSecret = clientSecret
}

// EnsureCredentials returns an error with setup instructions when no
// OAuth client has been configured.
func EnsureCredentials() error {
	if oauthConfig.ClientID != "" && oauthConfig.ClientSecret != "" {
		return nil
	}
	return fmt.Errorf("gmail OAuth credentials not configured; set client_id and client_secret under [gmail] in config.toml or export GMAIL_CLIENT_ID / GMAIL_CLIENT_SECRET")
}

// Authenticate runs the loopback OAuth flow and returns the granted token.
// The authorization URL is written to out.
func Authenticate(ctx context.Context, out io.Writer) (*oauth2.Token, error) {
	if err := EnsureCredentials(); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}
	cfg := *oauthConfig
	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d", listener.Addr().(*net.TCPAddr).Port)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			select {
			case errCh <- fmt.Errorf("no code in callback: %s", r.URL.Query().Get("error")):
			default:
			}
			fmt.Fprint(w, "Sign-in failed. You can close this tab.")
			return
		}
		select {
		case codeCh <- code:
		default:
		}
		fmt.Fprint(w, "Signed in to nimbus. You can close this tab.")
	})

	server := &http.Server{Handler: mux}
	go server.Serve(listener)
	defer server.Shutdown(context.Background())

	url := cfg.AuthCodeURL("nimbus", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "\nOpen this URL in your browser to authorize nimbus:\n\n  %s\n\nWaiting for authorization...\n", url)

	select {
	case code := <-codeCh:
		token, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange auth code: %w", err)
		}
		return token, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
