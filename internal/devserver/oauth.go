package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// userinfoURL is where the provider's profile is fetched after the code
// exchange.
const userinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Identity is the external provider's view of the authenticated user.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// GoogleOAuth performs the server side of the Google sign-in flow:
// producing the authorization URL and exchanging the callback code for
// the user's identity.
type GoogleOAuth struct {
	cfg *oauth2.Config
}

// NewGoogleOAuth configures the provider. Returns nil when the client
// credentials are absent, which disables the OAuth endpoints.
func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *GoogleOAuth {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &GoogleOAuth{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}}
}

// AuthURL returns the provider consent page URL the client should
// navigate to.
func (g *GoogleOAuth) AuthURL() string {
	return g.cfg.AuthCodeURL("state", oauth2.AccessTypeOffline)
}

// Exchange trades the authorization code for provider tokens and
// fetches the user's identity with them.
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (Identity, error) {
	token, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("code exchange: %w", err)
	}

	client := g.cfg.Client(ctx, token)
	resp, err := client.Get(userinfoURL)
	if err != nil {
		return Identity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return Identity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if identity.Email == "" {
		return Identity{}, fmt.Errorf("userinfo without email")
	}
	return identity, nil
}
