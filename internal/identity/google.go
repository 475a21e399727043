package identity

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// ProviderGoogle is the name of the Google provider.
const ProviderGoogle = "google"

// Provider runs the authorization code flow against one identity provider.
type Provider interface {
	// AuthCodeURL is where the user is sent to authenticate.
	AuthCodeURL(state string) string
	// Identify exchanges the callback code and returns who signed in.
	Identify(ctx context.Context, code string) (*Principal, error)
}

// GoogleProvider signs users in with their Google account.
type GoogleProvider struct {
	config *oauth2.Config
}

// NewGoogleProvider configures the Google code flow.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{googleoauth.OpenIDScope, googleoauth.UserinfoEmailScope},
			Endpoint:     google.Endpoint,
		},
	}
}

func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (g *GoogleProvider) Identify(ctx context.Context, code string) (*Principal, error) {
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	svc, err := googleoauth.NewService(ctx, option.WithHTTPClient(g.config.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	if info.Id == "" {
		return nil, fmt.Errorf("userinfo has no subject")
	}

	return &Principal{Subject: info.Id, Email: info.Email}, nil
}
