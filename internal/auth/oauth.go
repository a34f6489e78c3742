package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/sakif/watchme/internal/apperror"
)

// DefaultGitHubAPI is the public GitHub REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

// GitHubUser is the part of the GitHub /user response kept as the account
// snapshot on first sign-in.
type GitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Bio       string `json:"bio"`
	HTMLURL   string `json:"html_url"`
	AvatarURL string `json:"avatar_url"`
}

// GitHubRepo is one repository as returned by the proxy.
type GitHubRepo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	Description string    `json:"description"`
	Private     bool      `json:"private"`
	HTMLURL     string    `json:"html_url"`
	Language    string    `json:"language"`
	Stars       int       `json:"stargazers_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GitHubCommit is one commit of a repository.
type GitHubCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// NewRepo is the body of a create-repository call.
type NewRepo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
}

// GitHubConfig holds the OAuth app credentials.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	// APIURL overrides DefaultGitHubAPI, e.g. for GitHub Enterprise.
	APIURL string
}

// GitHubProvider runs the Authorization Code flow and then calls the
// GitHub API on behalf of the account with its stored access token.
//
// The code-for-token exchange is server to server with the client secret,
// so the GitHub token never reaches the browser.
type GitHubProvider struct {
	config *oauth2.Config
	apiURL string
}

// NewGitHubProvider creates a GitHubProvider.
//
// Scopes: read:user and user:email for the profile snapshot, repo for the
// repository proxy.
func NewGitHubProvider(cfg GitHubConfig) *GitHubProvider {
	api := strings.TrimRight(cfg.APIURL, "/")
	if api == "" {
		api = DefaultGitHubAPI
	}
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"read:user", "user:email", "repo"},
			Endpoint:     github.Endpoint,
		},
		apiURL: api,
	}
}

// AuthURL returns the GitHub authorization page URL. state is echoed back on
// the callback and checked against the state cookie.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for an access token and fetches
// the profile with it.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, string, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	var ghUser GitHubUser
	if err := p.call(ctx, oauthToken.AccessToken, http.MethodGet, "/user", nil, &ghUser); err != nil {
		return nil, "", err
	}
	if ghUser.ID == 0 {
		return nil, "", fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &ghUser, oauthToken.AccessToken, nil
}

// Repos lists the repositories of the token's owner, most recently
// updated first.
func (p *GitHubProvider) Repos(ctx context.Context, token string) ([]GitHubRepo, error) {
	repos := []GitHubRepo{}
	err := p.call(ctx, token, http.MethodGet, "/user/repos?sort=updated&per_page=100", nil, &repos)
	return repos, err
}

// Commits lists the latest commits of owner/repo.
func (p *GitHubProvider) Commits(ctx context.Context, token, owner, repo string) ([]GitHubCommit, error) {
	commits := []GitHubCommit{}
	path := fmt.Sprintf("/repos/%s/%s/commits", url.PathEscape(owner), url.PathEscape(repo))
	err := p.call(ctx, token, http.MethodGet, path, nil, &commits)
	return commits, err
}

// CreateRepo creates a repository owned by the token's owner.
func (p *GitHubProvider) CreateRepo(ctx context.Context, token string, req NewRepo) (*GitHubRepo, error) {
	var repo GitHubRepo
	if err := p.call(ctx, token, http.MethodPost, "/user/repos", req, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// call performs one authenticated API request. oauth2.Config.Client adds
// the Authorization header to every request it sends.
func (p *GitHubProvider) call(ctx context.Context, token, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("auth: encoding GitHub request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.apiURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("auth: building GitHub request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := p.config.Client(ctx, &oauth2.Token{AccessToken: token})
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling GitHub %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apperror.Unauthorized("GitHub rejected the stored access token")
	case resp.StatusCode == http.StatusNotFound:
		return apperror.NotFound("GitHub resource", path)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return apperror.Conflict("GitHub rejected the request: " + readMessage(resp.Body))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("auth: GitHub %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("auth: decoding GitHub %s response: %w", path, err)
	}
	return nil
}

func readMessage(r io.Reader) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&e); err != nil || e.Message == "" {
		return "unprocessable entity"
	}
	return e.Message
}
