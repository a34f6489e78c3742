// Package service holds the account, video, comment and playlist business logic.
//
// AccountService sits between the HTTP handlers and the account store:
//
//	AuthHandler / UserHandler (HTTP) → AccountService (business rules) → AccountRepository (DB)
//	                                 ↘ TokenService (JWT), PasswordService (bcrypt)
//	                                 ↘ GitHubClient (repo proxy)
//
// TWO WAYS IN, ONE ACCOUNT:
// A local account proves itself with a bcrypt password; an external account
// was created by a GitHub sign-in and carries the GitHub access token. Both
// are the same model.Account, told apart by Auth.Kind, and both get the
// same JWT once signed in.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/auth"
	"github.com/sakif/watchme/internal/model"
	"github.com/sakif/watchme/internal/repository"
)

// GitHubClient is the part of auth.GitHubProvider used for the repo proxy.
type GitHubClient interface {
	Repos(ctx context.Context, token string) ([]auth.GitHubRepo, error)
	Commits(ctx context.Context, token, owner, repo string) ([]auth.GitHubCommit, error)
	CreateRepo(ctx context.Context, token string, req auth.NewRepo) (*auth.GitHubRepo, error)
}

// AccountService handles registration, sign-in and account lookups.
//
// DEPENDENCIES (injected via NewAccountService):
//   - accounts   repository.AccountRepository → read/write account records
//   - tokens     *auth.TokenService           → issue JWTs
//   - passwords  *auth.PasswordService        → bcrypt hashing
//   - github     GitHubClient                 → nil when GitHub is not configured
type AccountService struct {
	accounts  repository.AccountRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	github    GitHubClient
	logger    *slog.Logger
	now       func() time.Time
}

func NewAccountService(
	accounts repository.AccountRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	github GitHubClient,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts:  accounts,
		tokens:    tokens,
		passwords: passwords,
		github:    github,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthResult bundles the account and the issued JWT so the handler can set
// the cookie and respond in one step.
type AuthResult struct {
	Account *model.Account `json:"account"`
	Token   string         `json:"token"`
}

// Registration is a sign-up request for a local account.
type Registration struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// CredentialsCheck tells a sign-up form which fields are already taken.
type CredentialsCheck struct {
	UsernameExists bool `json:"usernameExists"`
	EmailExists    bool `json:"emailExists"`
}

// Register creates a local account with standard permission.
//
// A taken username or email is a Conflict with the message "User already
// exists", whichever of the two collided.
func (s *AccountService) Register(ctx context.Context, reg Registration) (*model.Account, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))

	if reg.Username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if reg.Email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}

	usernameTaken, emailTaken, err := s.accounts.CredentialsTaken(ctx, reg.Username, reg.Email)
	if err != nil {
		return nil, fmt.Errorf("service/account: checking credentials: %w", err)
	}
	if usernameTaken || emailTaken {
		return nil, apperror.Conflict("User already exists")
	}

	hash, err := s.passwords.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("service/account: %w", err)
	}

	account := &model.Account{
		Username:   reg.Username,
		Email:      reg.Email,
		FirstName:  strings.TrimSpace(reg.FirstName),
		LastName:   strings.TrimSpace(reg.LastName),
		Permission: model.PermissionUser,
		Auth:       model.LocalAuth(hash),
	}
	// The check above races with concurrent sign-ups; the unique indexes
	// still turn the loser into a Conflict here.
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("service/account: registering %q: %w", reg.Username, err)
	}

	s.logger.Info("account registered",
		slog.String("accountID", account.ID),
		slog.String("username", account.Username),
	)
	return account, nil
}

// errBadCredentials covers an unknown username, a GitHub-only account and
// a wrong password alike.
var errBadCredentials = apperror.Unauthorized("invalid username or password")

// Login verifies a local password and issues a token.
func (s *AccountService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	account, err := s.accounts.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/account: loading %q: %w", username, err)
	}
	if account.Auth.IsExternal() {
		return nil, errBadCredentials
	}

	if err := s.passwords.Verify(account.Auth.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/account: verifying password of %s: %w", account.ID, err)
	}

	return s.signIn(ctx, account, "")
}

// CheckCredentials reports which of username and email are in use.
func (s *AccountService) CheckCredentials(ctx context.Context, username, email string) (*CredentialsCheck, error) {
	usernameTaken, emailTaken, err := s.accounts.CredentialsTaken(ctx,
		strings.TrimSpace(username), strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("service/account: checking credentials: %w", err)
	}
	return &CredentialsCheck{UsernameExists: usernameTaken, EmailExists: emailTaken}, nil
}

// LoginGitHub completes a GitHub sign-in.
//
// FIRST CONTACT vs RETURNING:
// On first contact the GitHub profile is copied into a new external account
// (login becomes the username). Returning accounts only get their access
// token and last login time refreshed; the profile snapshot is never
// re-synced from GitHub.
//
// If the GitHub login is already the username of a different account the
// sign-in fails with a Conflict rather than taking that account over.
func (s *AccountService) LoginGitHub(ctx context.Context, gh *auth.GitHubUser, accessToken string) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/account: GitHub user must not be nil")
	}

	account, err := s.accounts.GetAccountByProvider(ctx, model.ProviderGitHub, gh.ID)
	switch {
	case err == nil:
		return s.signIn(ctx, account, accessToken)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/account: loading GitHub account %d: %w", gh.ID, err)
	}

	account = &model.Account{
		Username:   gh.Login,
		Email:      gh.Email,
		Name:       gh.Name,
		About:      gh.Bio,
		AvatarURL:  gh.AvatarURL,
		ProfileURL: gh.HTMLURL,
		Permission: model.PermissionUser,
		Auth:       model.ExternalAuth(model.ProviderGitHub, gh.ID, accessToken),
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("username " + gh.Login + " is already taken")
		}
		return nil, fmt.Errorf("service/account: creating GitHub account %q: %w", gh.Login, err)
	}

	s.logger.Info("account created from GitHub",
		slog.String("accountID", account.ID),
		slog.String("login", gh.Login),
	)
	return s.signIn(ctx, account, "")
}

// signIn stamps the login and issues the JWT.
func (s *AccountService) signIn(ctx context.Context, account *model.Account, providerToken string) (*AuthResult, error) {
	at := s.now().UTC()
	if err := s.accounts.RecordLogin(ctx, account.ID, at, providerToken); err != nil {
		return nil, fmt.Errorf("service/account: recording login of %s: %w", account.ID, err)
	}
	account.LastLoginAt = &at
	if providerToken != "" {
		account.Auth.Token = providerToken
	}

	token, err := s.tokens.Generate(account.Identity())
	if err != nil {
		return nil, fmt.Errorf("service/account: generating token for %s: %w", account.ID, err)
	}

	s.logger.Info("account signed in",
		slog.String("accountID", account.ID),
		slog.String("kind", string(account.Auth.Kind)),
	)
	return &AuthResult{Account: account, Token: token}, nil
}

// Me returns the caller's own account.
func (s *AccountService) Me(ctx context.Context, caller model.Identity) (*model.Account, error) {
	if caller.Anonymous() {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	account, err := s.accounts.GetAccount(ctx, caller.AccountID)
	if err != nil {
		return nil, fmt.Errorf("service/account: loading %s: %w", caller.AccountID, err)
	}
	return account, nil
}

// List returns every account. Administrators only.
func (s *AccountService) List(ctx context.Context, caller model.Identity) ([]model.Account, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("only administrators can list accounts")
	}
	accounts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/account: listing accounts: %w", err)
	}
	return accounts, nil
}

// =========================================================================
// GITHUB PROXY
// =========================================================================
//
// The proxy calls GitHub with the token stored on the caller's external
// account. Local accounts have no token and are refused.

func (s *AccountService) githubAccount(ctx context.Context, caller model.Identity) (*model.Account, error) {
	if s.github == nil {
		return nil, apperror.Forbidden("GitHub integration is not configured")
	}
	account, err := s.Me(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !account.Auth.IsExternal() || account.Auth.Provider != model.ProviderGitHub {
		return nil, apperror.Forbidden("only GitHub accounts can use the GitHub integration")
	}
	return account, nil
}

func (s *AccountService) GitHubRepos(ctx context.Context, caller model.Identity) ([]auth.GitHubRepo, error) {
	account, err := s.githubAccount(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.github.Repos(ctx, account.Auth.Token)
}

// GitHubCommits lists commits of one of the caller's repositories.
func (s *AccountService) GitHubCommits(ctx context.Context, caller model.Identity, repo string) ([]auth.GitHubCommit, error) {
	if strings.TrimSpace(repo) == "" {
		return nil, apperror.ValidationFailed("repo", "repository name is required")
	}
	account, err := s.githubAccount(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.github.Commits(ctx, account.Auth.Token, account.Username, repo)
}

func (s *AccountService) GitHubCreateRepo(ctx context.Context, caller model.Identity, req auth.NewRepo) (*auth.GitHubRepo, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, apperror.ValidationFailed("name", "repository name is required")
	}
	account, err := s.githubAccount(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.github.CreateRepo(ctx, account.Auth.Token, req)
}
