package model

import "time"

// Permission is the account role. Lower is more privileged.
type Permission int

const (
	PermissionAdmin Permission = 0
	PermissionUser  Permission = 1
)

// AuthKind tells which branch of AuthMethod is populated.
type AuthKind string

const (
	AuthLocal    AuthKind = "local"
	AuthExternal AuthKind = "external"
)

// ProviderGitHub is the only external identity provider wired today.
const ProviderGitHub = "github"

// AuthMethod is how an account proves who it is: either a local bcrypt
// password hash, or a token issued by an external provider. Secrets never
// leave the server in JSON.
type AuthMethod struct {
	Kind         AuthKind `json:"kind"                 bson:"kind"`
	PasswordHash string   `json:"-"                    bson:"passwordHash,omitempty"`
	Provider     string   `json:"provider,omitempty"   bson:"provider,omitempty"`
	ProviderID   int64    `json:"providerId,omitempty" bson:"providerId,omitempty"`
	Token        string   `json:"-"                    bson:"token,omitempty"`
}

func LocalAuth(passwordHash string) AuthMethod {
	return AuthMethod{Kind: AuthLocal, PasswordHash: passwordHash}
}

func ExternalAuth(provider string, providerID int64, token string) AuthMethod {
	return AuthMethod{Kind: AuthExternal, Provider: provider, ProviderID: providerID, Token: token}
}

func (a AuthMethod) IsExternal() bool { return a.Kind == AuthExternal }

// Account is a registered user, local or external. Videos, comments and
// playlists reference it through their OwnerID.
type Account struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	Name        string     `json:"name,omitempty"`
	About       string     `json:"about,omitempty"`
	AvatarURL   string     `json:"avatar,omitempty"`
	ProfileURL  string     `json:"url,omitempty"`
	Permission  Permission `json:"permission"`
	Auth        AuthMethod `json:"auth"`
	LastLoginAt *time.Time `json:"lastLoginDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (a *Account) IsAdmin() bool { return a.Permission == PermissionAdmin }

// Identity returns the caller view of the account, as carried in tokens.
func (a *Account) Identity() Identity {
	return Identity{
		AccountID:  a.ID,
		Username:   a.Username,
		Permission: a.Permission,
		Kind:       a.Auth.Kind,
	}
}

// Identity is a verified caller. It is built from a validated access token
// and trusted as-is by the services.
type Identity struct {
	AccountID  string
	Username   string
	Permission Permission
	Kind       AuthKind
}

// IsAdmin is false for the zero Identity, which stands for an anonymous
// caller.
func (i Identity) IsAdmin() bool {
	return i.AccountID != "" && i.Permission == PermissionAdmin
}

// Anonymous reports whether the identity carries no account.
func (i Identity) Anonymous() bool { return i.AccountID == "" }
