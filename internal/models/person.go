package models

// PersonRole selects which of the two structurally identical person tables
// an operation targets. A commit's authoring identity and committing identity
// may differ, so the two sets are stored separately.
type PersonRole string

const (
	RoleAuthor    PersonRole = "authors"
	RoleCommitter PersonRole = "committers"
)

type Person struct {
	ID        int     `json:"id"`
	Login     *string `json:"login,omitempty"`
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// IdentityKey is the value used to deduplicate a person across commits and
// across runs: login when present, else email. Empty means unresolvable.
func (p *Person) IdentityKey() string {
	if p.Login != nil && *p.Login != "" {
		return *p.Login
	}
	if p.Email != nil && *p.Email != "" {
		return *p.Email
	}
	return ""
}
