package identity

import (
	"context"
	"fmt"
	"os"

	"github.com/iflastandards/standards-authz/pkg/contextkeys"
	"gopkg.in/yaml.v3"
)

// StaticUser is a fixed identity reachable with a fixed bearer token
type StaticUser struct {
	Token    string `yaml:"token"`
	Identity `yaml:",inline"`
}

type staticFile struct {
	Users []StaticUser `yaml:"users"`
}

// StaticSource serves identities from a fixed token table. It stands in for
// the identity provider in development and tests.
type StaticSource struct {
	users map[string]*Identity
}

// NewStaticSource builds a source from users
func NewStaticSource(users []StaticUser) (*StaticSource, error) {
	s := &StaticSource{users: make(map[string]*Identity, len(users))}
	for i, u := range users {
		if u.Token == "" || u.ID == "" {
			return nil, fmt.Errorf("%w: user %d needs a token and an id", ErrInvalidUsers, i)
		}
		if _, dup := s.users[u.Token]; dup {
			return nil, fmt.Errorf("%w: duplicate token for user %s", ErrInvalidUsers, u.ID)
		}
		ident := u.Identity
		s.users[u.Token] = &ident
	}
	return s, nil
}

// ParseStaticSource reads a YAML document of the form
//
//	users:
//	  - token: dev-editor
//	    id: user_editor
//	    email: editor@example.org
//	    metadata:
//	      teams: [...]
func ParseStaticSource(data []byte) (*StaticSource, error) {
	var f staticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse static users: %w", err)
	}
	return NewStaticSource(f.Users)
}

// LoadStaticSource reads static users from path
func LoadStaticSource(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read static users: %w", err)
	}
	return ParseStaticSource(data)
}

// Current implements Source
func (s *StaticSource) Current(ctx context.Context) (*Identity, error) {
	token, ok := contextkeys.GetBearerToken(ctx)
	if !ok {
		return nil, nil
	}
	ident, ok := s.users[token]
	if !ok {
		return nil, nil
	}
	return ident, nil
}

// Len returns the number of known users
func (s *StaticSource) Len() int {
	return len(s.users)
}
