// Package identity provides user lists for profile sync when no host
// platform is attached.
package identity

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dietplan/dietplan/internal/core"
)

// Static is a fixed list of users.
type Static []core.User

// ListUsers returns a copy of the list.
func (s Static) ListUsers(ctx context.Context) ([]core.User, error) {
	out := make([]core.User, len(s))
	copy(out, s)
	return out, nil
}

// usersFile is the on-disk layout of a users file.
type usersFile struct {
	Users []fileUser `yaml:"users"`
}

// fileUser defaults active to true so a bare id/name entry is a normal user.
type fileUser struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Active      *bool  `yaml:"is_active"`
	System      bool   `yaml:"is_system_generated"`
}

// File reads users from a YAML file on every call, so edits are picked up on the next sync.
type File struct {
	Path string
}

// ListUsers parses the file.
func (f File) ListUsers(ctx context.Context) ([]core.User, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading users file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a users document.
func Parse(data []byte) ([]core.User, error) {
	var doc usersFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing users file: %w", err)
	}
	out := make([]core.User, 0, len(doc.Users))
	for i, u := range doc.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("users[%d]: id is required", i)
		}
		active := true
		if u.Active != nil {
			active = *u.Active
		}
		out = append(out, core.User{
			ID:                u.ID,
			DisplayName:       u.DisplayName,
			IsActive:          active,
			IsSystemGenerated: u.System,
		})
	}
	return out, nil
}
