// Package profile persists connection profiles and saved bookmarks as
// TOML documents under the user's config directory.
package profile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/BurntSushi/toml"
)

// TLSMode selects the transport security posture for a connection.
type TLSMode string

const (
	TLSDisabled       TLSMode = "disabled"
	TLSPrefer         TLSMode = "prefer"
	TLSRequire        TLSMode = "require"
	TLSVerifyIdentity TLSMode = "verify_identity"
)

// PasswordSource selects where a profile's password is read from.
type PasswordSource string

const (
	PasswordEnvVar  PasswordSource = "env_var"
	PasswordKeyring PasswordSource = "keyring"
)

// ConnectionProfile is one saved MySQL-compatible connection target.
type ConnectionProfile struct {
	Name                     string         `toml:"name"`
	Host                     string         `toml:"host"`
	Port                     uint16         `toml:"port"`
	User                     string         `toml:"user"`
	Database                 string         `toml:"database,omitempty"`
	TLSMode                  TLSMode        `toml:"tls_mode"`
	PasswordSource           PasswordSource `toml:"password_source"`
	KeyringService           string         `toml:"keyring_service,omitempty"`
	KeyringAccount           string         `toml:"keyring_account,omitempty"`
	TLSCACertPath            string         `toml:"tls_ca_cert_path,omitempty"`
	TLSClientCertPath        string         `toml:"tls_client_cert_path,omitempty"`
	TLSClientKeyPath         string         `toml:"tls_client_key_path,omitempty"`
	TLSDisableBuiltInRoots   bool           `toml:"tls_disable_built_in_roots"`
	TLSSkipDomainValidation  bool           `toml:"tls_skip_domain_validation"`
	TLSAcceptInvalidCerts    bool           `toml:"tls_accept_invalid_certs"`
	TLSHostnameOverride      string         `toml:"tls_hostname_override,omitempty"`
	ReadOnly                 bool           `toml:"read_only"`
}

// NewConnectionProfile builds a profile with the documented defaults:
// port 3306, TLS Prefer, password from the environment.
func NewConnectionProfile(name, host, user string) ConnectionProfile {
	return ConnectionProfile{
		Name:           name,
		Host:           host,
		Port:           3306,
		User:           user,
		TLSMode:        TLSPrefer,
		PasswordSource: PasswordEnvVar,
	}
}

// SavedBookmark is a saved pointer into a specific database/table/column,
// optionally with a query to re-run.
type SavedBookmark struct {
	Name        string `toml:"name"`
	ProfileName string `toml:"profile_name,omitempty"`
	Database    string `toml:"database,omitempty"`
	Table       string `toml:"table,omitempty"`
	Column      string `toml:"column,omitempty"`
	Query       string `toml:"query,omitempty"`
}

// NewSavedBookmark builds an otherwise-empty bookmark named name.
func NewSavedBookmark(name string) SavedBookmark {
	return SavedBookmark{Name: name}
}

// ErrConfigDirUnavailable is returned when no config directory can be
// resolved for this platform and environment.
var ErrConfigDirUnavailable = fmt.Errorf("profile: config directory is unavailable for this platform")

// configDir resolves the base config directory using the documented
// precedence: MYR_CONFIG_DIR, then (on Windows) APPDATA, then
// XDG_CONFIG_HOME, then $HOME/.config.
func configDir() (string, error) {
	if custom := os.Getenv("MYR_CONFIG_DIR"); custom != "" {
		return custom, nil
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return appData, nil
		}
		return "", ErrConfigDirUnavailable
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg, nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", ErrConfigDirUnavailable
	}
	return filepath.Join(home, ".config"), nil
}

// DefaultProfilesPath returns $configDir/myr/profiles.toml.
func DefaultProfilesPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "myr", "profiles.toml"), nil
}

// DefaultBookmarksPath returns $configDir/myr/bookmarks.toml.
func DefaultBookmarksPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "myr", "bookmarks.toml"), nil
}

// DefaultAuditPath returns $configDir/myr/audit.ndjson.
func DefaultAuditPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "myr", "audit.ndjson"), nil
}

type profilesDocument struct {
	Profiles []ConnectionProfile `toml:"profiles"`
}

// FileProfilesStore is a TOML-backed collection of connection profiles,
// deduplicated and kept sorted by name.
type FileProfilesStore struct {
	path     string
	profiles []ConnectionProfile
}

// LoadProfilesDefault loads the store from DefaultProfilesPath.
func LoadProfilesDefault() (*FileProfilesStore, error) {
	path, err := DefaultProfilesPath()
	if err != nil {
		return nil, err
	}
	return LoadProfilesFromPath(path)
}

// LoadProfilesFromPath loads (or initializes empty, if absent) the store
// at path.
func LoadProfilesFromPath(path string) (*FileProfilesStore, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &FileProfilesStore{path: path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: read profiles file %s: %w", path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return &FileProfilesStore{path: path}, nil
	}

	var doc profilesDocument
	if _, err := toml.Decode(string(raw), &doc); err != nil {
		return nil, fmt.Errorf("profile: parse profiles file %s: %w", path, err)
	}

	return &FileProfilesStore{path: path, profiles: normalizeProfiles(doc.Profiles)}, nil
}

func normalizeProfiles(in []ConnectionProfile) []ConnectionProfile {
	byName := make(map[string]ConnectionProfile, len(in))
	for _, p := range in {
		byName[p.Name] = p
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ConnectionProfile, len(names))
	for i, name := range names {
		out[i] = byName[name]
	}
	return out
}

// Path returns the file path this store loads from and persists to.
func (s *FileProfilesStore) Path() string { return s.path }

// Profiles returns all profiles, sorted by name.
func (s *FileProfilesStore) Profiles() []ConnectionProfile { return s.profiles }

// Profile looks up a profile by exact name.
func (s *FileProfilesStore) Profile(name string) (ConnectionProfile, bool) {
	for _, p := range s.profiles {
		if p.Name == name {
			return p, true
		}
	}
	return ConnectionProfile{}, false
}

// UpsertProfile replaces the profile with the same name, or inserts and
// re-sorts when it's new.
func (s *FileProfilesStore) UpsertProfile(p ConnectionProfile) {
	for i := range s.profiles {
		if s.profiles[i].Name == p.Name {
			s.profiles[i] = p
			return
		}
	}
	s.profiles = append(s.profiles, p)
	sort.Slice(s.profiles, func(i, j int) bool { return s.profiles[i].Name < s.profiles[j].Name })
}

// DeleteProfile removes the profile named name, reporting whether one was
// removed.
func (s *FileProfilesStore) DeleteProfile(name string) bool {
	for i := range s.profiles {
		if s.profiles[i].Name == name {
			s.profiles = append(s.profiles[:i], s.profiles[i+1:]...)
			return true
		}
	}
	return false
}

// Persist writes the store to its path as pretty-printed TOML, creating
// the parent directory if needed.
func (s *FileProfilesStore) Persist() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("profile: create config directory %s: %w", dir, err)
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(profilesDocument{Profiles: s.profiles}); err != nil {
		return fmt.Errorf("profile: serialize profiles: %w", err)
	}

	if err := os.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("profile: write profiles file %s: %w", s.path, err)
	}
	return nil
}

type bookmarksDocument struct {
	Bookmarks []SavedBookmark `toml:"bookmarks"`
}

// FileBookmarksStore is a TOML-backed collection of saved bookmarks,
// deduplicated and kept sorted by name.
type FileBookmarksStore struct {
	path      string
	bookmarks []SavedBookmark
}

// LoadBookmarksDefault loads the store from DefaultBookmarksPath.
func LoadBookmarksDefault() (*FileBookmarksStore, error) {
	path, err := DefaultBookmarksPath()
	if err != nil {
		return nil, err
	}
	return LoadBookmarksFromPath(path)
}

// LoadBookmarksFromPath loads (or initializes empty, if absent) the store
// at path.
func LoadBookmarksFromPath(path string) (*FileBookmarksStore, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &FileBookmarksStore{path: path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: read bookmarks file %s: %w", path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return &FileBookmarksStore{path: path}, nil
	}

	var doc bookmarksDocument
	if _, err := toml.Decode(string(raw), &doc); err != nil {
		return nil, fmt.Errorf("profile: parse bookmarks file %s: %w", path, err)
	}

	return &FileBookmarksStore{path: path, bookmarks: normalizeBookmarks(doc.Bookmarks)}, nil
}

func normalizeBookmarks(in []SavedBookmark) []SavedBookmark {
	byName := make(map[string]SavedBookmark, len(in))
	for _, b := range in {
		byName[b.Name] = b
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]SavedBookmark, len(names))
	for i, name := range names {
		out[i] = byName[name]
	}
	return out
}

// Path returns the file path this store loads from and persists to.
func (s *FileBookmarksStore) Path() string { return s.path }

// Bookmarks returns all bookmarks, sorted by name.
func (s *FileBookmarksStore) Bookmarks() []SavedBookmark { return s.bookmarks }

// Bookmark looks up a bookmark by exact name.
func (s *FileBookmarksStore) Bookmark(name string) (SavedBookmark, bool) {
	for _, b := range s.bookmarks {
		if b.Name == name {
			return b, true
		}
	}
	return SavedBookmark{}, false
}

// UpsertBookmark replaces the bookmark with the same name, or inserts and
// re-sorts when it's new.
func (s *FileBookmarksStore) UpsertBookmark(b SavedBookmark) {
	for i := range s.bookmarks {
		if s.bookmarks[i].Name == b.Name {
			s.bookmarks[i] = b
			return
		}
	}
	s.bookmarks = append(s.bookmarks, b)
	sort.Slice(s.bookmarks, func(i, j int) bool { return s.bookmarks[i].Name < s.bookmarks[j].Name })
}

// DeleteBookmark removes the bookmark named name, reporting whether one
// was removed.
func (s *FileBookmarksStore) DeleteBookmark(name string) bool {
	for i := range s.bookmarks {
		if s.bookmarks[i].Name == name {
			s.bookmarks = append(s.bookmarks[:i], s.bookmarks[i+1:]...)
			return true
		}
	}
	return false
}

// Persist writes the store to its path as pretty-printed TOML, creating
// the parent directory if needed.
func (s *FileBookmarksStore) Persist() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("profile: create config directory %s: %w", dir, err)
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(bookmarksDocument{Bookmarks: s.bookmarks}); err != nil {
		return fmt.Errorf("profile: serialize bookmarks: %w", err)
	}

	if err := os.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("profile: write bookmarks file %s: %w", s.path, err)
	}
	return nil
}
