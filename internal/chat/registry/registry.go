// Package registry keeps known chat clients and their icons.
// Icons are stored as files, one per client name, under the icons directory.
// Only the name and the icon file extension are kept in memory.
package registry

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/wtask/p2pchat/internal/chat/message"
)

// OK - result of successful registration.
const OK = "OK"

const tempPrefix = ".icon-"

// DefaultExtension - extension of icons registered without one.
// Every stored file has an extension, so <name><ext> splits back at the last dot.
const DefaultExtension = ".icon"

// Client - registry record.
type Client struct {
	Name          string
	IconExtension string
}

func (c Client) fileName() string {
	return c.Name + c.IconExtension
}

func (c Client) String() string {
	return fmt.Sprintf("Name:{%s}, IconExtension:{%s}", c.Name, c.IconExtension)
}

// Registry - maps client name to the last registered icon.
// Registrations for different names run concurrently, registrations for the same name are serialized.
type Registry struct {
	dir string

	mu      sync.RWMutex
	clients map[string]Client
	writers map[string]*sync.Mutex
}

// New - builds registry over icons directory, the directory is created if missing.
func New(iconsDir string) (*Registry, error) {
	if iconsDir == "" {
		return nil, fmt.Errorf("registry.New: icons directory is not specified: %w", ErrIO)
	}
	if err := os.MkdirAll(iconsDir, 0o755); err != nil {
		return nil, fmt.Errorf("registry.New: %w: %w", ErrIO, err)
	}
	return &Registry{
		dir:     iconsDir,
		clients: make(map[string]Client),
		writers: make(map[string]*sync.Mutex),
	}, nil
}

// Dir - returns icons directory.
func (r *Registry) Dir() string {
	return r.dir
}

// Register - stores icon of Register message and records the client.
// Icon file extension is taken from message body, which holds the icon path or extension of the sender.
// Returns OK on success.
func (r *Registry) Register(m message.Message) (string, error) {
	if m.Command != message.Register {
		return "", fmt.Errorf("registry.Register: command %s: %w", m.Command, ErrNotRegister)
	}
	if !m.HasIcon() {
		return "", fmt.Errorf("registry.Register: client %q: %w", m.Sender, ErrNoIcon)
	}
	if err := validateName(m.Sender); err != nil {
		return "", err
	}

	client := Client{Name: m.Sender, IconExtension: iconExtension(m.Body)}
	w := r.writer(client.Name)
	w.Lock()
	defer w.Unlock()

	if err := writeFile(r.dir, client.fileName(), m.Icon); err != nil {
		return "", err
	}

	r.mu.Lock()
	prev, ok := r.clients[client.Name]
	r.clients[client.Name] = client
	r.mu.Unlock()
	if ok && prev.IconExtension != client.IconExtension {
		// the icon was stored with another extension before
		os.Remove(filepath.Join(r.dir, prev.fileName()))
	}
	return OK, nil
}

// Client - returns registry record by name.
func (r *Registry) Client(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	return c, ok
}

// Clients - returns all records ordered by name.
func (r *Registry) Clients() []Client {
	r.mu.RLock()
	list := lo.Values(r.clients)
	r.mu.RUnlock()
	slices.SortFunc(list, func(a, b Client) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return list
}

// IconPath - returns icon file path of known client.
func (r *Registry) IconPath(name string) (string, bool) {
	c, ok := r.Client(name)
	if !ok {
		return "", false
	}
	return filepath.Join(r.dir, c.fileName()), true
}

// Icon - reads icon of known client from disk.
// Returns false for unknown names and unreadable files.
func (r *Registry) Icon(name string) ([]byte, bool) {
	path, ok := r.IconPath(name)
	if !ok {
		return nil, false
	}
	w := r.writer(name)
	w.Lock()
	defer w.Unlock()
	icon, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return icon, true
}

// Restore - loads records for icon files left in the directory by previous runs.
// Returns number of restored records. Records registered in this run are kept.
func (r *Registry) Restore() (int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return 0, fmt.Errorf("registry.Restore: %w: %w", ErrIO, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		ext := filepath.Ext(e.Name())
		name := strings.TrimSuffix(e.Name(), ext)
		if ext == "" || validateName(name) != nil {
			continue
		}
		if _, ok := r.clients[name]; ok {
			continue
		}
		r.clients[name] = Client{Name: name, IconExtension: ext}
		n++
	}
	return n, nil
}

func (r *Registry) writer(name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.writers[name]
	if !ok {
		w = &sync.Mutex{}
		r.writers[name] = w
	}
	return w
}

// SelfRegistration - builds Register message for local user from its icon file.
func SelfRegistration(name, iconPath string) (message.Message, error) {
	icon, err := os.ReadFile(iconPath)
	if err != nil {
		return message.Message{}, fmt.Errorf("registry.SelfRegistration: %w: %w", ErrIO, err)
	}
	if len(icon) == 0 {
		return message.Message{}, fmt.Errorf("registry.SelfRegistration: icon file %q is empty: %w", iconPath, ErrIO)
	}
	return message.New(message.Register, name, iconExtension(iconPath), icon), nil
}

func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("registry: name %q: %w", name, ErrInvalidName)
	case strings.ContainsAny(name, `/\:`+"\x00"):
		return fmt.Errorf("registry: name %q: %w", name, ErrInvalidName)
	case strings.HasPrefix(name, tempPrefix):
		return fmt.Errorf("registry: name %q: %w", name, ErrInvalidName)
	}
	return nil
}

func iconExtension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" || strings.ContainsAny(ext, `/\:`+"\x00") {
		return DefaultExtension
	}
	return ext
}

// writeFile - replaces file atomically: readers see either old or new content.
func writeFile(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("registry: create icon %q: %w: %w", name, ErrIO, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("registry: write icon %q: %w: %w", name, ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("registry: write icon %q: %w: %w", name, ErrIO, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("registry: store icon %q: %w: %w", name, ErrIO, err)
	}
	return nil
}
