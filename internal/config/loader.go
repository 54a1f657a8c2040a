package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/rileyhilliard/scatter/internal/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultInventoryFile is read when --inventory is not given.
const DefaultInventoryFile = "inventory.yaml"

// LoadInventory reads and validates the inventory at path.
//
// env:NAME references in identity and password fields are dereferenced,
// known_hosts spellings are normalized, and an inventory without hosts is
// rejected. Paths are NOT expanded here; the target resolver owns that so
// inventory and flag values go through the same rules.
func LoadInventory(fs afero.Fs, path string) (*Inventory, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Inventory file not found: "+path,
				"Pass the right file with --inventory, or create inventory.yaml here.")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't read inventory file "+path,
			"Check the file permissions.")
	}

	return ParseInventory(bytes.NewReader(data), path)
}

// ParseInventory decodes an inventory document. name is only used in messages.
func ParseInventory(r io.Reader, name string) (*Inventory, error) {
	inv := &Inventory{Defaults: DefaultHostDefaults()}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(inv); err != nil && err != io.EOF {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid inventory format in "+name,
			"Check the YAML syntax. Top-level keys are 'defaults' and 'hosts'.")
	}

	resolveRefs(inv)

	if err := ValidateInventory(inv); err != nil {
		return nil, err
	}

	return inv, nil
}

// resolveRefs replaces env:NAME values with their environment contents.
func resolveRefs(inv *Inventory) {
	inv.Defaults.Identity = ResolveRef(inv.Defaults.Identity)
	inv.Defaults.Password = ResolveRef(inv.Defaults.Password)

	for i := range inv.Hosts {
		h := &inv.Hosts[i]
		h.Identity = ResolveRef(h.Identity)
		h.Password = ResolveRef(h.Password)
	}
}

// ValidateInventory checks the structural rules the resolver relies on.
func ValidateInventory(inv *Inventory) error {
	if inv == nil || len(inv.Hosts) == 0 {
		return errors.New(errors.ErrConfig,
			"Inventory contains no hosts",
			"Add at least one entry under 'hosts:' with a 'host:' field.")
	}

	if err := validatePort(inv.Defaults.Port, "defaults"); err != nil {
		return err
	}
	if inv.Defaults.ConnectTimeout < 0 {
		return errors.New(errors.ErrConfig,
			"defaults.connect_timeout can't be negative",
			"Use a positive number of seconds, like 10.")
	}

	for i, h := range inv.Hosts {
		if h.Host == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host entry #%d has no 'host' field", i+1),
				"Every entry under 'hosts:' needs an address or SSH config alias in 'host:'.")
		}
		if err := validatePort(h.Port, h.Host); err != nil {
			return err
		}
	}

	return nil
}

func validatePort(port int, where string) error {
	if port < 0 || port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Port %d for %s is out of range", port, where),
			"Ports go from 1 to 65535.")
	}
	return nil
}
