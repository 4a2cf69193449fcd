package definition

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type fileAddress struct {
	Street     string `toml:"street"`
	Locality   string `toml:"locality"`
	Region     string `toml:"region"`
	Country    string `toml:"country"`
	PostalCode string `toml:"postal_code"`
}

type fileVendor struct {
	Name    string      `toml:"name"`
	Website string      `toml:"website"`
	Address fileAddress `toml:"address"`
}

type fileContact struct {
	Name   string   `toml:"name"`
	Emails []string `toml:"emails"`
	Phones []string `toml:"phones"`
}

type fileModule struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Type        string `toml:"type"`
	Description string `toml:"description"`
}

type fileProcessor struct {
	Manufacturer string `toml:"manufacturer"`
	Family       string `toml:"family"`
	Name         string `toml:"name"`
	Series       string `toml:"series"`
}

type fileOE struct {
	EnvName     string        `toml:"env_name"`
	Description string        `toml:"description"`
	CPE         string        `toml:"cpe"`
	SWID        string        `toml:"swid"`
	Processor   fileProcessor `toml:"processor"`
}

type fileDefinition struct {
	Vendor  fileVendor  `toml:"vendor"`
	Contact fileContact `toml:"contact"`
	Module  fileModule  `toml:"module"`
	OE      fileOE      `toml:"oe"`
}

// Load reads one definition file, applies the persisted identifier sidecar
// and validates the result.
func Load(path string) (*Definition, error) {
	var raw fileDefinition
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("definition load failed (%s): %w", path, err)
	}

	def := &Definition{
		Name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:    path,
		IDsPath: idsPath(path),
		Vendor: Vendor{
			Name:    strings.TrimSpace(raw.Vendor.Name),
			Website: strings.TrimSpace(raw.Vendor.Website),
			Address: Address{
				Street:     strings.TrimSpace(raw.Vendor.Address.Street),
				Locality:   strings.TrimSpace(raw.Vendor.Address.Locality),
				Region:     strings.TrimSpace(raw.Vendor.Address.Region),
				Country:    strings.TrimSpace(raw.Vendor.Address.Country),
				PostalCode: strings.TrimSpace(raw.Vendor.Address.PostalCode),
			},
		},
		Contact: Contact{
			FullName: strings.TrimSpace(raw.Contact.Name),
			Emails:   raw.Contact.Emails,
			Phones:   raw.Contact.Phones,
		},
		Module: Module{
			Name:        strings.TrimSpace(raw.Module.Name),
			Version:     strings.TrimSpace(raw.Module.Version),
			Type:        strings.TrimSpace(raw.Module.Type),
			Description: strings.TrimSpace(raw.Module.Description),
		},
		OE: OperationalEnv{
			EnvName:      strings.TrimSpace(raw.OE.EnvName),
			Description:  strings.TrimSpace(raw.OE.Description),
			CPE:          strings.TrimSpace(raw.OE.CPE),
			SWID:         strings.TrimSpace(raw.OE.SWID),
			Manufacturer: strings.TrimSpace(raw.OE.Processor.Manufacturer),
			ProcFamily:   strings.TrimSpace(raw.OE.Processor.Family),
			ProcName:     strings.TrimSpace(raw.OE.Processor.Name),
			ProcSeries:   strings.TrimSpace(raw.OE.Processor.Series),
		},
	}

	if err := loadIDs(def); err != nil {
		return nil, err
	}
	if err := Validate(def); err != nil {
		return nil, fmt.Errorf("definition invalid (%s): %w", path, err)
	}
	return def, nil
}

// LoadDir loads every definition file in dir, skipping identifier
// sidecars.
func LoadDir(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("definition dir read failed (%s): %w", dir, err)
	}

	var defs []*Definition
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".toml") ||
			strings.HasSuffix(name, idsSuffix) {
			continue
		}
		def, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Validate checks the declaration for shapes the registry rejects outright.
func Validate(def *Definition) error {
	if def.Module.Name == "" {
		return fmt.Errorf("module name is required")
	}
	if def.Vendor.Name == "" {
		return fmt.Errorf("vendor name is required")
	}
	if def.OE.CPE != "" && def.OE.SWID != "" {
		return fmt.Errorf("oe declares both cpe and swid; pick one")
	}
	if !def.OE.HasSoftware() && !def.OE.HasProcessor() {
		return fmt.Errorf("oe declares neither a software environment nor a processor")
	}
	return nil
}
