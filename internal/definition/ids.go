package definition

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/metasync/internal/id"
)

const idsSuffix = ".ids.toml"

// idsRecord is the durable shape of every registry identifier a
// definition has acquired so far, including pending request markers.
type idsRecord struct {
	Vendor      uint32 `toml:"vendor"`
	Address     uint32 `toml:"address"`
	Person      uint32 `toml:"person"`
	Module      uint32 `toml:"module"`
	OE          uint32 `toml:"oe"`
	OESoftware  uint32 `toml:"oe_software"`
	OEProcessor uint32 `toml:"oe_processor"`
}

func idsPath(defPath string) string {
	return strings.TrimSuffix(defPath, ".toml") + idsSuffix
}

// loadIDs merges the sidecar into the definition. A missing sidecar means
// nothing was registered yet.
func loadIDs(def *Definition) error {
	var rec idsRecord
	if _, err := toml.DecodeFile(def.IDsPath, &rec); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("ids load failed (%s): %w", def.IDsPath, err)
	}

	def.Vendor.ID = id.ID(rec.Vendor)
	def.Vendor.AddressID = id.ID(rec.Address)
	def.Contact.ID = id.ID(rec.Person)
	def.Module.ID = id.ID(rec.Module)
	def.OE.ID = id.ID(rec.OE)
	def.OE.SoftwareID = id.ID(rec.OESoftware)
	def.OE.ProcessorID = id.ID(rec.OEProcessor)
	return nil
}

// persistIDs writes the sidecar. Identifiers carrying status flags are
// persisted as-is so pending requests survive across runs.
func persistIDs(def *Definition) error {
	rec := idsRecord{
		Vendor:      uint32(def.Vendor.ID),
		Address:     uint32(def.Vendor.AddressID),
		Person:      uint32(def.Contact.ID),
		Module:      uint32(def.Module.ID),
		OE:          uint32(def.OE.ID),
		OESoftware:  uint32(def.OE.SoftwareID),
		OEProcessor: uint32(def.OE.ProcessorID),
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("ids encode failed (%s): %w", def.IDsPath, err)
	}
	if err := os.WriteFile(def.IDsPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("ids write failed (%s): %w", def.IDsPath, err)
	}
	return nil
}
