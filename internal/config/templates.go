package config

import (
	"fmt"
	"strings"
)

const settingsTemplate = `# metasync client settings
server = "https://registry.example.com/api/v1"
token_file = "/etc/metasync/token"
# ca_file = "/etc/metasync/registry-ca.pem"

definitions = "definitions"
jobs = 4
# metrics_addr = ":9464"
# log_level = "info"
`

const definitionTemplate = `[vendor]
name = "Acme Crypto"
website = "https://acme.example"

[vendor.address]
street = "1 Main St"
locality = "Springfield"
region = "OR"
country = "US"
postal_code = "97477"

[contact]
name = "Jane Tester"
emails = ["jane@acme.example"]
phones = ["+1 555 0100"]

[module]
name = "Acme FIPS Provider"
version = "3.0.8"
type = "Software"

[oe]
env_name = "Linux 5.4"
# cpe = "cpe:2.3:o:linux:linux_kernel:5.4"

[oe.processor]
manufacturer = "Intel"
family = "X86"
name = "Xeon"
series = "5100"
`

// Template returns a starter file of the requested kind.
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "settings":
		return settingsTemplate, nil
	case "definition":
		return definitionTemplate, nil
	default:
		return "", fmt.Errorf("config: unknown template %q (settings, definition)", kind)
	}
}
