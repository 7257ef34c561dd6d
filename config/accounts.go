package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Account - credential pair, identified by username
type Account struct {
	Username string `yaml:"userName"`
	Password string `yaml:"password"`
}

// Valid reports whether both fields are present. Invalid accounts are skipped,
// not rejected.
func (a Account) Valid() bool {
	return a.Username != "" && a.Password != ""
}

// ParseAccounts decodes a YAML list of accounts, e.g.
//
//   - userName: "13800138000"
//     password: "secret"
func ParseAccounts(data []byte) ([]Account, error) {
	var accounts []Account
	if err := yaml.Unmarshal(data, &accounts); err != nil {
		return nil, errors.Wrap(err, "config: parse accounts")
	}
	return accounts, nil
}

// LoadAccounts reads accounts from a YAML file.
func LoadAccounts(path string) ([]Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read accounts file %s", path)
	}
	return ParseAccounts(data)
}
