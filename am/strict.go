package am

import (
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/teranos/omekalink/errors"
)

// CheckFile decodes a config file strictly and returns the keys omekalink
// does not recognise. Viper silently ignores them, which hides typos such as
// "per-page" or a misplaced [link.targets] table.
func CheckFile(path string) ([]string, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}

	var unknown []string
	for _, key := range md.Undecoded() {
		unknown = append(unknown, key.String())
	}
	sort.Strings(unknown)
	return unknown, nil
}
