package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const templateHeader = `# gatewatch service configuration.
# Every key is optional; omitted keys keep the built-in default.
# GATEWATCH_<SECTION>_<KEY> environment variables override the file,
# e.g. GATEWATCH_GATEWAY_ADDRESS or GATEWATCH_KAFKA_BROKERS=a:9092,b:9092.
# kafka and redis stay disabled until brokers+topic / addr+channel are set.

`

// Template renders the defaults as a commented TOML document.
func Template() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(templateHeader)
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(Default()); err != nil {
		return "", fmt.Errorf("config template encode failed: %w", err)
	}
	return buf.String(), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
