// Package schemas embeds the JSON Schemas of the documents read by the CLI.
package schemas

import "embed"

// File names of the embedded schemas.
const (
	SessionSchema = "session.schema.json"
	OrderSchema   = "order.schema.json"
)

//go:embed *.schema.json
var files embed.FS

// Load returns the content of an embedded schema.
func Load(name string) (string, error) {
	data, err := files.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Names lists the embedded schemas.
func Names() []string {
	return []string{SessionSchema, OrderSchema}
}
