package shape

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaCache caches compiled schemas by contract name plus a digest of
// the schema document, so contracts sharing a name never share a schema.
var schemaCache sync.Map // map[string]*jsonschema.Schema

func validateSchema(c Contract, v any) error {
	compiled, err := compiledSchema(c)
	if err != nil {
		return err
	}
	if err := compiled.Validate(v); err != nil {
		return errors.New(summarize(err))
	}
	return nil
}

func compiledSchema(c Contract) (*jsonschema.Schema, error) {
	// The compiler wants a decoded JSON value, not a Go map literal with
	// arbitrary element types.
	defBytes, err := json.Marshal(c.Schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	key := schemaKey(c.Name, defBytes)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	def, err := jsonschema.UnmarshalJSON(strings.NewReader(string(defBytes)))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", key)
	if err := compiler.AddResource(url, def); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	schemaCache.Store(key, compiled)
	return compiled, nil
}

// schemaKey is stable across calls: json.Marshal sorts map keys.
func schemaKey(name string, def []byte) string {
	sum := sha256.Sum256(def)
	return name + "@" + hex.EncodeToString(sum[:8])
}

// summarize flattens the validator's multi-line report into one line,
// dropping the generic header.
func summarize(err error) string {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	if len(lines) > 1 {
		lines = lines[1:]
	}
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(strings.TrimSpace(l), "- ")
	}
	return strings.Join(lines, "; ")
}
