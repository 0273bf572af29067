package cropapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed contract.yaml
var contractYAML []byte

// Contract checks backend payloads against the embedded OpenAPI document.
type Contract struct {
	doc *openapi3.T
}

func LoadContract(ctx context.Context) (*Contract, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(contractYAML)
	if err != nil {
		return nil, fmt.Errorf("load backend contract: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate backend contract: %w", err)
	}
	return &Contract{doc: doc}, nil
}

// ContractError reports a 2xx payload that does not match the contract.
type ContractError struct {
	Operation string
	Err       error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("backend %s response violates contract: %v", e.Operation, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

// Decode validates body against the response schema of method+path and
// unmarshals it into out. Paths missing from the contract are decoded unchecked.
func (c *Contract) Decode(operation, method, path string, status int, body []byte, out any) error {
	if c != nil {
		if schema := c.responseSchema(method, path, status); schema != nil {
			var value any
			if err := json.Unmarshal(body, &value); err != nil {
				return &ContractError{Operation: operation, Err: err}
			}
			if err := schema.VisitJSON(value); err != nil {
				return &ContractError{Operation: operation, Err: err}
			}
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func (c *Contract) responseSchema(method, path string, status int) *openapi3.Schema {
	if c.doc == nil || c.doc.Paths == nil {
		return nil
	}
	item := c.doc.Paths.Find(path)
	if item == nil {
		return nil
	}
	op := item.GetOperation(method)
	if op == nil || op.Responses == nil {
		return nil
	}
	ref := op.Responses.Status(status)
	if ref == nil {
		ref = op.Responses.Status(http.StatusOK)
	}
	if ref == nil || ref.Value == nil {
		return nil
	}
	media := ref.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil {
		return nil
	}
	return media.Schema.Value
}
