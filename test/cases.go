package test

import (
	"bytes"
	"embed"
	"io/fs"
	"path/filepath"
	"text/template"

	"github.com/nasdf/osmdag/graphql"

	"gopkg.in/yaml.v3"
)

//go:embed cases
var casesFS embed.FS

type TestCase struct {
	// Description is a simple description for the test case.
	Description string
	// Operations is a list of all GraphQL operations to run in this test case.
	Operations []Operation
}

type Operation struct {
	// Params contains the GraphQL parameters for this operation.
	//
	// The query is a template executed against the data of all previous operations.
	Params graphql.QueryParams
	// Response contains the expected GraphQL response.
	//
	// The response is a template executed against the data of this operation.
	Response string
}

// Query returns the operation query with all references to previous results filled in.
func (op Operation) Query(results []any) (string, error) {
	return render("query", op.Params.Query, results)
}

// Expected returns the expected response with all references to the actual data filled in.
func (op Operation) Expected(data any) (string, error) {
	return render("response", op.Response, data)
}

func render(name, text string, data any) (string, error) {
	tpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := tpl.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}

// TestCasePaths returns a list of all test case file paths.
func TestCasePaths() (paths []string, _ error) {
	return paths, fs.WalkDir(casesFS, "cases", func(path string, d fs.DirEntry, err error) error {
		if filepath.Ext(path) == ".yaml" {
			paths = append(paths, path)
		}
		return err
	})
}

// LoadTestCase loads and parses a test case file.
func LoadTestCase(path string) (*TestCase, error) {
	data, err := fs.ReadFile(casesFS, path)
	if err != nil {
		return nil, err
	}
	var testCase TestCase
	if err := yaml.Unmarshal(data, &testCase); err != nil {
		return nil, err
	}
	return &testCase, nil
}
