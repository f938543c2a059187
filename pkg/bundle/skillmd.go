package bundle

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

// ErrMalformed indicates a bundle whose root SKILL.md is missing or carries
// no valid frontmatter. Malformed bundles are permanent failures: retrying
// will not make the upstream content valid.
var ErrMalformed = errors.New("malformed skill bundle")

// ParseMetadata parses and validates the YAML frontmatter of a SKILL.md file.
func ParseMetadata(content []byte) (*Metadata, error) {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return nil, errors.Wrap(ErrMalformed, "missing frontmatter")
	}

	name, _ := metaData["name"].(string)
	description, _ := metaData["description"].(string)

	if name == "" {
		return nil, errors.Wrap(ErrMalformed, "frontmatter has no name")
	}
	if description == "" {
		return nil, errors.Wrap(ErrMalformed, "frontmatter has no description")
	}

	return &Metadata{Name: name, Description: description}, nil
}
