package xmlparser

import (
	"errors"
	"fmt"
	"slices"

	"github.com/antchfx/xmlquery"

	"github.com/ridoystarlord/casemigrate/format"
	"github.com/ridoystarlord/casemigrate/generator"
	"github.com/ridoystarlord/casemigrate/source"
)

// ErrMalformedDocument marks a document that could not be parsed or whose
// structure could not be mapped to records.
var ErrMalformedDocument = errors.New("malformed document")

// Input is one (key, document) pair read from staging.
type Input struct {
	Key      int64
	Document string
	Row      source.Row
}

// Parser turns the XML column of a staging table into child records.
type Parser struct {
	Name string
	// Parent is the staging table that owns the document column Field.
	Parent string
	Field  string
	// Root selects the repeated element; each match is handed to Element.
	Root    string
	Targets []string
	// Reverse walks Root matches last to first.
	Reverse bool

	// Custom replaces the default select over Parent.Field. KeyColumn and
	// DocColumn name its columns.
	Custom    *source.Query
	KeyColumn string
	DocColumn string

	// Element receives each Root match with its 1-based document position.
	Element func(b *Batch, in Input, el *xmlquery.Node, ordinal int) error
	// Document, when set, receives the whole document instead.
	Document func(b *Batch, in Input, doc *xmlquery.Node) error
}

// Query returns the query that yields this parser's (key, document) pairs.
func (p Parser) Query() source.Query {
	if p.Custom != nil {
		return *p.Custom
	}
	return source.Query{
		Name:  p.Name,
		SQL:   generator.XMLSourceSQL(p.Parent, p.keyColumn(), p.Field),
		Table: p.Parent,
	}
}

func (p Parser) keyColumn() string {
	if p.KeyColumn != "" {
		return p.KeyColumn
	}
	return format.KeyColumn
}

func (p Parser) docColumn() string {
	if p.DocColumn != "" {
		return p.DocColumn
	}
	return p.Field
}

// InputOf extracts the pair from a row. ok is false when the row carries no
// key or an empty document.
func (p Parser) InputOf(row source.Row) (Input, bool) {
	key, ok := row.Int64(p.keyColumn())
	if !ok {
		return Input{}, false
	}
	doc := row.String(p.docColumn())
	if doc == "" {
		return Input{}, false
	}
	return Input{Key: key, Document: doc, Row: row}, true
}

// Parse adds the records of one document to b. Failures other than key
// allocation are wrapped with ErrMalformedDocument. Records added before a
// failure stay in b, so callers parse into a scratch batch.
func (p Parser) Parse(b *Batch, in Input) error {
	doc, err := Parse(in.Document)
	if err != nil {
		return fmt.Errorf("%w: %s key %d: %w", ErrMalformedDocument, p.Name, in.Key, err)
	}

	if p.Document != nil {
		err = p.Document(b, in, doc)
	} else {
		err = p.elements(b, in, doc)
	}
	var alloc *allocError
	if errors.As(err, &alloc) {
		return fmt.Errorf("%s key %d: %w", p.Name, in.Key, alloc.err)
	}
	if err != nil {
		return fmt.Errorf("%w: %s key %d: %w", ErrMalformedDocument, p.Name, in.Key, err)
	}
	return nil
}

func (p Parser) elements(b *Batch, in Input, doc *xmlquery.Node) error {
	found := xmlquery.Find(doc, p.Root)
	ordinals := make([]int, len(found))
	for i := range found {
		ordinals[i] = i + 1
	}
	if p.Reverse {
		found = slices.Clone(found)
		slices.Reverse(found)
		slices.Reverse(ordinals)
	}

	for i, el := range found {
		if err := p.Element(b, in, el, ordinals[i]); err != nil {
			return err
		}
	}
	return nil
}

func yesNo(s string) any {
	if v, ok := format.YesNo(s); ok {
		return v
	}
	return nil
}

func intValue(s string) any {
	n, err := format.IntOrNil(s)
	if err != nil || n == nil {
		return nil
	}
	return *n
}

func dateTime(s string) any {
	t, err := format.DateTimeOrNil(s)
	if err != nil || t == nil {
		return nil
	}
	return *t
}

func date(s string) any {
	t, err := format.DateOrNil(s)
	if err != nil || t == nil {
		return nil
	}
	return *t
}

func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
