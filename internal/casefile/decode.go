package casefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Shape identifies which of the accepted top-level layouts a file uses.
type Shape int

const (
	// ShapeSingle is {"suite": "...", "cases": [...]}.
	ShapeSingle Shape = iota + 1
	// ShapeList is [{"suite": "...", "cases": [...]}, ...].
	ShapeList
	// ShapeMapping is {"<suite name>": [...], ...}.
	ShapeMapping
)

func (s Shape) String() string {
	switch s {
	case ShapeSingle:
		return "single"
	case ShapeList:
		return "list"
	case ShapeMapping:
		return "mapping"
	}
	return "unknown"
}

// Block is one suite as written in a file, cases still undecoded.
type Block struct {
	Suite string
	Cases []any
}

// Document is the decoded form of a case file.
type Document struct {
	Shape  Shape
	Blocks []Block
}

var utf8BOM = []byte("\xef\xbb\xbf")

// Decode parses a case file and classifies its shape. ext is the file
// extension (".json", ".yaml", ".yml") used as a format hint; empty means
// detect from content. Object key order is preserved so suites of a mapping
// file are processed in file order.
func Decode(data []byte, ext string) (*Document, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	top, err := decodeTop(data, ext)
	if err != nil {
		return nil, err
	}

	switch t := top.(type) {
	case topObject:
		if t.has("suite") && t.has("cases") {
			b, err := block(t.get("suite"), t.get("cases"))
			if err != nil {
				return nil, err
			}
			return &Document{Shape: ShapeSingle, Blocks: []Block{b}}, nil
		}
		if t.allLists() {
			doc := &Document{Shape: ShapeMapping}
			for _, m := range t {
				doc.Blocks = append(doc.Blocks, Block{Suite: m.Key, Cases: m.Value.([]any)})
			}
			return doc, nil
		}
	case topList:
		if t.allSuiteObjects() {
			doc := &Document{Shape: ShapeList}
			for _, item := range t {
				obj := item.(map[string]any)
				b, err := block(obj["suite"], obj["cases"])
				if err != nil {
					return nil, err
				}
				doc.Blocks = append(doc.Blocks, b)
			}
			return doc, nil
		}
	}
	return nil, errors.New("unsupported JSON shape")
}

func block(suite, cases any) (Block, error) {
	name, ok := suite.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return Block{}, fmt.Errorf("suite name must be a non-empty string, got %v", suite)
	}
	if cases == nil {
		return Block{Suite: name}, nil
	}
	list, ok := cases.([]any)
	if !ok {
		return Block{}, fmt.Errorf("cases of suite %q must be a list", name)
	}
	return Block{Suite: name, Cases: list}, nil
}

// topLevel is the ordered top-level value of a file: topObject or topList.
type topLevel interface{ isTopLevel() }

type member struct {
	Key   string
	Value any
}

type topObject []member

type topList []any

func (topObject) isTopLevel() {}
func (topList) isTopLevel()   {}

func (o topObject) has(key string) bool {
	for _, m := range o {
		if m.Key == key {
			return true
		}
	}
	return false
}

func (o topObject) get(key string) any {
	for _, m := range o {
		if m.Key == key {
			return m.Value
		}
	}
	return nil
}

func (o topObject) allLists() bool {
	for _, m := range o {
		if _, ok := m.Value.([]any); !ok {
			return false
		}
	}
	return true
}

func (l topList) allSuiteObjects() bool {
	for _, item := range l {
		obj, ok := item.(map[string]any)
		if !ok {
			return false
		}
		_, hasSuite := obj["suite"]
		_, hasCases := obj["cases"]
		if !hasSuite || !hasCases {
			return false
		}
	}
	return true
}

func decodeTop(data []byte, ext string) (topLevel, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return decodeJSONTop(data)
	case ".yaml", ".yml":
		return decodeYAMLTop(data)
	}
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("{")) || bytes.HasPrefix(trimmed, []byte("[")) {
		return decodeJSONTop(data)
	}
	return decodeYAMLTop(data)
}

func decodeJSONTop(data []byte) (topLevel, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	var top topLevel
	switch tok {
	case json.Delim('['):
		var list topList
		for dec.More() {
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, fmt.Errorf("parse json: %w", err)
			}
			list = append(list, v)
		}
		top = list
	case json.Delim('{'):
		var obj topObject
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("parse json: %w", err)
			}
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, fmt.Errorf("parse json: %w", err)
			}
			obj = append(obj, member{Key: keyTok.(string), Value: v})
		}
		top = obj
	default:
		return nil, errors.New("unsupported JSON shape")
	}

	// closing delimiter
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("parse json: trailing data after top-level value")
	}
	return top, nil
}

func decodeYAMLTop(data []byte) (topLevel, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("unsupported YAML shape: empty document")
	}
	root := doc.Content[0]

	switch root.Kind {
	case yaml.SequenceNode:
		var list []any
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return topList(list), nil
	case yaml.MappingNode:
		var obj topObject
		for i := 0; i+1 < len(root.Content); i += 2 {
			var v any
			if err := root.Content[i+1].Decode(&v); err != nil {
				return nil, fmt.Errorf("parse yaml: %w", err)
			}
			obj = append(obj, member{Key: root.Content[i].Value, Value: v})
		}
		return obj, nil
	}
	return nil, errors.New("unsupported YAML shape")
}
