package lastchange

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
)

var (
	// ErrMissingLastChange is returned when the envelope has no LastChange element
	// or cannot be read as XML before one is found.
	ErrMissingLastChange = errors.New("notification has no LastChange element")
	// ErrInnerParse is returned when the LastChange text is not a valid XML document.
	ErrInnerParse = errors.New("malformed LastChange document")
	// ErrMissingValueAttribute is returned when an instance child has no "val" attribute.
	ErrMissingValueAttribute = errors.New("element has no val attribute")
)

const (
	lastChangeElement = "LastChange"
	valueAttribute    = "val"
)

// Instance is one instance record of a LastChange document.
type Instance struct {
	// ID is the instance record's own "val" attribute, usually "0".
	ID string

	Attributes AttributeSet
}

// element is a generic XML node used for the inner document.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []element  `xml:",any"`
}

func (e element) attr(local string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// Parse decodes a notification body and returns the attributes of its first
// instance record. A LastChange document without instance records yields an
// empty set. Parse never returns a partially filled set.
func Parse(raw []byte) (AttributeSet, error) {
	root, err := decode(raw)
	if err != nil {
		return AttributeSet{}, err
	}
	if len(root.Children) == 0 {
		return AttributeSet{}, nil
	}
	return flatten(root.Children[0])
}

// ParseAll decodes a notification body and returns every instance record in
// document order.
func ParseAll(raw []byte) ([]Instance, error) {
	root, err := decode(raw)
	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(root.Children))
	for _, rec := range root.Children {
		attrs, err := flatten(rec)
		if err != nil {
			return nil, err
		}
		id, _ := rec.attr(valueAttribute)
		instances = append(instances, Instance{ID: id, Attributes: attrs})
	}
	return instances, nil
}

func decode(raw []byte) (element, error) {
	doc, err := extractLastChange(raw)
	if err != nil {
		return element{}, err
	}

	var root element
	d := newDecoder(strings.NewReader(doc))
	if err := d.Decode(&root); err != nil {
		return element{}, fmt.Errorf("%w: %w", ErrInnerParse, err)
	}
	return root, nil
}

// extractLastChange returns the text of the first LastChange element with
// entity escaping removed.
func extractLastChange(raw []byte) (string, error) {
	d := newDecoder(bytes.NewReader(raw))
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return "", ErrMissingLastChange
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrMissingLastChange, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != lastChangeElement {
			continue
		}

		var body struct {
			Text  string `xml:",chardata"`
			Inner string `xml:",innerxml"`
		}
		if err := d.DecodeElement(&body, &start); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInnerParse, err)
		}

		doc := strings.TrimSpace(body.Text)
		if doc == "" {
			// Some devices embed the document unescaped.
			doc = strings.TrimSpace(body.Inner)
		}
		if strings.HasPrefix(doc, "&lt;") {
			doc = html.UnescapeString(doc)
		}
		if doc == "" {
			return "", fmt.Errorf("%w: empty document", ErrInnerParse)
		}
		return doc, nil
	}
}

func flatten(rec element) (AttributeSet, error) {
	var attrs AttributeSet
	for _, child := range rec.Children {
		val, ok := child.attr(valueAttribute)
		if !ok {
			return AttributeSet{}, fmt.Errorf("%w: %s", ErrMissingValueAttribute, child.XMLName.Local)
		}
		attrs.set(child.XMLName.Local, val)
	}
	return attrs, nil
}

func newDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.Entity = xml.HTMLEntity
	return d
}
