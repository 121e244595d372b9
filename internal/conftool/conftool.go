// Package conftool edits Hadoop-style site files such as tez-site.xml.
//
// Files are edited as a token stream: comments, the declaration and any
// elements the editor does not touch are written back unchanged.
package conftool

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Property names toggled by [SetEncryption].
const (
	KeepAlive = "tez.runtime.shuffle.keep-alive.enabled"
	SSL       = "tez.runtime.shuffle.ssl.enable"
)

// Security is the cluster security mode.
type Security string

// Supported security modes.
const (
	SecurityMapRSASL Security = "maprsasl"
	SecurityNone     Security = "none"
	SecurityCustom   Security = "custom"
)

// ErrUnknownSecurity is returned by [ParseSecurity] for unsupported modes.
var ErrUnknownSecurity = errors.New("unknown security mode")

// ErrNoConfiguration is returned when a document has no <configuration> root.
var ErrNoConfiguration = errors.New("no <configuration> tag")

// ParseSecurity accepts a mode name case-insensitively.
func ParseSecurity(s string) (Security, error) {
	switch sec := Security(strings.ToLower(strings.TrimSpace(s))); sec {
	case SecurityMapRSASL, SecurityNone, SecurityCustom:
		return sec, nil
	}
	return "", fmt.Errorf("%w: %q (want maprsasl, none or custom)", ErrUnknownSecurity, s)
}

// Property is a single <property> entry.
type Property struct {
	Name        string
	Value       string
	Description string
	Final       string
	Source      string
}

// Document is a parsed site file held as its raw token stream. Edits touch
// only the affected <property> elements, so comments and unmodelled
// elements are written back as they were read.
type Document struct {
	tokens []xml.Token
	// index of the </configuration> token
	rootEnd int
}

// span is the token range of one <property> element, end inclusive.
type span struct {
	start, end int
}

// Parse decodes a site file.
func Parse(data []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		doc      = &Document{rootEnd: -1}
		depth    int
		rootSeen bool
	)
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse xml: %w", err)
		}
		tok = flatten(xml.CopyToken(tok))

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if rootSeen || t.Name.Local != "configuration" {
					return nil, ErrNoConfiguration
				}
				rootSeen = true
			}
			depth++
		case xml.EndElement:
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("failed to parse xml: unexpected </%s>", t.Name.Local)
			}
			if depth == 0 {
				doc.rootEnd = len(doc.tokens)
			}
		}
		doc.tokens = append(doc.tokens, tok)
	}
	if !rootSeen {
		return nil, ErrNoConfiguration
	}
	if depth != 0 || doc.rootEnd < 0 {
		return nil, fmt.Errorf("failed to parse xml: unclosed <configuration>")
	}
	return doc, nil
}

// flatten folds raw namespace prefixes into local names so the encoder
// writes them back unchanged.
func flatten(tok xml.Token) xml.Token {
	join := func(n xml.Name) xml.Name {
		if n.Space == "" {
			return n
		}
		return xml.Name{Local: n.Space + ":" + n.Local}
	}
	switch t := tok.(type) {
	case xml.StartElement:
		t.Name = join(t.Name)
		for i := range t.Attr {
			t.Attr[i].Name = join(t.Attr[i].Name)
		}
		return t
	case xml.EndElement:
		t.Name = join(t.Name)
		return t
	}
	return tok
}

// ReadFile parses the site file at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// spans returns the <property> children of <configuration> in order.
func (d *Document) spans() []span {
	var (
		out   []span
		depth int
		cur   = -1
	)
	for i, tok := range d.tokens {
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 && t.Name.Local == "property" {
				cur = i
			}
		case xml.EndElement:
			if depth == 2 && cur >= 0 {
				out = append(out, span{start: cur, end: i})
				cur = -1
			}
			depth--
		}
	}
	return out
}

// property reads the modelled fields of the property in sp.
func (d *Document) property(sp span) Property {
	var p Property
	depth := 0
	field := ""
	for _, tok := range d.tokens[sp.start+1 : sp.end] {
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				field = t.Name.Local
			}
		case xml.EndElement:
			depth--
			if depth == 0 {
				field = ""
			}
		case xml.CharData:
			if depth != 1 {
				continue
			}
			text := string(t)
			switch field {
			case "name":
				p.Name += text
			case "value":
				p.Value += text
			case "description":
				p.Description += text
			case "final":
				p.Final += text
			case "source":
				p.Source += text
			}
		}
	}
	p.Name = strings.TrimSpace(p.Name)
	return p
}

// child returns the start and end token indexes of the first direct child
// element called name within sp.
func (d *Document) child(sp span, name string) (int, int, bool) {
	depth := 0
	open := -1
	for i := sp.start + 1; i < sp.end; i++ {
		switch t := d.tokens[i].(type) {
		case xml.StartElement:
			depth++
			if depth == 1 && open < 0 && t.Name.Local == name {
				open = i
			}
		case xml.EndElement:
			if depth == 1 && open >= 0 {
				return open, i, true
			}
			depth--
		}
	}
	return 0, 0, false
}

// Properties returns the modelled view of every <property>.
func (d *Document) Properties() []Property {
	spans := d.spans()
	out := make([]Property, 0, len(spans))
	for _, sp := range spans {
		out = append(out, d.property(sp))
	}
	return out
}

// Get returns the value of name and whether it is present.
func (d *Document) Get(name string) (string, bool) {
	for _, sp := range d.spans() {
		if p := d.property(sp); p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Set updates every property called name, or appends one when none exists.
// It reports whether the property already existed.
func (d *Document) Set(name, value string) bool {
	spans := d.spans()
	found := false
	// back to front so earlier indexes stay valid
	for i := len(spans) - 1; i >= 0; i-- {
		sp := spans[i]
		if d.property(sp).Name != name {
			continue
		}
		found = true
		if open, end, ok := d.child(sp, "value"); ok {
			d.splice(open+1, end, xml.CharData(value))
			continue
		}
		d.splice(sp.end, sp.end,
			xml.CharData("  "),
			xml.StartElement{Name: xml.Name{Local: "value"}},
			xml.CharData(value),
			xml.EndElement{Name: xml.Name{Local: "value"}},
			xml.CharData("\n  "),
		)
	}
	if !found {
		d.splice(d.rootEnd, d.rootEnd, newProperty(name, value)...)
	}
	return found
}

// Remove deletes the first property called name and reports whether one
// was removed. Indentation in front of the element goes with it.
func (d *Document) Remove(name string) bool {
	for _, sp := range d.spans() {
		if d.property(sp).Name != name {
			continue
		}
		start := sp.start
		if start > 0 {
			if cd, ok := d.tokens[start-1].(xml.CharData); ok && len(bytes.TrimSpace(cd)) == 0 {
				start--
			}
		}
		d.splice(start, sp.end+1)
		return true
	}
	return false
}

// splice replaces tokens[from:to] with toks and keeps rootEnd in step.
func (d *Document) splice(from, to int, toks ...xml.Token) {
	out := make([]xml.Token, 0, len(d.tokens)-(to-from)+len(toks))
	out = append(out, d.tokens[:from]...)
	out = append(out, toks...)
	out = append(out, d.tokens[to:]...)
	d.tokens = out
	if d.rootEnd >= to {
		d.rootEnd += len(toks) - (to - from)
	}
}

func newProperty(name, value string) []xml.Token {
	elem := func(local, text string) []xml.Token {
		return []xml.Token{
			xml.CharData("\n    "),
			xml.StartElement{Name: xml.Name{Local: local}},
			xml.CharData(text),
			xml.EndElement{Name: xml.Name{Local: local}},
		}
	}
	toks := []xml.Token{
		xml.CharData("  "),
		xml.StartElement{Name: xml.Name{Local: "property"}},
	}
	toks = append(toks, elem("name", name)...)
	toks = append(toks, elem("value", value)...)
	return append(toks,
		xml.CharData("\n  "),
		xml.EndElement{Name: xml.Name{Local: "property"}},
		xml.CharData("\n"),
	)
}

// Marshal encodes the token stream. Whitespace between elements is written
// verbatim so the file keeps its layout.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	for _, tok := range d.tokens {
		if cd, ok := tok.(xml.CharData); ok && len(bytes.TrimSpace(cd)) == 0 {
			if err := enc.Flush(); err != nil {
				return nil, fmt.Errorf("failed to encode xml: %w", err)
			}
			buf.Write(cd)
			continue
		}
		if err := enc.EncodeToken(tok); err != nil {
			return nil, fmt.Errorf("failed to encode xml: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode xml: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes the document to path through a temporary file in the
// same directory, keeping the original file mode.
func (d *Document) WriteFile(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".conftool-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Apply changes doc for the given security mode and reports whether the
// document should be written back.
func Apply(doc *Document, security Security, logger *slog.Logger) bool {
	if logger == nil {
		logger = slog.Default()
	}

	switch security {
	case SecurityMapRSASL:
		for _, name := range []string{SSL, KeepAlive} {
			existed := doc.Set(name, "true")
			logger.Info("property set", "name", name, "value", "true", "existed", existed)
		}
		return true
	case SecurityNone:
		for _, name := range []string{SSL, KeepAlive} {
			removed := doc.Remove(name)
			logger.Info("property removed", "name", name, "present", removed)
		}
		return true
	default:
		return false
	}
}

// SetEncryption configures shuffle SSL in the site file at path. Custom
// security leaves the file untouched.
func SetEncryption(path string, security Security, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("path", path, "security", string(security))

	if security == SecurityCustom {
		logger.Info("custom security, leaving site file untouched")
		return nil
	}

	doc, err := ReadFile(path)
	if err != nil {
		return err
	}
	if !Apply(doc, security, logger) {
		return nil
	}
	if err := doc.WriteFile(path); err != nil {
		return err
	}
	logger.Info("site file updated")
	return nil
}
