package xmlapi

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/openfroyo/urlcat/pkg/engine"
)

// entry is the device's XML form of a custom URL category:
//
//	<entry name="..."><list><member>...</member></list><description>...</description><type>...</type></entry>
type entry struct {
	XMLName     xml.Name `xml:"entry"`
	Name        string   `xml:"name,attr"`
	Members     []string `xml:"list>member"`
	Description string   `xml:"description,omitempty"`
	Type        string   `xml:"type,omitempty"`
}

type memberList struct {
	Members []string `xml:"member"`
}

// container wraps the result of a get on the category XPath.
type container struct {
	Entries []entry `xml:"custom-url-category>entry"`
}

func toEntry(obj engine.CustomURLCategory) entry {
	return entry{
		Name:        obj.Name,
		Members:     append([]string(nil), obj.URLValues...),
		Description: obj.Description,
		Type:        string(obj.Type.Normalize()),
	}
}

func (e entry) object() engine.CustomURLCategory {
	return engine.CustomURLCategory{
		Name:        e.Name,
		URLValues:   append([]string(nil), e.Members...),
		Type:        engine.CategoryType(e.Type).Normalize(),
		Description: e.Description,
	}
}

// EncodeEntry renders the complete entry element, used for full overwrites.
func EncodeEntry(obj engine.CustomURLCategory) (string, error) {
	out, err := xml.Marshal(toEntry(obj))
	if err != nil {
		return "", fmt.Errorf("failed to encode entry %q: %w", obj.Name, err)
	}
	return string(out), nil
}

// EncodeEntryChildren renders the child elements of an entry without the
// entry wrapper, as expected by set at an entry XPath.
func EncodeEntryChildren(obj engine.CustomURLCategory) (string, error) {
	e := toEntry(obj)

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := enc.EncodeElement(memberList{Members: e.Members}, xml.StartElement{Name: xml.Name{Local: "list"}}); err != nil {
		return "", fmt.Errorf("failed to encode members of %q: %w", obj.Name, err)
	}
	if e.Description != "" {
		if err := enc.EncodeElement(e.Description, xml.StartElement{Name: xml.Name{Local: "description"}}); err != nil {
			return "", fmt.Errorf("failed to encode description of %q: %w", obj.Name, err)
		}
	}
	if err := enc.EncodeElement(e.Type, xml.StartElement{Name: xml.Name{Local: "type"}}); err != nil {
		return "", fmt.Errorf("failed to encode type of %q: %w", obj.Name, err)
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DecodeListing parses the inner XML of a get on the category XPath.
// Empty input yields an empty listing.
func DecodeListing(inner []byte) ([]engine.CustomURLCategory, error) {
	inner = bytes.TrimSpace(inner)
	if len(inner) == 0 {
		return []engine.CustomURLCategory{}, nil
	}

	var c container
	wrapped := append(append([]byte("<result>"), inner...), []byte("</result>")...)
	if err := xml.Unmarshal(wrapped, &c); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	out := make([]engine.CustomURLCategory, 0, len(c.Entries))
	for _, e := range c.Entries {
		out = append(out, e.object())
	}
	return out, nil
}
