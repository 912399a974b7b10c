package discovery

import (
	"errors"
	"strings"

	"github.com/clbanning/mxj"
)

// decodeXML parses payload into a map keyed by local element name and
// returns the root element's name alongside its children.
func decodeXML(payload []byte) (string, mxj.Map, error) {
	m, err := mxj.NewMapXml(payload)
	if err != nil {
		return "", nil, err
	}
	if len(m) != 1 {
		return "", nil, errors.New("no root element")
	}
	for root, v := range m {
		children, _ := v.(map[string]interface{})
		return root, mxj.Map(children), nil
	}
	return "", nil, errors.New("no root element")
}

// textOf returns the trimmed character data of a decoded element. Repeated
// elements yield their first occurrence; elements with only child elements
// yield "".
func textOf(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]interface{}:
		if s, ok := t["#text"].(string); ok {
			return strings.TrimSpace(s)
		}
	case []interface{}:
		if len(t) > 0 {
			return textOf(t[0])
		}
	}
	return ""
}

// childText returns the text of the named direct child of m
func childText(m mxj.Map, name string) string {
	if m == nil {
		return ""
	}
	return textOf(m[name])
}
