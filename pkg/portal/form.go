package portal

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Fields is the form contract with the portal: the HTML name attributes of
// the identifier input, the secret input and the submit control.
type Fields struct {
	Identifier string `yaml:"identifier"`
	Secret     string `yaml:"secret"`
	Submit     string `yaml:"submit"`
}

// DefaultFields matches the portal login form.
var DefaultFields = Fields{
	Identifier: "name",
	Secret:     "password",
	Submit:     "set",
}

// Validate rejects empty field names.
func (f Fields) Validate() error {
	if f.Identifier == "" || f.Secret == "" || f.Submit == "" {
		return fmt.Errorf("portal form fields must all be named (identifier=%q secret=%q submit=%q)",
			f.Identifier, f.Secret, f.Submit)
	}
	return nil
}

// Selector returns a CSS selector addressing an element by name attribute.
func Selector(name string) string {
	return fmt.Sprintf(`[name=%q]`, name)
}

// FormPresent reports whether the HTML document has form controls named
// after every one of names. Unparseable input counts as absent.
func FormPresent(r io.Reader, names ...string) bool {
	if len(names) == 0 {
		return false
	}

	doc, err := html.Parse(r)
	if err != nil {
		return false
	}

	found := make(map[string]bool, len(names))
	collectControlNames(doc, found)

	for _, name := range names {
		if !found[name] {
			return false
		}
	}
	return true
}

func collectControlNames(n *html.Node, found map[string]bool) {
	if n.Type == html.ElementNode && isFormControl(strings.ToLower(n.Data)) {
		for _, attr := range n.Attr {
			if attr.Key == "name" {
				found[attr.Val] = true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectControlNames(c, found)
	}
}

func isFormControl(tagName string) bool {
	switch tagName {
	case "input", "button", "select", "textarea":
		return true
	}
	return false
}
