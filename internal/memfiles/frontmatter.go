package memfiles

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const fence = "---"

// frontMatter is the YAML header of a memory file.
type frontMatter struct {
	ID        string    `yaml:"id,omitempty"`
	Kind      string    `yaml:"kind,omitempty"`
	Upstream  []string  `yaml:"upstream,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// parse splits data into front matter and body. Files without a
// leading fence have an empty header and the whole file as body. One
// trailing newline is dropped from the body.
func parse(data []byte) (frontMatter, string, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var fm frontMatter
	if !strings.HasPrefix(text, fence+"\n") {
		return fm, strings.TrimSuffix(text, "\n"), nil
	}

	rest := text[len(fence)+1:]
	var header, body string
	switch {
	case strings.HasPrefix(rest, fence+"\n"):
		body = rest[len(fence)+1:]
	case rest == fence:
	default:
		end := strings.Index(rest, "\n"+fence+"\n")
		if end < 0 {
			if !strings.HasSuffix(rest, "\n"+fence) {
				return fm, "", fmt.Errorf("front matter is not closed")
			}
			end = len(rest) - len(fence) - 1
			header = rest[:end]
		} else {
			header = rest[:end]
			body = rest[end+len(fence)+2:]
		}
	}

	if strings.TrimSpace(header) != "" {
		if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
			return fm, "", fmt.Errorf("parsing front matter: %w", err)
		}
	}
	return fm, strings.TrimSuffix(body, "\n"), nil
}

// render writes the header and body back out.
func render(fm frontMatter, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fence + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, fmt.Errorf("encoding front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding front matter: %w", err)
	}
	buf.WriteString(fence + "\n")
	buf.WriteString(body)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}
