package token

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// tokenFile is the mapping form of a token file:
//
//	tokens:
//	  - abc
//	  - def
type tokenFile struct {
	Tokens []string `yaml:"tokens"`
}

// LoadFile reads tokens from path. Three layouts are accepted: a YAML
// sequence, a YAML mapping with a "tokens" key, or plain text with one
// token per line ('#' starts a comment).
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err == nil && doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		switch root := doc.Content[0]; root.Kind {
		case yaml.SequenceNode:
			var list []string
			if err := root.Decode(&list); err != nil {
				return nil, fmt.Errorf("decode token list: %w", err)
			}
			return clean(list), nil
		case yaml.MappingNode:
			var f tokenFile
			if err := root.Decode(&f); err != nil {
				return nil, fmt.Errorf("decode token file: %w", err)
			}
			return clean(f.Tokens), nil
		}
	}

	var out []string
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan token file: %w", err)
	}
	return clean(out), nil
}

// SaveFile writes tokens as a YAML mapping using atomic rename.
func SaveFile(path string, tokens []string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}

	data, err := yaml.Marshal(tokenFile{Tokens: clean(tokens)})
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// clean trims entries and drops blanks and duplicates, keeping first-seen order.
func clean(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
