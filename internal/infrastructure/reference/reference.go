// Package reference loads the static reference data: the school directory and
// the banned-word lists behind the nickname screen. A default data set is
// embedded into the binary; REFERENCE_FILE overrides it.
package reference

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/school"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/validation"
)

//go:embed default.yaml
var defaultData []byte

// ══════════════════════════════════════════════════════════════════════════════
// FILE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

type fileDTO struct {
	Schools     []schoolDTO    `yaml:"schools"`
	BannedWords bannedWordsDTO `yaml:"banned_words"`
}

type schoolDTO struct {
	Code            string                  `yaml:"code"`
	Name            string                  `yaml:"name"`
	Type            string                  `yaml:"type"`
	Specializations []school.Specialization `yaml:"specializations"`
	Courses         []string                `yaml:"courses"`
}

type bannedWordsDTO struct {
	Russian []string `yaml:"ru"`
	English []string `yaml:"en"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DATA
// ══════════════════════════════════════════════════════════════════════════════

// Data is the parsed reference data.
type Data struct {
	Directory *school.Directory
	Screen    *validation.Screen

	// BannedWords is the number of banned words read from both lists.
	BannedWords int
}

// Load reads the reference data from path, or the embedded default when path is empty.
func Load(path string) (*Data, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultData)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference file: %w", err)
	}
	data, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("reference file %s: %w", path, err)
	}
	return data, nil
}

// Default returns the embedded data set.
func Default() (*Data, error) {
	return Parse(defaultData)
}

// Parse decodes a YAML document.
func Parse(raw []byte) (*Data, error) {
	var f fileDTO
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	records := make([]school.Record, 0, len(f.Schools))
	for _, s := range f.Schools {
		records = append(records, school.Record{
			Code:            strings.TrimSpace(s.Code),
			Name:            strings.TrimSpace(s.Name),
			Type:            school.Type(strings.ToLower(strings.TrimSpace(s.Type))),
			Specializations: s.Specializations,
			Courses:         s.Courses,
		})
	}

	dir, err := school.NewDirectory(records)
	if err != nil {
		return nil, err
	}

	return &Data{
		Directory:   dir,
		Screen:      validation.NewScreen(f.BannedWords.Russian, f.BannedWords.English),
		BannedWords: len(f.BannedWords.Russian) + len(f.BannedWords.English),
	}, nil
}
