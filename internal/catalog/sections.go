package catalog

import (
	"fmt"
	"strings"
)

const placeholderContent = "Materi sedang dalam proses pengembangan. Silakan cek kembali nanti."

// SectionsFromContent splits a material's legacy content into sections at
// "## " headings. Text before the first heading becomes a section titled
// after the material. A material without content gets a placeholder section.
func SectionsFromContent(m Material) []Section {
	if strings.TrimSpace(m.Content) == "" {
		return []Section{{
			ID:      "default-content",
			Title:   "Konten Materi",
			Content: placeholderContent,
			Type:    "text",
			Order:   1,
		}}
	}

	var sections []Section
	var current *Section
	n := 0

	newSection := func(title string) {
		if current != nil {
			sections = append(sections, *current)
		}
		n++
		current = &Section{
			ID:    fmt.Sprintf("section-%d", n),
			Title: title,
			Type:  "text",
			Order: n,
		}
	}

	for _, line := range strings.Split(m.Content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "## "):
			newSection(strings.TrimPrefix(line, "## "))
		case line == "":
		case current == nil:
			newSection(m.Title)
			current.Content = line
		case current.Content == "":
			current.Content = line
		default:
			current.Content += "\n" + line
		}
	}
	if current != nil {
		sections = append(sections, *current)
	}

	return sections
}

// ValidateMaterialContent reports whether a material has readable content:
// legacy content or sections, and every section non-blank.
func ValidateMaterialContent(m Material) bool {
	if m.Content == "" && len(m.Sections) == 0 {
		return false
	}
	for _, s := range m.Sections {
		if strings.TrimSpace(s.Content) == "" {
			return false
		}
	}
	return true
}

func withSections(m Material) Material {
	if len(m.Sections) == 0 {
		m.Sections = SectionsFromContent(m)
	}
	return m
}
