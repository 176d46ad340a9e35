package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"bibliotech/internal/models"

	"gopkg.in/yaml.v2"
)

// LoadCatalogSeed reads a catalog seed file and checks that every book
// references a declared author and category.
func LoadCatalogSeed(path string) (*models.CatalogSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed models.CatalogSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse catalog seed: %w", err)
	}

	if err := ValidateCatalogSeed(&seed); err != nil {
		return nil, err
	}
	return &seed, nil
}

func ValidateCatalogSeed(seed *models.CatalogSeed) error {
	authors := make(map[string]bool, len(seed.Authors))
	for _, a := range seed.Authors {
		if strings.TrimSpace(a.Name) == "" {
			return errors.New("author with empty name")
		}
		authors[a.Name] = true
	}
	categories := make(map[string]bool, len(seed.Categories))
	for _, c := range seed.Categories {
		categories[c] = true
	}

	isbns := make(map[string]bool)
	for _, b := range seed.Books {
		if strings.TrimSpace(b.Title) == "" {
			return errors.New("book with empty title")
		}
		if b.Author != "" && !authors[b.Author] {
			return fmt.Errorf("book '%s' references unknown author '%s'", b.Title, b.Author)
		}
		if b.Category != "" && !categories[b.Category] {
			return fmt.Errorf("book '%s' references unknown category '%s'", b.Title, b.Category)
		}
		if b.Copies < 0 {
			return fmt.Errorf("book '%s' has negative copies", b.Title)
		}
		if b.ISBN != "" {
			if isbns[b.ISBN] {
				return fmt.Errorf("duplicate isbn found: %s", b.ISBN)
			}
			isbns[b.ISBN] = true
		}
	}
	return nil
}
