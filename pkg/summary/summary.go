// Package summary renders PokeAPI pokemon records as display text.
package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pokelookout/poke-lookout/pkg/client"
)

// ErrIncompleteRecord is returned for records without a name or id.
var ErrIncompleteRecord = errors.New("record has no name or id")

// pokemon is the part of a pokemon record the summary shows.
type pokemon struct {
	ID     *int   `json:"id"`
	Name   string `json:"name"`
	Height int    `json:"height"` // decimetres
	Weight int    `json:"weight"` // hectograms
	Types  []struct {
		Slot int `json:"slot"`
		Type struct {
			Name string `json:"name"`
		} `json:"type"`
	} `json:"types"`
	Abilities []struct {
		IsHidden bool `json:"is_hidden"`
		Slot     int  `json:"slot"`
		Ability  struct {
			Name string `json:"name"`
		} `json:"ability"`
	} `json:"abilities"`
	Stats []struct {
		BaseStat int `json:"base_stat"`
		Stat     struct {
			Name string `json:"name"`
		} `json:"stat"`
	} `json:"stats"`
}

// Summarize renders one pokemon record.
func Summarize(record client.Record) (string, error) {
	p, err := decode(record)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (#%d)\n", DisplayName(p.Name), *p.ID)
	fmt.Fprintf(&b, "Height: %.1f m\n", float64(p.Height)/10)
	fmt.Fprintf(&b, "Weight: %.1f kg\n", float64(p.Weight)/10)

	sort.SliceStable(p.Types, func(i, j int) bool { return p.Types[i].Slot < p.Types[j].Slot })
	types := make([]string, 0, len(p.Types))
	for _, t := range p.Types {
		types = append(types, DisplayName(t.Type.Name))
	}
	fmt.Fprintf(&b, "Types: %s\n", joinOrNone(types))

	sort.SliceStable(p.Abilities, func(i, j int) bool { return p.Abilities[i].Slot < p.Abilities[j].Slot })
	abilities := make([]string, 0, len(p.Abilities))
	for _, a := range p.Abilities {
		name := DisplayName(a.Ability.Name)
		if a.IsHidden {
			name += " (hidden)"
		}
		abilities = append(abilities, name)
	}
	fmt.Fprintf(&b, "Abilities: %s", joinOrNone(abilities))

	if len(p.Stats) > 0 {
		b.WriteString("\nBase stats:")
		total := 0
		for _, s := range p.Stats {
			fmt.Fprintf(&b, "\n  %-16s %3d", DisplayName(s.Stat.Name), s.BaseStat)
			total += s.BaseStat
		}
		fmt.Fprintf(&b, "\n  %-16s %3d", "Total", total)
	}

	return b.String(), nil
}

// DisplayName turns an API slug like "special-attack" into "Special Attack".
func DisplayName(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func decode(record client.Record) (*pokemon, error) {
	if record == nil {
		return nil, ErrIncompleteRecord
	}

	// Round-trip through JSON to get typed access to the opaque record.
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	var p pokemon
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode pokemon: %w", err)
	}

	if p.Name == "" || p.ID == nil {
		return nil, ErrIncompleteRecord
	}
	return &p, nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
