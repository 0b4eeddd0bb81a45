package entities

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PascalCase splits s into words at separators and lower-to-upper case
// boundaries and capitalizes each word: "menuItem" and "menu_item" both
// become "MenuItem", "__unstableBase" becomes "UnstableBase".
func PascalCase(s string) string {
	// Casers are stateful, so each call gets its own.
	caser := cases.Title(language.Und)
	var b strings.Builder
	for _, w := range splitWords(s) {
		b.WriteString(caser.String(w))
	}
	return b.String()
}

func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
			continue
		case unicode.IsUpper(r) && i > 0 && len(cur) > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// MethodName returns the shortcut name for an entity method:
// prefix, then the kind unless it is "root", then the entity name. The
// plural form uses the entity's plural when configured and appends "s"
// otherwise.
//
//	MethodName(e{root, postType}, "get", false)        // getPostType
//	MethodName(e{root, taxonomy}, "get", true)         // getTaxonomies
//	MethodName(e{postType, post}, "save", false)       // savePostTypePost
func MethodName(e Entity, prefix string, plural bool) string {
	kindPrefix := ""
	if e.Kind != "root" {
		kindPrefix = PascalCase(e.Kind)
	}
	suffix := PascalCase(e.Name)
	if plural {
		if e.Plural != "" {
			suffix = PascalCase(e.Plural)
		} else {
			suffix += "s"
		}
	}
	return prefix + kindPrefix + suffix
}
