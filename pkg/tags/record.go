// Package tags parses delimited tag vocabulary files into records.
package tags

// Category is the semantic type of a tag.
type Category int

const (
	Unknown Category = iota
	General
	Artist
	Copyright
	Character
	Meta
)

// categoryCodes maps the numeric codes found in vocabulary files to categories.
var categoryCodes = map[int]Category{
	0: General,
	1: Artist,
	3: Copyright,
	4: Character,
	5: Meta,
}

var categoryNames = map[Category]string{
	Unknown:   "unknown",
	General:   "general",
	Artist:    "artist",
	Copyright: "copyright",
	Character: "character",
	Meta:      "meta",
}

// CategoryFromCode maps a file category code to a Category. Codes without a
// mapping yield Unknown.
func CategoryFromCode(code int) Category {
	if c, ok := categoryCodes[code]; ok {
		return c
	}
	return Unknown
}

// Code returns the file code for c, or -1 for Unknown.
func (c Category) Code() int {
	for code, cat := range categoryCodes {
		if cat == c {
			return code
		}
	}
	return -1
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return categoryNames[Unknown]
}

// NoCode marks a Record whose category column was absent or not a number.
const NoCode = -1

// Record is one vocabulary entry.
type Record struct {
	Name     string
	Category Category
	// Code is the category number as written in the file, NoCode when missing.
	Code       int
	Popularity int
	Aliases    []string
	// Extra holds trailing columns, passed through untouched.
	Extra []string
}
