// Package reference derives short product codes from garment type names.
//
// Codes look like "CL-4821": a prefix picked from the garment type and the
// last four digits of the creation timestamp in milliseconds. They are display
// identifiers only; two codes generated in the same millisecond collide.
package reference

import (
	"fmt"
	"strings"
	"time"
)

// DefaultPrefix is used when no keyword matches.
const DefaultPrefix = "M"

type rule struct {
	keywords []string
	prefix   string
}

// Order matters: "calça" must win over shorter keywords that could also match.
var rules = []rule{
	{keywords: []string{"calça", "calca"}, prefix: "CL"},
	{keywords: []string{"camisa", "blusa"}, prefix: "C"},
	{keywords: []string{"top", "cropped"}, prefix: "T"},
	{keywords: []string{"conjunto"}, prefix: "CJ"},
	{keywords: []string{"vestido"}, prefix: "V"},
	{keywords: []string{"short", "bermuda"}, prefix: "S"},
	{keywords: []string{"saia"}, prefix: "SK"},
}

// Prefix classifies a garment type by case-insensitive substring match.
func Prefix(garmentType string) string {
	name := strings.ToLower(garmentType)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(name, kw) {
				return r.prefix
			}
		}
	}
	return DefaultPrefix
}

// Generate builds a reference for garmentType stamped with the current time.
func Generate(garmentType string) string {
	return GenerateAt(garmentType, time.Now())
}

// GenerateAt builds a reference using t as the timestamp source.
func GenerateAt(garmentType string, t time.Time) string {
	return fmt.Sprintf("%s-%04d", Prefix(garmentType), t.UnixMilli()%10000)
}
