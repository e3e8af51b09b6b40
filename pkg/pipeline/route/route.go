// Package route computes where a bronze topic's rows end up: the silver topic
// they are published to and the lake table they are routed to.
package route

import "strings"

// NameStyle selects how a silver topic name is derived from a bronze topic.
type NameStyle string

const (
	// NameStyleFull keeps the whole source name, minus the strip prefix.
	NameStyleFull NameStyle = "full"
	// NameStyleLastSegment keeps only what follows the last ".".
	NameStyleLastSegment NameStyle = "last-segment"
)

// DefaultNamespace is used for table identifiers when no namespace is configured.
const DefaultNamespace = "silver"

// rawMarker prefixes bronze topics that carry raw CDC events for a single table.
const rawMarker = "raw-"

// ParseNameStyle is case-insensitive; anything other than "last-segment" is NameStyleFull.
func ParseNameStyle(s string) NameStyle {
	if strings.EqualFold(strings.TrimSpace(s), string(NameStyleLastSegment)) {
		return NameStyleLastSegment
	}
	return NameStyleFull
}

// DestinationTopic returns the silver topic for a bronze topic. With
// NameStyleLastSegment a name ending in "." is kept whole.
func DestinationTopic(source, destPrefix, stripPrefix string, style NameStyle) string {
	if style == NameStyleLastSegment {
		if i := strings.LastIndex(source, "."); i >= 0 && i+1 < len(source) {
			return destPrefix + source[i+1:]
		}
		return destPrefix + source
	}

	name := source
	if strings.TrimSpace(stripPrefix) != "" {
		name = strings.TrimPrefix(name, stripPrefix)
	}
	return destPrefix + name
}

// DeriveTableName returns the source table a bronze topic carries, e.g.
// "raw-TB_CB_LPCO" carries "TB_CB_LPCO". Topics without the raw- marker are
// returned as is, minus the strip prefix.
func DeriveTableName(source, stripPrefix string) string {
	name := source
	if strings.TrimSpace(stripPrefix) != "" {
		name = strings.TrimPrefix(name, stripPrefix)
	}
	return strings.TrimPrefix(name, rawMarker)
}

// RecordName turns a table name into a valid Avro record name by replacing
// every character outside [A-Za-z0-9_] with "_" and prefixing a leading digit.
func RecordName(table string) string {
	var b strings.Builder
	for i, r := range table {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// TableIdentifier returns the namespaced, lowercase lake table identifier.
func TableIdentifier(namespace, table string) string {
	if strings.TrimSpace(namespace) == "" {
		namespace = DefaultNamespace
	}
	return namespace + "." + strings.ToLower(table)
}
