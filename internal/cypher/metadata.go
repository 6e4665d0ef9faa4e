package cypher

import (
	"regexp"
	"strings"
)

// Direction of a parsed relationship, resolved so that From is always the
// semantic source regardless of lexical order.
type Direction string

const (
	DirectionOutgoing   Direction = "Outgoing"
	DirectionIncoming   Direction = "Incoming"
	DirectionUndirected Direction = "Undirected"
)

// ColumnRole classifies what a result column represents.
type ColumnRole string

const (
	RoleIdentifier ColumnRole = "Identifier"
	RoleAttribute  ColumnRole = "Attribute"
	RoleMetric     ColumnRole = "Metric"
	RoleCategory   ColumnRole = "Category"
	RoleTimestamp  ColumnRole = "Timestamp"
	RoleComputed   ColumnRole = "Computed"
)

// ParsedPattern is the human-readable summary of a query's graph shape.
type ParsedPattern struct {
	Description string `json:"description"`
	Raw         string `json:"raw"`
}

// NodeDescriptor is a node token recovered from the match section. When the
// token carries no label the alias itself is used as a pseudo-label and
// InferredLabel is set.
type NodeDescriptor struct {
	Alias         string   `json:"alias"`
	Labels        []string `json:"labels"`
	Position      int      `json:"position"`
	InferredLabel bool     `json:"inferredLabel,omitempty"`
}

// RelationshipDescriptor is a relationship token paired with its endpoint
// aliases.
type RelationshipDescriptor struct {
	Type      string    `json:"type"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Direction Direction `json:"direction"`
}

// ColumnDescriptor describes one output column of a query.
type ColumnDescriptor struct {
	Name         string     `json:"name"`
	Alias        string     `json:"alias,omitempty"`
	Property     string     `json:"property,omitempty"`
	DataType     string     `json:"dataType"`
	IsIdentifier bool       `json:"isIdentifier"`
	Role         ColumnRole `json:"role"`
	Description  string     `json:"description,omitempty"`
}

// QueryMetadata is the full introspection result for one query text.
type QueryMetadata struct {
	Pattern       ParsedPattern            `json:"pattern"`
	Nodes         []NodeDescriptor         `json:"nodes"`
	Relationships []RelationshipDescriptor `json:"relationships"`
	Columns       []ColumnDescriptor       `json:"columnDetails"`
	RowGrain      string                   `json:"rowGrain"`
}

var (
	matchSectionRe  = regexp.MustCompile(`(?is)\bMATCH\b(.*?)(?:\bWHERE\b|\bRETURN\b|\bWITH\b|\bORDER\b|\bLIMIT\b|\bSKIP\b|$)`)
	returnSectionRe = regexp.MustCompile(`(?is)\bRETURN\b(.*?)(?:\bORDER\b|\bLIMIT\b|\bSKIP\b|$)`)

	// nodeTokenRe matches (alias:Label1:Label2 {…}); the alias is required.
	nodeTokenRe = regexp.MustCompile("\\(\\s*([A-Za-z_][A-Za-z0-9_]*)\\s*((?::\\s*`?[A-Za-z_][A-Za-z0-9_]*`?)*)\\s*(?:\\{[^}]*\\})?\\s*\\)")

	// relTokenRe matches chain links: -[r:TYPE]->, <-[:TYPE]-, -->, --, etc.
	relTokenRe = regexp.MustCompile(`(<?)-(?:\[[^\]]*\])?-(>?)`)

	relTypeRe = regexp.MustCompile("\\[\\s*[A-Za-z_0-9]*\\s*:\\s*`?([A-Za-z_][A-Za-z0-9_]*)`?")

	functionCallRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.]*\s*\(`)
	asAliasRe      = regexp.MustCompile(`(?i)\s+AS\s+`)
	aggregateRe    = regexp.MustCompile(`(?i)\b(count|sum|avg|min|max|collect)\s*\(`)
)

// ParseMetadata heuristically recovers the graph shape of a Cypher query for
// UI rendering. It is a best-effort text scan, not a grammar: relationship
// tokens are paired positionally with the i-th and (i+1)-th node tokens in
// source order, which mis-pairs branching and multi-path patterns.
func ParseMetadata(cypherText string, columns []string) *QueryMetadata {
	text := stripComments(cypherText)

	matchSection := ""
	if m := matchSectionRe.FindStringSubmatch(text); m != nil {
		matchSection = m[1]
	}
	returnSection := ""
	if m := returnSectionRe.FindStringSubmatch(text); m != nil {
		returnSection = m[1]
	}

	order, nodes := parseNodes(matchSection)
	rels := parseRelationships(matchSection, order)

	md := &QueryMetadata{
		Nodes:         nodes,
		Relationships: rels,
		Columns:       parseColumns(columns),
	}
	md.Pattern = ParsedPattern{
		Description: describePattern(nodes, rels),
		Raw:         strings.TrimSpace(matchSection),
	}
	md.RowGrain = rowGrain(md, returnSection, columns)
	return md
}

// stripComments removes // line comments and /* */ block comments, leaving
// quoted literals intact.
func stripComments(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	const (
		stateCode = iota
		stateLineComment
		stateBlockComment
		stateSingle
		stateDouble
	)
	state := stateCode
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}
		switch state {
		case stateCode:
			switch {
			case c == '/' && next == '/':
				state = stateLineComment
				i++
			case c == '/' && next == '*':
				state = stateBlockComment
				i++
			default:
				if c == '\'' {
					state = stateSingle
				} else if c == '"' {
					state = stateDouble
				}
				b.WriteRune(c)
			}
		case stateLineComment:
			if c == '\n' {
				state = stateCode
				b.WriteRune('\n')
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateCode
				i++
			}
		case stateSingle:
			b.WriteRune(c)
			if c == '\\' && i+1 < len(runes) {
				b.WriteRune(next)
				i++
			} else if c == '\'' {
				state = stateCode
			}
		case stateDouble:
			b.WriteRune(c)
			if c == '\\' && i+1 < len(runes) {
				b.WriteRune(next)
				i++
			} else if c == '"' {
				state = stateCode
			}
		}
	}
	return b.String()
}

// parseNodes returns the raw alias sequence in source order (with duplicates,
// for positional relationship pairing) and the collapsed descriptor list.
func parseNodes(matchSection string) ([]string, []NodeDescriptor) {
	var order []string
	var nodes []NodeDescriptor
	seen := make(map[string]bool)

	for _, m := range nodeTokenRe.FindAllStringSubmatch(matchSection, -1) {
		alias := m[1]
		order = append(order, alias)
		if seen[alias] {
			continue
		}
		seen[alias] = true

		var labels []string
		inferred := false
		for _, l := range strings.Split(m[2], ":") {
			l = strings.Trim(strings.TrimSpace(l), "`")
			if l != "" {
				labels = append(labels, l)
			}
		}
		if len(labels) == 0 {
			labels = []string{alias}
			inferred = true
		}

		nodes = append(nodes, NodeDescriptor{
			Alias:         alias,
			Labels:        labels,
			Position:      len(nodes),
			InferredLabel: inferred,
		})
	}
	return order, nodes
}

// parseRelationships pairs the i-th relationship token with the i-th and
// (i+1)-th node aliases in source order. Incoming arrows swap the endpoints
// so From is always the semantic source.
func parseRelationships(matchSection string, order []string) []RelationshipDescriptor {
	var rels []RelationshipDescriptor
	for i, m := range relTokenRe.FindAllStringSubmatch(matchSection, -1) {
		if i+1 >= len(order) {
			break
		}

		relType := ""
		if tm := relTypeRe.FindStringSubmatch(m[0]); tm != nil {
			relType = tm[1]
		}

		left, right := m[1] == "<", m[2] == ">"
		from, to := order[i], order[i+1]
		var dir Direction
		switch {
		case left && !right:
			dir = DirectionIncoming
			from, to = to, from
		case right && !left:
			dir = DirectionOutgoing
		default:
			dir = DirectionUndirected
		}

		rels = append(rels, RelationshipDescriptor{
			Type:      relType,
			From:      from,
			To:        to,
			Direction: dir,
		})
	}
	return rels
}

func describePattern(nodes []NodeDescriptor, rels []RelationshipDescriptor) string {
	if len(nodes) == 0 {
		return "Query result"
	}
	if len(rels) == 0 {
		if len(nodes) > 1 {
			return "Multiple nodes"
		}
		if nodes[0].InferredLabel {
			return "Single node"
		}
		return strings.Join(nodes[0].Labels, ":")
	}
	labels := make([]string, 0, len(nodes))
	for _, n := range nodes {
		labels = append(labels, strings.Join(n.Labels, ":"))
	}
	return strings.Join(labels, " connected by ")
}

func parseColumns(names []string) []ColumnDescriptor {
	cols := make([]ColumnDescriptor, 0, len(names))
	for _, name := range names {
		col := ColumnDescriptor{
			Name:     name,
			DataType: "string",
			Role:     RoleAttribute,
		}

		if functionCallRe.MatchString(name) || asAliasRe.MatchString(name) {
			col.Role = RoleComputed
			cols = append(cols, col)
			continue
		}

		if parts := strings.SplitN(name, ".", 2); len(parts) == 2 && !strings.Contains(parts[1], ".") {
			col.Alias = strings.TrimSpace(parts[0])
			col.Property = strings.TrimSpace(parts[1])
		}
		if strings.EqualFold(col.Property, "id") {
			col.IsIdentifier = true
			col.Role = RoleIdentifier
		}
		cols = append(cols, col)
	}
	return cols
}

func rowGrain(md *QueryMetadata, returnSection string, columns []string) string {
	computed := false
	for _, c := range md.Columns {
		if c.Role == RoleComputed {
			computed = true
			break
		}
	}
	aggregated := aggregateRe.MatchString(returnSection)
	if !aggregated {
		for _, name := range columns {
			if aggregateRe.MatchString(name) {
				aggregated = true
				break
			}
		}
	}
	if aggregated || computed {
		return "One row per aggregation group"
	}

	if len(md.Relationships) > 0 {
		types := make([]string, 0, len(md.Relationships))
		for _, r := range md.Relationships {
			if r.Type != "" {
				types = append(types, r.Type)
			}
		}
		if len(types) > 0 {
			return "One row per " + strings.Join(types, "-") + " match"
		}
		// Every parsed relationship token was untyped, leaving no type list
		// to join.
		return "One row per relationship match"
	}

	if len(md.Nodes) == 1 && !md.Nodes[0].InferredLabel {
		return "One row per " + strings.Join(md.Nodes[0].Labels, ":")
	}
	return "One row per result"
}
