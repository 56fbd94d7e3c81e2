package falkordb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// parseReply decodes a verbose GRAPH.QUERY reply: [header, rows, stats] for
// queries that return data, [stats] for queries that do not.
func parseReply(res any) (QueryResult, error) {
	var qr QueryResult

	r, ok := res.([]any)
	if !ok {
		return qr, fmt.Errorf("unexpected response type: %T", res)
	}

	switch len(r) {
	case 3:
		header, ok := r[0].([]any)
		if !ok {
			return qr, fmt.Errorf("unexpected header type: %T", r[0])
		}
		qr.Header = make([]string, len(header))
		for i, h := range header {
			// Compact replies encode columns as [type, name].
			if pair, ok := h.([]any); ok && len(pair) == 2 {
				h = pair[1]
			}
			qr.Header[i] = fmt.Sprint(h)
		}

		rows, ok := r[1].([]any)
		if !ok {
			return qr, fmt.Errorf("unexpected rows type: %T", r[1])
		}
		qr.Rows = make([][]any, 0, len(rows))
		for _, row := range rows {
			vals, ok := row.([]any)
			if !ok {
				return qr, fmt.Errorf("unexpected row type: %T", row)
			}
			qr.Rows = append(qr.Rows, vals)
		}
		qr.Statistics = stringsOf(r[2])
	case 1:
		qr.Statistics = stringsOf(r[0])
	default:
		return qr, fmt.Errorf("unexpected response length: %d", len(r))
	}

	return qr, nil
}

func stringsOf(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = fmt.Sprint(s)
	}
	return out
}

// FormatValue renders a reply value. Nodes and edges arrive as lists of
// [key, value] pairs and render as their labels and properties.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		if entity, ok := asEntity(x); ok {
			return entity
		}
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = FormatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[any]any:
		keys := make([]string, 0, len(x))
		vals := make(map[string]string, len(x))
		for k, val := range x {
			ks := FormatValue(k)
			keys = append(keys, ks)
			vals[ks] = FormatValue(val)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + vals[k]
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(x)
	}
}

// asEntity recognizes the verbose node/edge encoding
// [["id", n], ["labels", [...]] or ["type", t], ["properties", [[k, v]...]]].
func asEntity(items []any) (string, bool) {
	fields := make(map[string]any, len(items))
	for _, item := range items {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return "", false
		}
		key, ok := pair[0].(string)
		if !ok {
			return "", false
		}
		fields[key] = pair[1]
	}
	props, ok := fields["properties"].([]any)
	if !ok {
		return "", false
	}

	var sb strings.Builder
	if labels, ok := fields["labels"].([]any); ok {
		sb.WriteString("(")
		for _, l := range labels {
			sb.WriteString(":" + FormatValue(l))
		}
	} else if relType, ok := fields["type"]; ok {
		sb.WriteString("[:" + FormatValue(relType))
	} else {
		return "", false
	}

	if len(props) > 0 {
		parts := make([]string, 0, len(props))
		for _, p := range props {
			pair, ok := p.([]any)
			if !ok || len(pair) != 2 {
				continue
			}
			parts = append(parts, FormatValue(pair[0])+": "+FormatValue(pair[1]))
		}
		sb.WriteString(" {" + strings.Join(parts, ", ") + "}")
	}

	if _, ok := fields["labels"]; ok {
		sb.WriteString(")")
	} else {
		sb.WriteString("]")
	}
	return sb.String(), true
}

// Table renders header and the first limit rows as pipe-separated lines.
// A limit of zero or less renders every row.
func (qr QueryResult) Table(limit int) string {
	rows := qr.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	var sb strings.Builder
	if len(qr.Header) > 0 {
		sb.WriteString(strings.Join(qr.Header, " | "))
	}
	for _, row := range rows {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = FormatValue(v)
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Join(parts, " | "))
	}
	return sb.String()
}
