package store

import (
	"encoding/json"
	"fmt"
	"sort"
)

// NormalizeLabels returns labels as a sorted set without duplicates or empty strings.
func NormalizeLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// MergeLabels returns the union of two label sets.
func MergeLabels(current, incoming []string) []string {
	return NormalizeLabels(append(append([]string{}, current...), incoming...))
}

// MergeProperties returns current overlaid with incoming; incoming keys win.
func MergeProperties(current, incoming map[string]string) map[string]string {
	out := make(map[string]string, len(current)+len(incoming))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

// MarshalMetadata encodes labels and properties for storage.
func MarshalMetadata(labels []string, properties map[string]string) (string, string, error) {
	if labels == nil {
		labels = []string{}
	}
	if properties == nil {
		properties = map[string]string{}
	}
	l, err := json.Marshal(NormalizeLabels(labels))
	if err != nil {
		return "", "", fmt.Errorf("encode labels: %w", err)
	}
	p, err := json.Marshal(properties)
	if err != nil {
		return "", "", fmt.Errorf("encode properties: %w", err)
	}
	return string(l), string(p), nil
}

// UnmarshalMetadata decodes labels and properties written by MarshalMetadata.
func UnmarshalMetadata(labels, properties string) ([]string, map[string]string, error) {
	l := []string{}
	if labels != "" {
		if err := json.Unmarshal([]byte(labels), &l); err != nil {
			return nil, nil, fmt.Errorf("decode labels: %w", err)
		}
	}
	p := map[string]string{}
	if properties != "" {
		if err := json.Unmarshal([]byte(properties), &p); err != nil {
			return nil, nil, fmt.Errorf("decode properties: %w", err)
		}
	}
	if p == nil {
		p = map[string]string{}
	}
	return NormalizeLabels(l), p, nil
}
