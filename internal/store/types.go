package store

import (
	"context"
	"sort"
	"time"
)

type Label struct {
	Key   string `json:"key" bson:"key"`
	Value string `json:"value" bson:"value"`
}

// Point is one timestamped, labelled reading. Labels are sorted by key.
type Point struct {
	Timestamp time.Time
	ClassName string
	Labels    []Label
	Value     int64
}

// NewLabels returns m as labels sorted by key.
func NewLabels(m map[string]string) []Label {
	labels := make([]Label, 0, len(m))
	for k, v := range m {
		labels = append(labels, Label{Key: k, Value: v})
	}
	sort.Slice(labels, func(i, j int) bool {
		return labels[i].Key < labels[j].Key
	})
	return labels
}

// LabelMap is the inverse of NewLabels.
func (p Point) LabelMap() map[string]string {
	m := make(map[string]string, len(p.Labels))
	for _, l := range p.Labels {
		m[l.Key] = l.Value
	}
	return m
}

type Writer interface {
	Write(ctx context.Context, points []Point) error
	Close() error
	Name() string
}
