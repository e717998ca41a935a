package store

import "time"

// Record is the document form of a Point used by every store except
// Warp 10.
type Record struct {
	Timestamp time.Time         `json:"timestamp" bson:"timestamp"`
	ClassName string            `json:"class_name" bson:"class_name"`
	Labels    map[string]string `json:"labels" bson:"labels"`
	Value     int64             `json:"value" bson:"value"`
}

func (p Point) Record() Record {
	return Record{
		Timestamp: p.Timestamp.UTC(),
		ClassName: p.ClassName,
		Labels:    p.LabelMap(),
		Value:     p.Value,
	}
}
