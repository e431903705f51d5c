package models

import "time"

// AnalogyResult is the answer to an AnalogyQuery. Word is the best completion or
// nil when there is none; Candidates holds every completion, closest first.
type AnalogyResult struct {
	Word         *string             `json:"word"`
	Candidates   []string            `json:"candidates"`
	UnknownWords []string            `json:"unknown_words,omitempty"`
	Suggestions  map[string][]string `json:"suggestions,omitempty"`
	QueryTime    int64               `json:"query_time_ms"`
}

// Neighbor is a vocabulary word and its Euclidean distance from the query word.
type Neighbor struct {
	Word     string  `json:"word"`
	Distance float32 `json:"distance"`
}

// NeighborsResult lists the words closest to Word.
type NeighborsResult struct {
	Word      string     `json:"word"`
	Neighbors []Neighbor `json:"neighbors"`
	QueryTime int64      `json:"query_time_ms"`
}

// IndexStats describes the loaded index.
type IndexStats struct {
	Type         string `json:"type"`
	Trees        int    `json:"trees,omitempty"`
	LeafCapacity int    `json:"leaf_capacity,omitempty"`
	Nodes        int    `json:"nodes,omitempty"`
	Leaves       int    `json:"leaves,omitempty"`
	MaxDepth     int    `json:"max_depth,omitempty"`
	FromSnapshot bool   `json:"from_snapshot"`
}

// EngineStats describes the generation currently serving queries.
type EngineStats struct {
	Ready        bool       `json:"ready"`
	Generation   uint64     `json:"generation"`
	Source       string     `json:"source,omitempty"`
	Words        int        `json:"words"`
	Dimensions   int        `json:"dimensions"`
	Index        IndexStats `json:"index"`
	LoadedAt     time.Time  `json:"loaded_at,omitzero"`
	LoadTime     int64      `json:"load_time_ms"`
	BuildTime    int64      `json:"build_time_ms"`
	CacheEntries int        `json:"cache_entries"`
}

// StatusResponse is served by /api/v1/status.
type StatusResponse struct {
	Engine         EngineStats `json:"engine"`
	LogEntries     int64       `json:"log_entries"`
	DiskUsageBytes int64       `json:"disk_usage_bytes"`
}
