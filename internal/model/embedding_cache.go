package model

// EmbeddingCache is one cached embedding row, keyed by the fingerprint of the
// normalized content together with the model and task type that produced it.
type EmbeddingCache struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
