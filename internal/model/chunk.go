package model

// KnowledgeChunk 对应于数据库中的 knowledge_chunks 表，
// 记录知识库文档切块的入库状态（向量本身只存 Elasticsearch）。
type KnowledgeChunk struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ObjectName   string `gorm:"type:varchar(255);not null;index" json:"objectName"`
	ChunkID      int    `gorm:"not null" json:"chunkId"`
	Section      string `gorm:"type:varchar(64)" json:"section"`
	TextContent  string `gorm:"type:text" json:"textContent"`
	ModelVersion string `gorm:"type:varchar(64)" json:"modelVersion"`
}

func (KnowledgeChunk) TableName() string {
	return "knowledge_chunks"
}

// EsChunk 代表存储在 Elasticsearch 中的知识块文档结构。
type EsChunk struct {
	ChunkKey    string    `json:"chunk_key"` // 唯一标识：objectName_chunkId
	ObjectName  string    `json:"object_name"`
	ChunkID     int       `json:"chunk_id"`
	Section     string    `json:"section"`
	TextContent string    `json:"text_content"`
	Vector      []float32 `json:"vector"`
}

// RetrievedChunk 是一次检索命中的知识块，仅在请求期间存在，不持久化。
// Similarity 已归一到 [0,1] 并在检索层四舍五入到 4 位小数。
type RetrievedChunk struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Section    string  `json:"section"`
	Similarity float64 `json:"similarity"`
}
