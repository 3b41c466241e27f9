// Package pipeline 实现了知识库文档的摄取流程：
// MinIO 下载 → Tika 提取文本 → 切块 → 向量化 → 入库 + 索引到 ES。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"colorix-agent-go/internal/config"
	"colorix-agent-go/internal/model"
	"colorix-agent-go/internal/repository"
	"colorix-agent-go/pkg/embedding"
	"colorix-agent-go/pkg/es"
	"colorix-agent-go/pkg/log"
	"colorix-agent-go/pkg/storage"
	"colorix-agent-go/pkg/tasks"
	"colorix-agent-go/pkg/tika"

	"github.com/minio/minio-go/v7"
)

// 切块参数。重叠保证跨块边界的语义连续。
const (
	chunkSize    = 1000
	chunkOverlap = 100
)

// sectionMarkers 是知识库文档中章节标题行的前缀集合（大写比较）。
// 命中后该章节名会作为后续分块的 section 元数据，用于回复中的来源标注。
var sectionMarkers = []string{
	"COMPANY", "PRODUCT", "PRICING", "DELIVERY", "PAYMENT",
	"QUALITY", "HOW TO", "CONTACT", "FAQ", "SIGNAGE",
	"BRAND", "EVENT", "FLYER", "POSTER", "BANNER", "STAMP",
	"BROCHURE", "ENVELOPE", "FOLDER", "MERCHANDISE", "OVERVIEW",
	"SECTION",
}

// Processor 封装了文档摄取的所有依赖和逻辑。
type Processor struct {
	tikaClient      *tika.Client
	embeddingClient embedding.Client
	esCfg           config.ElasticsearchConfig
	minioCfg        config.MinIOConfig
	embeddingCfg    config.EmbeddingConfig
	chunkRepo       repository.ChunkRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	tikaClient *tika.Client,
	embeddingClient embedding.Client,
	esCfg config.ElasticsearchConfig,
	minioCfg config.MinIOConfig,
	embeddingCfg config.EmbeddingConfig,
	chunkRepo repository.ChunkRepository,
) *Processor {
	return &Processor{
		tikaClient:      tikaClient,
		embeddingClient: embeddingClient,
		esCfg:           esCfg,
		minioCfg:        minioCfg,
		embeddingCfg:    embeddingCfg,
		chunkRepo:       chunkRepo,
	}
}

// Process 执行一个摄取任务。重复执行同一 objectName 是幂等的：
// 写入前清理该文档既有的分块记录与索引。
func (p *Processor) Process(ctx context.Context, task tasks.IngestionTask) error {
	log.Infof("[Processor] 开始摄取文档, Object: %s, RequestedBy: %s", task.ObjectName, task.RequestedBy)

	existing, err := p.chunkRepo.FindByObjectName(ctx, task.ObjectName)
	if err != nil {
		return fmt.Errorf("查询既有分块记录失败: %w", err)
	}
	if len(existing) > 0 && !task.Replace {
		log.Infof("[Processor] 文档 '%s' 已摄取 (%d 个分块) 且未要求覆盖, 跳过", task.ObjectName, len(existing))
		return nil
	}

	// 1. 从 MinIO 下载源文档
	object, err := storage.MinioClient.GetObject(ctx, p.minioCfg.BucketName, task.ObjectName, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("从 MinIO 下载文档失败: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(object)
	if err != nil {
		return fmt.Errorf("读取 MinIO 对象流失败: %w", err)
	}
	if size == 0 {
		return errors.New("文档内容为空")
	}
	log.Infof("[Processor] 文档下载成功, 大小: %d 字节", size)

	// 2. 使用 Tika 提取文本
	textContent, err := p.tikaClient.ExtractText(bytes.NewReader(buf.Bytes()), task.ObjectName)
	if err != nil {
		return fmt.Errorf("使用 Tika 提取文本失败: %w", err)
	}
	if textContent == "" {
		return errors.New("提取的文本内容为空")
	}
	log.Infof("[Processor] 文本提取成功, 长度: %d 字符", utf8.RuneCountInString(textContent))

	// 3. 切块并标注章节
	chunks := annotateSections(splitText(textContent, chunkSize, chunkOverlap))
	if len(chunks) == 0 {
		return errors.New("未生成任何文本分块")
	}
	log.Infof("[Processor] 切块完成, 共 %d 个分块", len(chunks))

	// 4. 清理旧数据（MySQL 记录 + ES 索引）
	if err := p.chunkRepo.DeleteByObjectName(ctx, task.ObjectName); err != nil {
		return fmt.Errorf("清理既有分块记录失败: %w", err)
	}
	if err := es.DeleteByObjectName(ctx, p.esCfg.IndexName, task.ObjectName); err != nil {
		log.Warnf("[Processor] 清理既有 ES 索引失败 (object=%s): %v", task.ObjectName, err)
	}

	// 5. 入库
	records := make([]*model.KnowledgeChunk, 0, len(chunks))
	for i, c := range chunks {
		records = append(records, &model.KnowledgeChunk{
			ObjectName:   task.ObjectName,
			ChunkID:      i,
			Section:      c.section,
			TextContent:  c.content,
			ModelVersion: p.embeddingCfg.Model,
		})
	}
	if err := p.chunkRepo.BatchCreate(ctx, records); err != nil {
		return fmt.Errorf("批量保存分块记录失败: %w", err)
	}

	// 6. 向量化并索引到 ES
	for i, rec := range records {
		vector, err := p.embeddingClient.CreateEmbedding(ctx, rec.TextContent)
		if err != nil {
			return fmt.Errorf("分块 %d 向量化失败: %w", rec.ChunkID, err)
		}

		esDoc := model.EsChunk{
			ChunkKey:    fmt.Sprintf("%s_%d", rec.ObjectName, rec.ChunkID),
			ObjectName:  rec.ObjectName,
			ChunkID:     rec.ChunkID,
			Section:     rec.Section,
			TextContent: rec.TextContent,
			Vector:      vector,
		}
		if err := es.IndexChunk(ctx, p.esCfg.IndexName, esDoc); err != nil {
			return fmt.Errorf("索引分块 %d 到 Elasticsearch 失败: %w", rec.ChunkID, err)
		}
		log.Infof("[Processor] 分块 %d/%d 索引成功", i+1, len(records))
	}

	log.Infof("[Processor] 文档摄取完成, Object: %s, 分块数: %d", task.ObjectName, len(records))
	return nil
}

type sectionedChunk struct {
	content string
	section string
}

// annotateSections 扫描每个分块的前几行，命中章节标记前缀时
// 更新当前章节名；后续分块沿用最近一次命中的章节。
func annotateSections(raw []string) []sectionedChunk {
	result := make([]sectionedChunk, 0, len(raw))
	currentSection := "General"

	for _, chunk := range raw {
		for _, line := range strings.Split(chunk, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || utf8.RuneCountInString(line) >= 80 {
				continue
			}
			upper := strings.ToUpper(line)
			matched := false
			for _, marker := range sectionMarkers {
				if strings.HasPrefix(upper, marker) {
					runes := []rune(line)
					if len(runes) > 60 {
						runes = runes[:60]
					}
					currentSection = string(runes)
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		result = append(result, sectionedChunk{content: chunk, section: currentSection})
	}
	return result
}

// splitText 将长文本按指定大小和重叠切分（按 rune 计数）。
func splitText(text string, size, overlap int) []string {
	if size <= overlap {
		return simpleSplit(text, size)
	}

	var chunks []string
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func simpleSplit(text string, size int) []string {
	var chunks []string
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
