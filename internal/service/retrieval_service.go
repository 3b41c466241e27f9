package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"colorix-agent-go/internal/model"
	"colorix-agent-go/pkg/embedding"
	"colorix-agent-go/pkg/es"
	"colorix-agent-go/pkg/llm"
	"colorix-agent-go/pkg/log"
)

const (
	// expansionMaxRunes 是改写查询的长度上限，超长视为模型跑偏，丢弃。
	expansionMaxRunes = 300

	// similarityFloor 是检索阶段的相似度下限。
	// 编排层不再二次过滤，低质命中在这里就被挡掉。
	similarityFloor = 0.15
)

const expansionPromptFormat = "You are a search query optimizer for a printing company knowledge base.\n" +
	"Rephrase the following customer question into a clear, keyword-rich search query.\n" +
	"Include relevant synonyms and related terms.\n" +
	"Return ONLY the rephrased query, nothing else.\n\n" +
	"Customer question: %s"

// RetrievalService 负责知识库检索：HyDE 查询改写 + 多查询合并去重。
type RetrievalService interface {
	// Retrieve 返回至多 topK 个知识块，按相似度降序、无重复 ID，
	// 相似度保留 4 位小数。queryVec 是上游已算好的原始查询向量。
	Retrieve(ctx context.Context, query string, queryVec []float32, topK int) []model.RetrievedChunk
	// FormatContext 将知识块渲染为提示词中的知识段落，并返回平均相似度。
	FormatContext(chunks []model.RetrievedChunk) (string, float64)
}

type retrievalService struct {
	embeddingClient embedding.Client
	searcher        es.Searcher
	gateway         llm.Gateway
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
func NewRetrievalService(embeddingClient embedding.Client, searcher es.Searcher, gateway llm.Gateway) RetrievalService {
	return &retrievalService{
		embeddingClient: embeddingClient,
		searcher:        searcher,
		gateway:         gateway,
	}
}

// Retrieve 先用模型改写查询，再对原始与改写后的查询分别检索，
// 按块 ID 去重时保留两路中的较高相似度。检索后端故障表现为空结果。
func (s *retrievalService) Retrieve(ctx context.Context, query string, queryVec []float32, topK int) []model.RetrievedChunk {
	expanded := s.expandQuery(ctx, query)

	best := make(map[string]es.Hit)
	merge := func(hits []es.Hit) {
		for _, h := range hits {
			if prev, ok := best[h.ID]; !ok || h.Similarity > prev.Similarity {
				best[h.ID] = h
			}
		}
	}

	merge(s.searcher.Search(ctx, queryVec, topK, similarityFloor))

	if expanded != query {
		// 改写查询需要单独向量化；向量化内部降级为零向量，不会失败。
		expandedVec, err := s.embeddingClient.CreateEmbedding(ctx, expanded)
		if err == nil {
			merge(s.searcher.Search(ctx, expandedVec, topK, similarityFloor))
		}
	}

	merged := make([]es.Hit, 0, len(best))
	for _, h := range best {
		merged = append(merged, h)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}

	chunks := make([]model.RetrievedChunk, 0, len(merged))
	for _, h := range merged {
		chunks = append(chunks, model.RetrievedChunk{
			ID:         h.ID,
			Content:    h.Content,
			Section:    h.Section,
			Similarity: round4(h.Similarity),
		})
	}

	if len(chunks) > 0 {
		log.Infof("[Retrieval] 检索到 %d 个知识块 | best=%.3f", len(chunks), chunks[0].Similarity)
	} else {
		log.Warnf("[Retrieval] 未检索到知识块: %.50q", query)
	}
	return chunks
}

// expandQuery 让模型把客户问题改写成适合检索的查询。
// 改写失败或产出不可信（空/超长）时静默退回原始查询。
func (s *retrievalService) expandQuery(ctx context.Context, query string) string {
	prompt := fmt.Sprintf(expansionPromptFormat, query)
	rephrased, err := s.gateway.Invoke(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: prompt},
		{Role: llm.RoleUser, Content: query},
	}, "")
	if err != nil {
		log.Warnf("[Retrieval] 查询改写失败: %v", err)
		return query
	}

	rephrased = strings.TrimSpace(rephrased)
	if rephrased == "" || utf8.RuneCountInString(rephrased) >= expansionMaxRunes {
		return query
	}
	log.Infof("[Retrieval] 查询改写: %q -> %q", query, rephrased)
	return rephrased
}

// FormatContext 将知识块渲染为 "[Source i — section]" 段落。
func (s *retrievalService) FormatContext(chunks []model.RetrievedChunk) (string, float64) {
	if len(chunks) == 0 {
		return "No relevant information found in the knowledge base.", 0.0
	}

	parts := make([]string, 0, len(chunks))
	var sum float64
	for i, c := range chunks {
		section := c.Section
		if section == "" {
			section = "Knowledge Base"
		}
		parts = append(parts, fmt.Sprintf("[Source %d — %s]\n%s", i+1, section, c.Content))
		sum += c.Similarity
	}
	return strings.Join(parts, "\n\n---\n\n"), round4(sum / float64(len(chunks)))
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
