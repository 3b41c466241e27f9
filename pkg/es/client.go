// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"colorix-agent-go/internal/config"
	"colorix-agent-go/internal/model"
	"colorix-agent-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// Hit 是一次相似度检索的命中结果，similarity 已归一到 [0,1]。
type Hit struct {
	ID         string
	Content    string
	Section    string
	Similarity float64
}

// Searcher 定义了向量相似度检索的边界。
// 后端故障在此边界被吞掉并记录日志，对调用方表现为空结果。
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int, threshold float64) []Hit
}

// InitES 初始化 Elasticsearch 客户端并确保索引存在。
func InitES(esCfg config.ElasticsearchConfig, dims int) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName, dims)
}

// createIndexIfNotExists 检查知识库索引是否存在，如果不存在则创建它。
// 向量维度跟随 embedding 配置，相似度用 cosine。
func createIndexIfNotExists(indexName string, dims int) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_key": { "type": "keyword" },
				"object_name": { "type": "keyword" },
				"chunk_id": { "type": "integer" },
				"section": { "type": "keyword" },
				"text_content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, dims)

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// IndexChunk 将单个知识块索引到 Elasticsearch。
func IndexChunk(ctx context.Context, indexName string, doc model.EsChunk) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: doc.ChunkKey,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引知识块到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index chunk")
	}
	return nil
}

// DeleteByObjectName 删除某个源文档的全部知识块（重复摄取前的清理）。
func DeleteByObjectName(ctx context.Context, indexName, objectName string) error {
	query := fmt.Sprintf(`{"query":{"term":{"object_name":"%s"}}}`, objectName)
	res, err := ESClient.DeleteByQuery(
		[]string{indexName},
		strings.NewReader(query),
		ESClient.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("delete by query returned an error: %s", res.String())
	}
	return nil
}

// knnSearcher 基于 dense_vector kNN 实现 Searcher。
type knnSearcher struct {
	client    *elasticsearch.Client
	indexName string
}

// NewSearcher 创建一个新的 Searcher 实例。
func NewSearcher(client *elasticsearch.Client, indexName string) Searcher {
	return &knnSearcher{client: client, indexName: indexName}
}

// Search 执行 kNN 相似度检索。阈值过滤在 knn 子句内完成；
// 任何后端错误都在这里收敛为空结果（记录日志，不向上传播）。
func (s *knnSearcher) Search(ctx context.Context, vector []float32, topK int, threshold float64) []Hit {
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": topK * 10,
			"similarity":     threshold,
		},
		"size":    topK,
		"_source": []string{"chunk_key", "section", "text_content"},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		log.Errorf("[ESSearcher] 序列化检索请求失败: %v", err)
		return nil
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.indexName),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("[ESSearcher] 向 Elasticsearch 发送检索请求失败: %v", err)
		return nil
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[ESSearcher] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsChunk `json:"_source"`
				Score  float64       `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		log.Errorf("[ESSearcher] 解析 Elasticsearch 响应失败: %v", err)
		return nil
	}

	hits := make([]Hit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		// cosine 的 _score 已在 [0,1]，直接作为相似度；低于阈值的兜底过滤。
		if h.Score < threshold {
			continue
		}
		hits = append(hits, Hit{
			ID:         h.Source.ChunkKey,
			Content:    h.Source.TextContent,
			Section:    h.Source.Section,
			Similarity: h.Score,
		})
	}
	return hits
}
