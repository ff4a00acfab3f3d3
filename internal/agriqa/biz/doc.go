// Package biz 提供问答服务的业务逻辑层。
//
// 该包将一次问答拆分为以下组件：
//   - RelevanceIndex: 为数据集建立向量文档并按问题检索相关数据集
//   - Reasoner: 调用 LLM 完成问题分解、实体抽取与答案合成
//   - DecompositionCache: 以 Redis 缓存问题分解结果
//   - Orchestrator: 串联以上组件与 DatasetStore，产出带引用的回答
package biz
